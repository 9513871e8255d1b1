package live

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebounceFiresOnceAfterExpiry(t *testing.T) {
	var fired atomic.Int32
	d := NewDebounce(func() { fired.Add(1) })

	d.Reschedule(20 * time.Millisecond)

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDebounceRescheduleCoalesces(t *testing.T) {
	var fired atomic.Int32
	d := NewDebounce(func() { fired.Add(1) })

	for i := 0; i < 5; i++ {
		d.Reschedule(40 * time.Millisecond)
		time.Sleep(10 * time.Millisecond)
	}

	// earlier timers were preempted; exactly one action runs
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDebounceStopCancelsPending(t *testing.T) {
	var fired atomic.Int32
	d := NewDebounce(func() { fired.Add(1) })

	d.Reschedule(20 * time.Millisecond)
	d.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestDebounceStopWithoutPendingIsNoop(t *testing.T) {
	d := NewDebounce(func() {})
	d.Stop()
}
