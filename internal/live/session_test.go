package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenroomhq/greenroom/internal/providers/chat"
	"github.com/greenroomhq/greenroom/internal/utils"
)

type fakeSource struct {
	encodings []string
}

func (f *fakeSource) Encodings() []string { return f.encodings }

func (f *fakeSource) ReadFrame(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeTransport struct {
	mu      sync.Mutex
	starts  int
	stops   int
	lastSrc AudioSource
	lastEnc string
}

func (t *fakeTransport) StartCapture(ctx context.Context, src AudioSource, encoding string, segmentDur time.Duration, onSegment func(Segment)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts++
	t.lastSrc = src
	t.lastEnc = encoding
	return nil
}

func (t *fakeTransport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
}

type fakeSTT struct {
	mu      sync.Mutex
	texts   []string
	err     error
	calls   int
	started chan struct{} // signaled when a call begins, if set
	gate    chan struct{} // blocks completion until closed, if set
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.texts) == 0 {
		return "", nil
	}
	t := f.texts[0]
	f.texts = f.texts[1:]
	return t, nil
}

func (f *fakeSTT) Close() error { return nil }

func (f *fakeSTT) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeChat struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   [][]chat.Message
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeChat) Complete(ctx context.Context, msgs []chat.Message) (string, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]chat.Message, len(msgs))
	copy(cp, msgs)
	f.calls = append(f.calls, cp)
	return f.reply, f.err
}

func (f *fakeChat) Close() error { return nil }

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Credential = "test-key"
	cfg.Language = "en"
	cfg.Question = "Tell me about yourself."
	cfg.QuietInterval = time.Hour // tests drive onQuiet directly unless overridden
	return cfg
}

func segment(n int) Segment {
	return Segment{Data: make([]byte, n), MIMEType: "audio/wav"}
}

func connected(t *testing.T, cfg Config, sttP *fakeSTT, chatP *fakeChat, hooks Hooks) (*Session, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	s := NewSession(cfg, tr, sttP, chatP, hooks, quietLogger())
	require.NoError(t, s.Connect(&fakeSource{encodings: []string{"audio/wav"}}))
	require.Equal(t, StatusConnected, s.Status())
	t.Cleanup(s.Disconnect)
	return s, tr
}

func TestConnectMissingCredential(t *testing.T) {
	cfg := testConfig()
	cfg.Credential = ""
	s := NewSession(cfg, &fakeTransport{}, &fakeSTT{}, &fakeChat{}, Hooks{}, quietLogger())

	err := s.Connect(&fakeSource{encodings: []string{"audio/wav"}})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
	assert.Equal(t, StatusError, s.Status())
}

func TestConnectNoAudioTrack(t *testing.T) {
	s := NewSession(testConfig(), &fakeTransport{}, &fakeSTT{}, &fakeChat{}, Hooks{}, quietLogger())

	err := s.Connect(&fakeSource{encodings: nil})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	assert.Equal(t, StatusError, s.Status())
}

func TestConnectNoSupportedEncoding(t *testing.T) {
	s := NewSession(testConfig(), &fakeTransport{}, &fakeSTT{}, &fakeChat{}, Hooks{}, quietLogger())

	err := s.Connect(&fakeSource{encodings: []string{"audio/flac"}})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestConnectPicksPreferredEncoding(t *testing.T) {
	sttP := &fakeSTT{}
	s, tr := connected(t, testConfig(), sttP, &fakeChat{}, Hooks{})
	_ = s

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, "audio/wav", tr.lastEnc)
	assert.Equal(t, 1, tr.starts)
}

func TestTranscriptSpaceJoinedInArrivalOrder(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"Hello", "there", "friend"}}
	s, _ := connected(t, testConfig(), sttP, &fakeChat{}, Hooks{})

	s.relay(segment(6000))
	s.relay(segment(6000))
	s.relay(segment(6000))

	assert.Equal(t, "Hello there friend", s.Transcript())
}

func TestEmptyResponseTextNotAppended(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"Hello", "   ", "world"}}
	s, _ := connected(t, testConfig(), sttP, &fakeChat{}, Hooks{})

	s.relay(segment(6000))
	s.relay(segment(6000))
	s.relay(segment(6000))

	assert.Equal(t, "Hello world", s.Transcript())
}

func TestSmallSegmentSkipped(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"should not appear"}}
	s, _ := connected(t, testConfig(), sttP, &fakeChat{}, Hooks{})

	s.relay(segment(4000)) // below the 5000-byte threshold

	assert.Equal(t, 0, sttP.callCount())
	assert.Equal(t, "", s.Transcript())
}

func TestResetTranscriptClearsEverything(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"Some answer text here"}}
	chatP := &fakeChat{reply: "Interesting, go on."}
	s, _ := connected(t, testConfig(), sttP, chatP, Hooks{})

	s.relay(segment(6000))
	s.onQuiet()
	require.NotEmpty(t, s.Transcript())
	require.NotEmpty(t, s.History())

	s.ResetTranscript()

	assert.Equal(t, "", s.Transcript())
	assert.Empty(t, s.History())
	assert.Equal(t, "", s.Interjection())
}

func TestHistoryBounded(t *testing.T) {
	sttP := &fakeSTT{}
	chatP := &fakeChat{reply: "ok"}
	s, _ := connected(t, testConfig(), sttP, chatP, Hooks{})

	for i := 0; i < 15; i++ {
		sttP.mu.Lock()
		sttP.texts = append(sttP.texts, "more words arrive")
		sttP.mu.Unlock()
		s.relay(segment(6000))
		s.onQuiet()
	}

	assert.Equal(t, 15, chatP.callCount())
	assert.LessOrEqual(t, len(s.History()), 20)
}

func TestNoChatWhilePaused(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"A perfectly good answer"}}
	chatP := &fakeChat{reply: "nope"}
	s, _ := connected(t, testConfig(), sttP, chatP, Hooks{})

	s.relay(segment(6000))
	s.Pause()

	// simulate a quiet timer that was already pending before pause
	s.onQuiet()

	assert.Equal(t, 0, chatP.callCount())
	assert.True(t, s.Paused())
	assert.Equal(t, StatusConnected, s.Status())
}

func TestPausedSegmentsDiscarded(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"dropped"}}
	s, _ := connected(t, testConfig(), sttP, &fakeChat{}, Hooks{})

	s.Pause()
	s.relay(segment(6000))

	assert.Equal(t, 0, sttP.callCount())
	assert.Equal(t, "", s.Transcript())
}

func TestLateTranscriptionAfterDisconnectIgnored(t *testing.T) {
	sttP := &fakeSTT{
		texts:   []string{"too late"},
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	s, _ := connected(t, testConfig(), sttP, &fakeChat{}, Hooks{})

	done := make(chan struct{})
	go func() {
		s.relay(segment(6000))
		close(done)
	}()

	<-sttP.started
	s.Disconnect()
	close(sttP.gate)
	<-done

	assert.Equal(t, "", s.Transcript())
	assert.Equal(t, StatusDisconnected, s.Status())
}

func TestLateChatAfterDisconnectIgnored(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"An answer worth reacting to"}}
	chatP := &fakeChat{
		reply:   "too late",
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	s, _ := connected(t, testConfig(), sttP, chatP, Hooks{})

	s.relay(segment(6000))

	done := make(chan struct{})
	go func() {
		s.onQuiet()
		close(done)
	}()

	<-chatP.started
	s.Disconnect()
	close(chatP.gate)
	<-done

	assert.Equal(t, "", s.Interjection())
	assert.Empty(t, s.History())
}

func TestSilenceFiresOneChatCallAndInterjectionExpires(t *testing.T) {
	cfg := testConfig()
	cfg.QuietInterval = 50 * time.Millisecond
	cfg.InterjectionTTL = 60 * time.Millisecond

	var mu sync.Mutex
	var seen []string
	hooks := Hooks{OnInterjection: func(text string) {
		mu.Lock()
		seen = append(seen, text)
		mu.Unlock()
	}}

	sttP := &fakeSTT{texts: []string{"Hello there"}}
	chatP := &fakeChat{reply: "Tell me more about that."}
	s, _ := connected(t, cfg, sttP, chatP, hooks)

	s.relay(segment(6000))
	require.Equal(t, "Hello there", s.Transcript())

	// quiet interval elapses, responder fires once
	assert.Eventually(t, func() bool { return chatP.callCount() == 1 }, time.Second, 5*time.Millisecond)

	chatP.mu.Lock()
	msgs := chatP.calls[0]
	chatP.mu.Unlock()
	require.NotEmpty(t, msgs)
	assert.Equal(t, chat.RoleSystem, msgs[0].Role)
	assert.Equal(t, chat.RoleUser, msgs[len(msgs)-1].Role)
	assert.Equal(t, "Hello there", msgs[len(msgs)-1].Content)

	// interjection shows, then clears after the display TTL
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2 && seen[0] == "Tell me more about that." && seen[1] == ""
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "", s.Interjection())

	// no further growth, no further calls
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, chatP.callCount())
}

func TestFailureCounterResetsAtHighWaterMark(t *testing.T) {
	sttP := &fakeSTT{err: errors.New("upstream 500")}
	s, _ := connected(t, testConfig(), sttP, &fakeChat{}, Hooks{})

	streakAt := func() int {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.failStreak
	}

	for i := 0; i < 14; i++ {
		s.relay(segment(6000))
	}
	assert.Equal(t, 14, streakAt())

	s.relay(segment(6000)) // 15th failure trips the high-water mark
	assert.Equal(t, 0, streakAt())

	s.relay(segment(6000)) // 16th starts a fresh streak
	assert.Equal(t, 1, streakAt())
	assert.Equal(t, StatusConnected, s.Status())
}

func TestChatFailureLeavesStateUnchanged(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"Something worth responding to"}}
	chatP := &fakeChat{err: errors.New("chat down")}
	s, _ := connected(t, testConfig(), sttP, chatP, Hooks{})

	s.relay(segment(6000))
	s.onQuiet()

	assert.Equal(t, 1, chatP.callCount())
	assert.Equal(t, "", s.Interjection())
	assert.Empty(t, s.History())
	assert.Equal(t, "Something worth responding to", s.Transcript())
}

func TestNoChatWithoutGrowthSinceBaseline(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"First answer chunk"}}
	chatP := &fakeChat{reply: "noted"}
	s, _ := connected(t, testConfig(), sttP, chatP, Hooks{})

	s.relay(segment(6000))
	s.onQuiet()
	require.Equal(t, 1, chatP.callCount())

	// silence fires again with no new speech: baseline unchanged, no call
	s.onQuiet()
	assert.Equal(t, 1, chatP.callCount())
}

func TestResumeReusesStoredSource(t *testing.T) {
	src := &fakeSource{encodings: []string{"audio/wav"}}
	tr := &fakeTransport{}
	s := NewSession(testConfig(), tr, &fakeSTT{}, &fakeChat{}, Hooks{}, quietLogger())
	require.NoError(t, s.Connect(src))
	t.Cleanup(s.Disconnect)

	s.Pause()
	require.True(t, s.Paused())
	s.Resume()
	require.False(t, s.Paused())

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, 2, tr.starts)
	assert.Equal(t, 1, tr.stops)
	assert.Same(t, AudioSource(src), tr.lastSrc)
	assert.Equal(t, "audio/wav", tr.lastEnc)
}

func TestDisconnectIdempotent(t *testing.T) {
	s, tr := connected(t, testConfig(), &fakeSTT{}, &fakeChat{}, Hooks{})

	s.Disconnect()
	s.Disconnect()

	assert.Equal(t, StatusDisconnected, s.Status())
	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, 1, tr.stops)
}

func TestEnqueuePathRelaysSegment(t *testing.T) {
	sttP := &fakeSTT{texts: []string{"via the loop"}}
	s, _ := connected(t, testConfig(), sttP, &fakeChat{}, Hooks{})

	s.enqueueSegment(segment(6000))

	assert.Eventually(t, func() bool {
		return s.Transcript() == "via the loop"
	}, time.Second, 5*time.Millisecond)
}

func TestSegmentReportsEmitted(t *testing.T) {
	var mu sync.Mutex
	var reports []SegmentReport
	hooks := Hooks{OnSegment: func(r SegmentReport) {
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
	}}

	sttP := &fakeSTT{texts: []string{"recorded"}}
	s, _ := connected(t, testConfig(), sttP, &fakeChat{}, hooks)

	s.relay(segment(4000))
	s.relay(segment(6000))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 2)
	assert.Equal(t, "skipped", reports[0].Status)
	assert.Equal(t, int64(1), reports[0].Seq)
	assert.Equal(t, "relayed", reports[1].Status)
	assert.Equal(t, len("recorded"), reports[1].TextLen)
}
