package live

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Segment is one fixed-duration unit of captured audio. It is consumed and
// discarded right after upload; nothing retains the bytes.
type Segment struct {
	Data     []byte
	MIMEType string
}

// AudioSource supplies live audio frames and advertises the encodings the
// client can produce.
type AudioSource interface {
	Encodings() []string
	// ReadFrame blocks until a frame arrives or ctx ends.
	ReadFrame(ctx context.Context) ([]byte, error)
}

// Transport is the capture strategy: it owns the segment-assembly loop and
// hands each finished segment to onSegment. Exactly one capture is active at
// a time; each completed segment immediately starts the next cycle.
type Transport interface {
	StartCapture(ctx context.Context, src AudioSource, encoding string, segmentDur time.Duration, onSegment func(Segment)) error
	Stop()
}

// ChunkedTransport accumulates frames into fixed-duration segments. The
// streaming variant is a separate Transport implementation, not a fork of
// this loop.
type ChunkedTransport struct {
	Logger *logrus.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (t *ChunkedTransport) StartCapture(ctx context.Context, src AudioSource, encoding string, segmentDur time.Duration, onSegment func(Segment)) error {
	if src == nil {
		return errors.New("chunked transport: nil source")
	}
	if segmentDur <= 0 {
		segmentDur = 3 * time.Second
	}

	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return errors.New("chunked transport: capture already active")
	}
	cctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(cctx, src, encoding, segmentDur, onSegment)
	return nil
}

func (t *ChunkedTransport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *ChunkedTransport) run(ctx context.Context, src AudioSource, encoding string, segmentDur time.Duration, onSegment func(Segment)) {
	for {
		data, err := t.captureOne(ctx, src, segmentDur)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if t.Logger != nil {
				t.Logger.WithError(err).Warn("capture: source read failed, stopping loop")
			}
			return
		}
		if len(data) > 0 {
			onSegment(Segment{Data: data, MIMEType: encoding})
		}
	}
}

// captureOne reads frames for one segment window. The window deadline closes
// the segment; a dead parent context aborts it.
func (t *ChunkedTransport) captureOne(ctx context.Context, src AudioSource, segmentDur time.Duration) ([]byte, error) {
	wctx, cancel := context.WithTimeout(ctx, segmentDur)
	defer cancel()

	var buf bytes.Buffer
	for {
		frame, err := src.ReadFrame(wctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return buf.Bytes(), nil // window elapsed, segment complete
			}
			return nil, err
		}
		buf.Write(frame)
	}
}

// StreamSource adapts frames pushed by a network peer (the WebSocket gateway)
// into an AudioSource. The buffer is bounded; a full buffer drops the new
// frame rather than blocking the pusher.
type StreamSource struct {
	encodings []string
	frames    chan []byte
	logger    *logrus.Logger
}

func NewStreamSource(encodings []string, bufferFrames int, logger *logrus.Logger) *StreamSource {
	if bufferFrames <= 0 {
		bufferFrames = 64
	}
	return &StreamSource{
		encodings: encodings,
		frames:    make(chan []byte, bufferFrames),
		logger:    logger,
	}
}

func (s *StreamSource) Encodings() []string { return s.encodings }

// Push hands a frame to the capture loop. Returns false if the frame was
// dropped because the buffer is full.
func (s *StreamSource) Push(frame []byte) bool {
	select {
	case s.frames <- frame:
		return true
	default:
		if s.logger != nil {
			s.logger.WithField("frame_bytes", len(frame)).Warn("stream source: buffer full, frame dropped")
		}
		return false
	}
}

func (s *StreamSource) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
