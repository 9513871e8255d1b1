package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenroomhq/greenroom/internal/providers/chat"
	"github.com/greenroomhq/greenroom/internal/providers/stt"
	"github.com/greenroomhq/greenroom/internal/utils"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

const defaultPersona = "You are a warm, encouraging interview host. " +
	"React briefly to what the candidate just said with one short follow-up " +
	"prompt or acknowledgement. Never answer the question for them."

type Config struct {
	// Credential is the API credential required to open a session. Connect
	// fails with an unauthorized setup error when it is empty.
	Credential string

	Language string // transcription language hint, e.g. "en"
	Persona  string // system instruction prefix for the responder
	Question string // initial interview question context

	SegmentDuration time.Duration // capture window per segment
	MinSegmentBytes int           // segments below this are noise, not uploaded
	QuietInterval   time.Duration // silence window before the responder fires
	MinAppendChars  int           // appended text longer than this reschedules the quiet timer
	MinGrowthChars  int           // growth past the baseline required to call chat
	HistoryLimit    int           // bounded conversation window
	InterjectionTTL time.Duration // interjection display duration

	FailureLogEvery   int // log relay diagnostics every Nth consecutive failure
	FailureResetAfter int // consecutive failures before the counter resets

	// Encodings is the descending preference list matched against the
	// source's advertised encodings at connect time.
	Encodings []string

	FrameBuffer int // StreamSource frame buffer, gateway use
}

func DefaultConfig() Config {
	return Config{
		SegmentDuration:   3 * time.Second,
		MinSegmentBytes:   5000,
		QuietInterval:     6 * time.Second,
		MinAppendChars:    2,
		MinGrowthChars:    2,
		HistoryLimit:      20,
		InterjectionTTL:   8 * time.Second,
		FailureLogEvery:   3,
		FailureResetAfter: 15,
		Encodings: []string{
			"audio/wav",
			"audio/webm;codecs=opus",
			"audio/webm",
			"audio/ogg;codecs=opus",
		},
		FrameBuffer: 64,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.SegmentDuration <= 0 {
		c.SegmentDuration = d.SegmentDuration
	}
	if c.MinSegmentBytes <= 0 {
		c.MinSegmentBytes = d.MinSegmentBytes
	}
	if c.QuietInterval <= 0 {
		c.QuietInterval = d.QuietInterval
	}
	if c.MinAppendChars <= 0 {
		c.MinAppendChars = d.MinAppendChars
	}
	if c.MinGrowthChars <= 0 {
		c.MinGrowthChars = d.MinGrowthChars
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.InterjectionTTL <= 0 {
		c.InterjectionTTL = d.InterjectionTTL
	}
	if c.FailureLogEvery <= 0 {
		c.FailureLogEvery = d.FailureLogEvery
	}
	if c.FailureResetAfter <= 0 {
		c.FailureResetAfter = d.FailureResetAfter
	}
	if len(c.Encodings) == 0 {
		c.Encodings = d.Encodings
	}
	if c.FrameBuffer <= 0 {
		c.FrameBuffer = d.FrameBuffer
	}
	if c.Persona == "" {
		c.Persona = defaultPersona
	}
}

// SegmentReport is the relay's per-segment diagnostic, handed to the optional
// OnSegment hook (the gateway persists these fire-and-forget).
type SegmentReport struct {
	Seq        int64
	ByteSize   int
	MIMEType   string
	Status     string // relayed|skipped|failed
	TextLen    int
	FailStreak int
}

// Hooks are optional presentation-layer callbacks. They run outside the
// session lock. An empty interjection string means the interjection cleared.
type Hooks struct {
	OnStatus       func(Status)
	OnTranscript   func(string)
	OnInterjection func(string)
	OnSegment      func(SegmentReport)
}

// Session is the live-session orchestrator: capture loop, transcription
// relay, silence-triggered responder, and lifecycle state machine for one
// interview session.
type Session struct {
	cfg       Config
	hooks     Hooks
	stt       stt.Provider
	chat      chat.Provider
	transport Transport
	log       *logrus.Logger

	quiet *Debounce

	mu       sync.Mutex
	status   Status
	paused   bool
	epoch    uint64 // liveness check for async completions
	src      AudioSource
	encoding string
	question string

	transcript  string
	history     []chat.Message
	baselineLen int // transcript length at the last AI response

	interjection      string
	interjectionTimer *time.Timer

	failStreak int
	segSeq     int64

	segCh  chan Segment
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSession(cfg Config, transport Transport, sttP stt.Provider, chatP chat.Provider, hooks Hooks, log *logrus.Logger) *Session {
	cfg.applyDefaults()
	if log == nil {
		log = logrus.New()
	}
	s := &Session{
		cfg:       cfg,
		hooks:     hooks,
		stt:       sttP,
		chat:      chatP,
		transport: transport,
		log:       log,
		status:    StatusDisconnected,
		question:  cfg.Question,
	}
	s.quiet = NewDebounce(s.onQuiet)
	return s
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

func (s *Session) Interjection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interjection
}

func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// History returns a copy of the bounded conversation window.
func (s *Session) History() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Connect runs the setup state machine: disconnected -> connecting ->
// connected, or -> error on a setup failure (missing credential, no audio
// track, no supported encoding). The source handle and negotiated encoding
// are stored so Resume can restart capture later.
func (s *Session) Connect(src AudioSource) error {
	const op = "Session.Connect"

	s.mu.Lock()
	if s.status == StatusConnecting || s.status == StatusConnected {
		s.mu.Unlock()
		return utils.E(utils.CodeConflict, op, "session already connected", nil)
	}

	if s.cfg.Credential == "" {
		s.status = StatusError
		s.mu.Unlock()
		s.notifyStatus(StatusError)
		return utils.E(utils.CodeUnauthorized, op, "missing api credential", nil)
	}

	s.status = StatusConnecting
	s.mu.Unlock()
	s.notifyStatus(StatusConnecting)

	s.mu.Lock()
	if src == nil || len(src.Encodings()) == 0 {
		s.status = StatusError
		s.mu.Unlock()
		s.notifyStatus(StatusError)
		return utils.E(utils.CodeInvalidArgument, op, "source has no audio track", nil)
	}

	enc, ok := chooseEncoding(s.cfg.Encodings, src.Encodings())
	if !ok {
		s.status = StatusError
		s.mu.Unlock()
		s.notifyStatus(StatusError)
		return utils.E(utils.CodeInvalidArgument, op, "no supported audio encoding", nil)
	}

	s.epoch++
	s.src = src
	s.encoding = enc
	s.paused = false
	s.transcript = ""
	s.history = nil
	s.baselineLen = 0
	s.interjection = ""
	s.failStreak = 0
	s.segSeq = 0

	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel
	s.segCh = make(chan Segment, 1)
	go s.relayLoop(ctx, s.segCh)
	s.mu.Unlock()

	if err := s.transport.StartCapture(ctx, src, enc, s.cfg.SegmentDuration, s.enqueueSegment); err != nil {
		s.mu.Lock()
		s.status = StatusError
		s.mu.Unlock()
		cancel()
		s.notifyStatus(StatusError)
		return utils.E(utils.CodeInternal, op, "failed to start capture", err)
	}

	s.mu.Lock()
	s.status = StatusConnected
	s.mu.Unlock()
	s.notifyStatus(StatusConnected)
	return nil
}

// Disconnect stops capture, cancels pending timers, clears transient buffers,
// and bumps the liveness epoch so late completions are discarded. Idempotent.
// In-flight provider calls are not aborted, only ignored on completion.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.status == StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.epoch++
	s.status = StatusDisconnected
	s.paused = false
	s.transcript = ""
	s.history = nil
	s.baselineLen = 0
	s.interjection = ""
	if s.interjectionTimer != nil {
		s.interjectionTimer.Stop()
		s.interjectionTimer = nil
	}
	cancel := s.cancel
	s.cancel = nil
	s.segCh = nil
	s.mu.Unlock()

	s.transport.Stop()
	s.quiet.Stop()
	if cancel != nil {
		cancel()
	}
	s.notifyStatus(StatusDisconnected)
}

// Pause stops the active capture immediately; segments finishing mid-pause
// are discarded, not queued. Status is unchanged. The quiet timer is left
// armed: firing while paused is a no-op.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.paused || s.status != StatusConnected {
		s.mu.Unlock()
		return
	}
	s.paused = true
	s.mu.Unlock()
	s.transport.Stop()
}

// Resume restarts capture from the source handle and encoding stored at
// connect time.
func (s *Session) Resume() {
	s.mu.Lock()
	if !s.paused || s.status != StatusConnected {
		s.mu.Unlock()
		return
	}
	s.paused = false
	src, enc, ctx := s.src, s.encoding, s.ctx
	s.mu.Unlock()

	if err := s.transport.StartCapture(ctx, src, enc, s.cfg.SegmentDuration, s.enqueueSegment); err != nil {
		s.log.WithError(err).Error("resume: failed to restart capture")
	}
}

// ResetTranscript clears the transcript, the conversation history, the
// silence baseline, and any pending quiet timer or interjection. Called by
// the owner when advancing to the next question or after saving an answer.
func (s *Session) ResetTranscript() {
	s.mu.Lock()
	s.transcript = ""
	s.history = nil
	s.baselineLen = 0
	cleared := s.interjection != ""
	s.interjection = ""
	if s.interjectionTimer != nil {
		s.interjectionTimer.Stop()
		s.interjectionTimer = nil
	}
	s.mu.Unlock()

	s.quiet.Stop()
	if s.hooks.OnTranscript != nil {
		s.hooks.OnTranscript("")
	}
	if cleared && s.hooks.OnInterjection != nil {
		s.hooks.OnInterjection("")
	}
}

// SetQuestion updates the question context fed to the responder's system
// instruction. Typically paired with ResetTranscript by the caller.
func (s *Session) SetQuestion(q string) {
	s.mu.Lock()
	s.question = q
	s.mu.Unlock()
}

func (s *Session) notifyStatus(st Status) {
	if s.hooks.OnStatus != nil {
		s.hooks.OnStatus(st)
	}
}

// enqueueSegment is the transport's hand-off. Non-blocking: if the relay is
// still busy with the previous segment, the new one is dropped (no queueing).
func (s *Session) enqueueSegment(seg Segment) {
	s.mu.Lock()
	ch := s.segCh
	paused := s.paused
	s.mu.Unlock()

	if ch == nil || paused {
		return
	}
	select {
	case ch <- seg:
	default:
		s.log.WithField("segment_bytes", len(seg.Data)).Warn("relay busy, segment dropped")
	}
}

func (s *Session) relayLoop(ctx context.Context, ch <-chan Segment) {
	for {
		select {
		case <-ctx.Done():
			return
		case seg := <-ch:
			s.relay(seg)
		}
	}
}

// relay uploads one segment and appends the recognized text. Every completion
// is guarded by the epoch liveness check; stale results are dropped silently.
func (s *Session) relay(seg Segment) {
	s.mu.Lock()
	if s.status != StatusConnected || s.paused {
		s.mu.Unlock()
		return
	}
	epoch := s.epoch
	s.segSeq++
	seq := s.segSeq
	streak := s.failStreak
	s.mu.Unlock()

	if len(seg.Data) < s.cfg.MinSegmentBytes {
		s.log.WithFields(logrus.Fields{
			"seq":           seq,
			"segment_bytes": len(seg.Data),
			"min_bytes":     s.cfg.MinSegmentBytes,
		}).Debug("relay: segment below size threshold, skipped")
		s.report(SegmentReport{Seq: seq, ByteSize: len(seg.Data), MIMEType: seg.MIMEType, Status: "skipped", FailStreak: streak})
		return
	}

	// in-flight uploads are never aborted by disconnect; stale results are
	// discarded below instead
	text, err := s.stt.Transcribe(context.Background(), seg.Data, seg.MIMEType, s.cfg.Language)

	s.mu.Lock()
	if s.epoch != epoch || s.status != StatusConnected || s.paused {
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.failStreak++
		streak = s.failStreak
		reset := streak >= s.cfg.FailureResetAfter
		if reset {
			s.failStreak = 0
		}
		s.mu.Unlock()

		entry := s.log.WithFields(logrus.Fields{
			"seq":           seq,
			"segment_bytes": len(seg.Data),
			"mime_type":     seg.MIMEType,
			"fail_streak":   streak,
		}).WithError(err)
		switch {
		case reset:
			// degrade-and-continue: never fatal, counter restarts
			entry.Error("relay: consecutive transcription failures hit high-water mark, counter reset")
		case streak%s.cfg.FailureLogEvery == 0:
			entry.Warn("relay: transcription failed")
		}

		s.report(SegmentReport{Seq: seq, ByteSize: len(seg.Data), MIMEType: seg.MIMEType, Status: "failed", FailStreak: streak})
		return
	}

	s.failStreak = 0
	trimmed := strings.TrimSpace(text)
	var snapshot string
	if trimmed != "" {
		if s.transcript == "" {
			s.transcript = trimmed
		} else {
			s.transcript += " " + trimmed
		}
		snapshot = s.transcript
	}
	s.mu.Unlock()

	if trimmed != "" && s.hooks.OnTranscript != nil {
		s.hooks.OnTranscript(snapshot)
	}
	if len(trimmed) > s.cfg.MinAppendChars {
		s.quiet.Reschedule(s.cfg.QuietInterval)
	}
	s.report(SegmentReport{Seq: seq, ByteSize: len(seg.Data), MIMEType: seg.MIMEType, Status: "relayed", TextLen: len(trimmed)})
}

func (s *Session) report(r SegmentReport) {
	if s.hooks.OnSegment != nil {
		s.hooks.OnSegment(r)
	}
}

// onQuiet fires when the silence window elapses with no qualifying transcript
// growth rescheduling it. A timer elapsing while paused is a no-op.
func (s *Session) onQuiet() {
	s.mu.Lock()
	if s.status != StatusConnected || s.paused {
		s.mu.Unlock()
		return
	}
	if len(s.transcript)-s.baselineLen <= s.cfg.MinGrowthChars {
		s.mu.Unlock()
		return
	}
	epoch := s.epoch
	transcript := s.transcript

	msgs := make([]chat.Message, 0, len(s.history)+2)
	msgs = append(msgs, chat.Message{Role: chat.RoleSystem, Content: s.systemPromptLocked()})
	msgs = append(msgs, s.history...)
	msgs = append(msgs, chat.Message{Role: chat.RoleUser, Content: transcript})
	s.mu.Unlock()

	reply, err := s.chat.Complete(context.Background(), msgs)
	if err != nil {
		// no retry: the next silence window retries once more speech arrives
		s.log.WithError(err).Warn("responder: chat call failed")
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return
	}

	s.mu.Lock()
	if s.epoch != epoch || s.status != StatusConnected || s.paused {
		s.mu.Unlock()
		return
	}
	s.interjection = reply
	s.history = append(s.history,
		chat.Message{Role: chat.RoleUser, Content: transcript},
		chat.Message{Role: chat.RoleAssistant, Content: reply},
	)
	if over := len(s.history) - s.cfg.HistoryLimit; over > 0 {
		s.history = append([]chat.Message(nil), s.history[over:]...)
	}
	s.baselineLen = len(s.transcript)
	if s.interjectionTimer != nil {
		s.interjectionTimer.Stop()
	}
	s.interjectionTimer = time.AfterFunc(s.cfg.InterjectionTTL, func() {
		s.clearInterjection(epoch)
	})
	s.mu.Unlock()

	if s.hooks.OnInterjection != nil {
		s.hooks.OnInterjection(reply)
	}
}

func (s *Session) clearInterjection(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.interjection == "" {
		s.mu.Unlock()
		return
	}
	s.interjection = ""
	s.mu.Unlock()

	if s.hooks.OnInterjection != nil {
		s.hooks.OnInterjection("")
	}
}

func (s *Session) systemPromptLocked() string {
	p := s.cfg.Persona
	if s.question != "" {
		p += "\n\nCurrent interview question: " + s.question
	}
	return p
}

// chooseEncoding returns the first preferred encoding the source supports.
func chooseEncoding(preferred, available []string) (string, bool) {
	have := make(map[string]struct{}, len(available))
	for _, a := range available {
		have[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}
	for _, p := range preferred {
		if _, ok := have[strings.ToLower(strings.TrimSpace(p))]; ok {
			return p, true
		}
	}
	return "", false
}
