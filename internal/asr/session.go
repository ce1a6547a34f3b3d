package asr

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nupi-ai/plugin-asr-local-april/internal/engine"
)

// DefaultQueueDuration bounds the audio an async session buffers.
const DefaultQueueDuration = 3 * time.Second

type sessionOptions struct {
	queue  time.Duration
	logger *slog.Logger
}

// SessionOption configures NewSession.
type SessionOption func(*sessionOptions)

// WithQueueDuration sets how much audio an async session may buffer before
// it starts dropping. Non-positive values keep the default.
func WithQueueDuration(d time.Duration) SessionOption {
	return func(o *sessionOptions) {
		if d > 0 {
			o.queue = d
		}
	}
}

// WithLogger overrides the runtime's logger for one session.
func WithLogger(l *slog.Logger) SessionOption {
	return func(o *sessionOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Session is one recognition stream bound to a Model.
//
// Feed, FeedSamples and Flush must be called from one goroutine at a time.
// Close may be called from any goroutine.
type Session struct {
	model   *Model
	eng     engine.Engine
	handle  engine.SessionHandle
	mode    Mode
	handler Handler
	logger  *slog.Logger

	// mu serialises engine calls on the caller's goroutine and guards closed.
	mu     sync.Mutex
	closed bool

	w *worker
}

// NewSession creates a session on model. It panics if mode is not one of
// the declared Mode constants.
func NewSession(model *Model, mode Mode, handler Handler, opts ...SessionOption) (*Session, error) {
	mode.Flags()
	if handler == nil {
		return nil, errors.New("asr: nil handler")
	}
	o := sessionOptions{queue: DefaultQueueDuration, logger: model.rt.logger}
	for _, opt := range opts {
		opt(&o)
	}

	if err := model.retain(); err != nil {
		return nil, err
	}
	s := &Session{
		model:   model,
		eng:     model.rt.eng,
		mode:    mode,
		handler: handler,
		logger:  o.logger.With("mode", mode.String()),
	}

	// The async regimes are run by this package, so the engine session is
	// always synchronous and only ever fires inside FeedPCM16 or Flush.
	s.handle = s.eng.CreateSession(model.handle, engine.SessionConfig{
		Flags:   engine.ConfigFlagSync,
		Handler: s.dispatch,
	})
	if s.handle == 0 {
		model.release()
		return nil, errors.New("asr: engine refused to create session")
	}

	if mode.Async() {
		rate := model.SampleRate()
		capacity := int(int64(rate) * int64(o.queue) / int64(time.Second))
		if capacity < 1 {
			capacity = 1
		}
		s.w = newWorker(s, rate, capacity)
		go s.w.run()
	}
	s.logger.Debug("session created", "model", model.path)
	return s, nil
}

// Mode returns the mode the session was created with.
func (s *Session) Mode() Mode { return s.mode }

// Model returns the model backing the session.
func (s *Session) Model() *Model { return s.model }

// dispatch is the engine result handler bound at creation.
func (s *Session) dispatch(result engine.ResultType, tokens []engine.Token) {
	s.handler(decodeEvent(result, tokens))
}

// Feed submits little-endian PCM16 mono audio at the model's sample rate.
// An odd trailing byte is dropped; an empty buffer does nothing.
func (s *Session) Feed(pcm []byte) error {
	return s.FeedSamples(DecodePCM16(pcm))
}

// FeedSamples submits decoded samples. Async sessions copy them before
// returning.
func (s *Session) FeedSamples(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if len(samples) == 0 {
		return nil
	}
	if s.w != nil {
		s.w.push(append([]int16(nil), samples...))
		return nil
	}
	s.eng.FeedPCM16(s.handle, samples)
	return nil
}

// Flush forces a terminal result for buffered audio. Async sessions wait
// until the worker has processed everything queued before the call; ctx
// bounds only that wait, the flush itself still completes before Close
// returns.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.w == nil {
		defer s.mu.Unlock()
		s.eng.Flush(s.handle)
		return nil
	}
	done := s.w.pushFlush()
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-s.w.done:
		// Close drains pending flushes before the worker exits.
		<-done
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RealtimeSpeedup reports how far the session is falling behind. For async
// sessions it is the smoothed ratio of processing time to audio duration;
// values of 1 or more mean audio is arriving faster than it is processed.
// Sync sessions report the engine's own figure.
func (s *Session) RealtimeSpeedup() float32 {
	if s.w != nil {
		return s.w.speedup()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return s.eng.RealtimeSpeedup(s.handle)
}

// Close stops the worker, abandoning queued audio not covered by a pending
// Flush, frees the engine session and releases the model share. No handler
// call happens after Close returns. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.w != nil {
		s.w.stop()
	}
	s.eng.FreeSession(s.handle)
	s.model.release()
	s.logger.Debug("session closed")
	return nil
}
