// Package asr manages recognition models and streaming sessions on top of an
// engine.Engine.
package asr

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/nupi-ai/plugin-asr-local-april/internal/engine"
)

var (
	ErrFileNotFound  = errors.New("asr: model file not found")
	ErrInvalidModel  = errors.New("asr: invalid model")
	ErrModelClosed   = errors.New("asr: model closed")
	ErrSessionClosed = errors.New("asr: session closed")
	ErrUnknownMode   = errors.New("asr: unknown mode")
)

// Runtime owns the one-time engine initialisation and loads models.
type Runtime struct {
	eng    engine.Engine
	logger *slog.Logger

	initOnce sync.Once
}

// NewRuntime wraps eng. A nil logger falls back to slog.Default().
func NewRuntime(eng engine.Engine, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{eng: eng, logger: logger.With("component", "asr")}
}

func (r *Runtime) init() {
	r.initOnce.Do(func() {
		r.eng.Init(engine.APIVersion)
	})
}

// LoadModel loads the model at path. It returns ErrFileNotFound without
// touching the engine when path is not an existing file, and ErrInvalidModel
// when the engine rejects it.
func (r *Runtime) LoadModel(path string) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("asr: stat model: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	r.init()
	h := r.eng.CreateModel(path)
	if h == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidModel, path)
	}

	m := &Model{rt: r, handle: h, path: path, refs: 1}
	r.logger.Info("model loaded",
		"path", path,
		"name", m.Name(),
		"language", m.Language(),
		"sample_rate", m.SampleRate(),
	)
	return m, nil
}

// Model is a loaded recognition model. The caller's reference and every
// session created from it share ownership; the engine resource is freed
// when the last share is released.
type Model struct {
	rt     *Runtime
	handle engine.ModelHandle
	path   string

	mu     sync.RWMutex
	refs   int
	closed bool
}

// Path returns the file the model was loaded from.
func (m *Model) Path() string { return m.path }

func (m *Model) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.refs == 0 {
		return ""
	}
	return m.rt.eng.ModelName(m.handle)
}

func (m *Model) Description() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.refs == 0 {
		return ""
	}
	return m.rt.eng.ModelDescription(m.handle)
}

func (m *Model) Language() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.refs == 0 {
		return ""
	}
	return m.rt.eng.ModelLanguage(m.handle)
}

// SampleRate is the rate, in Hz, of the PCM16 audio sessions expect.
func (m *Model) SampleRate() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.refs == 0 {
		return 0
	}
	return m.rt.eng.ModelSampleRate(m.handle)
}

// Close drops the caller's share. Sessions still open keep the model alive.
func (m *Model) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.release()
	return nil
}

// retain takes a share for a new session.
func (m *Model) retain() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.refs == 0 {
		return ErrModelClosed
	}
	m.refs++
	return nil
}

func (m *Model) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs == 0 {
		panic("asr: model released more times than retained")
	}
	m.refs--
	if m.refs == 0 {
		m.rt.eng.FreeModel(m.handle)
		m.rt.logger.Debug("model freed", "path", m.path)
	}
}
