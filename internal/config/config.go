package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nupi-ai/plugin-asr-local-april/internal/asr"
)

const (
	DefaultListenAddr = "localhost:0"
	DefaultEngine     = EngineAuto
	DefaultMode       = "async-nonrealtime"
	DefaultQueueMs    = 3000

	MinQueueMs = 100
	MaxQueueMs = 60000
)

// Engine selectors.
const (
	EngineAuto  = "auto"
	EngineApril = "april"
	EngineStub  = "stub"
)

// Config holds the adapter configuration.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	LogLevel   string `json:"log_level"`
	Engine     string `json:"engine"`
	ModelPath  string `json:"model_path"`
	Mode       string `json:"mode"`
	QueueMs    int    `json:"queue_ms"`
}

// Validate checks the configuration for values the adapter cannot run with.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineAuto, EngineApril, EngineStub:
	default:
		return fmt.Errorf("config: unknown engine %q (want auto, april or stub)", c.Engine)
	}
	if strings.TrimSpace(c.ModelPath) == "" {
		return errors.New("config: model path is required (set NUPI_ASR_MODEL_PATH)")
	}
	if _, err := asr.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.QueueMs < MinQueueMs || c.QueueMs > MaxQueueMs {
		return fmt.Errorf("config: queue_ms %d out of range [%d, %d]", c.QueueMs, MinQueueMs, MaxQueueMs)
	}
	return nil
}

// SessionMode returns the parsed default session mode. Call after Validate.
func (c Config) SessionMode() asr.Mode {
	m, _ := asr.ParseMode(c.Mode)
	return m
}
