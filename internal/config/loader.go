package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load retrieves the adapter configuration from environment variables.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		ListenAddr: DefaultListenAddr,
		Engine:     DefaultEngine,
		Mode:       DefaultMode,
		QueueMs:    DefaultQueueMs,
	}

	if raw, ok := l.Lookup("NUPI_ADAPTER_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "NUPI_ADAPTER_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "NUPI_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "NUPI_ASR_ENGINE", &cfg.Engine)
	overrideString(l.Lookup, "NUPI_ASR_MODEL_PATH", &cfg.ModelPath)
	overrideString(l.Lookup, "NUPI_ASR_MODE", &cfg.Mode)
	if err := overrideInt(l.Lookup, "NUPI_ASR_QUEUE_MS", &cfg.QueueMs); err != nil {
		return Config{}, err
	}

	cfg.Engine = strings.ToLower(cfg.Engine)
	cfg.Mode = strings.ToLower(cfg.Mode)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		ListenAddr string `json:"listen_addr"`
		LogLevel   string `json:"log_level"`
		Engine     string `json:"engine"`
		ModelPath  string `json:"model_path"`
		Mode       string `json:"mode"`
		QueueMs    *int   `json:"queue_ms"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode NUPI_ADAPTER_CONFIG: %w", err)
	}
	for _, f := range []struct {
		value  string
		target *string
	}{
		{payload.ListenAddr, &cfg.ListenAddr},
		{payload.LogLevel, &cfg.LogLevel},
		{payload.Engine, &cfg.Engine},
		{payload.ModelPath, &cfg.ModelPath},
		{payload.Mode, &cfg.Mode},
	} {
		if f.value != "" {
			*f.target = f.value
		}
	}
	if payload.QueueMs != nil {
		cfg.QueueMs = *payload.QueueMs
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}
