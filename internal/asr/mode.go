package asr

import (
	"fmt"

	"github.com/nupi-ai/plugin-asr-local-april/internal/engine"
)

// Mode selects how a session schedules recognition work.
type Mode int

const (
	// ModeSync processes audio inline on the caller's goroutine.
	ModeSync Mode = iota
	// ModeAsyncRealtime processes audio on a worker and drops the oldest
	// queued audio when the worker falls behind.
	ModeAsyncRealtime
	// ModeAsyncNonRealtime processes audio on a worker and reports
	// EventCantKeepUp when incoming audio has to be dropped.
	ModeAsyncNonRealtime
)

var modeNames = map[Mode]string{
	ModeSync:             "sync",
	ModeAsyncRealtime:    "async-realtime",
	ModeAsyncNonRealtime: "async-nonrealtime",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Async reports whether the mode uses a background worker.
func (m Mode) Async() bool { return m == ModeAsyncRealtime || m == ModeAsyncNonRealtime }

// Flags returns the engine configuration word for m. It panics on a mode
// outside the closed set.
func (m Mode) Flags() uint32 {
	switch m {
	case ModeSync:
		return engine.ConfigFlagSync
	case ModeAsyncRealtime:
		return engine.ConfigFlagAsyncRealtime
	case ModeAsyncNonRealtime:
		return engine.ConfigFlagAsyncNonRealtime
	default:
		panic(fmt.Sprintf("asr: unknown session mode %d", int(m)))
	}
}

// ModeFromFlags maps an engine configuration word back to a Mode.
func ModeFromFlags(flags uint32) (Mode, error) {
	switch flags {
	case engine.ConfigFlagSync:
		return ModeSync, nil
	case engine.ConfigFlagAsyncRealtime:
		return ModeAsyncRealtime, nil
	case engine.ConfigFlagAsyncNonRealtime:
		return ModeAsyncNonRealtime, nil
	default:
		return 0, fmt.Errorf("%w: flags %d", ErrUnknownMode, flags)
	}
}

// ParseMode accepts the names returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want sync, async-realtime or async-nonrealtime)", ErrUnknownMode, s)
}
