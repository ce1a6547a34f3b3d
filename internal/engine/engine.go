// Package engine defines the boundary to the speech recognition engine.
//
// The Engine interface mirrors the april-asr C API one call per method.
// Handles are opaque table indices; the zero handle is the null resource.
package engine

import "errors"

// APIVersion is passed to Engine.Init.
const APIVersion = 1

// ErrNativeUnavailable indicates the april backend is not compiled in.
var ErrNativeUnavailable = errors.New("engine: april backend not available (build with -tags april)")

// ResultType is the wire-level tag of a recognition result.
type ResultType int32

const (
	ResultUnknown         ResultType = 0
	ResultPartial         ResultType = 1
	ResultFinal           ResultType = 2
	ResultErrorCantKeepUp ResultType = 3
	ResultSilence         ResultType = 4
)

// Session configuration flag words.
const (
	ConfigFlagSync             uint32 = 0
	ConfigFlagAsyncRealtime    uint32 = 1
	ConfigFlagAsyncNonRealtime uint32 = 2
)

// Token flags. A token carries exactly one of these values.
const (
	TokenFlagWordBoundary uint32 = 1
	TokenFlagSentenceEnd  uint32 = 2
)

// Token is one raw token as delivered by the engine.
type Token struct {
	Text    string
	LogProb float32
	Flags   uint32
	TimeMs  uint64
}

// ResultHandler receives raw results. It may be invoked on any goroutine the
// engine chooses, until the owning session is freed.
type ResultHandler func(result ResultType, tokens []Token)

// SpeakerID is an opaque per-speaker identifier.
type SpeakerID [16]byte

// SessionConfig is passed by value to CreateSession.
type SessionConfig struct {
	Speaker SpeakerID
	Handler ResultHandler
	Flags   uint32
}

type (
	ModelHandle   uint64
	SessionHandle uint64
)

// Engine is the external recognition engine.
//
// Init must be called before any other method. Model metadata queries are
// safe for concurrent use. A session handle must be fed by one goroutine at
// a time, and every session must be freed before its model.
type Engine interface {
	Init(version int)

	// CreateModel returns the zero handle if the file is not a valid model.
	CreateModel(path string) ModelHandle
	ModelName(m ModelHandle) string
	ModelDescription(m ModelHandle) string
	ModelLanguage(m ModelHandle) string
	ModelSampleRate(m ModelHandle) int
	FreeModel(m ModelHandle)

	CreateSession(m ModelHandle, cfg SessionConfig) SessionHandle
	FeedPCM16(s SessionHandle, samples []int16)
	Flush(s SessionHandle)
	RealtimeSpeedup(s SessionHandle) float32
	FreeSession(s SessionHandle)
}
