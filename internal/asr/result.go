package asr

import (
	"fmt"
	"strings"
	"time"

	"github.com/nupi-ai/plugin-asr-local-april/internal/engine"
)

// EventType is the closed set of recognition events.
type EventType int

const (
	EventUnknown EventType = iota
	EventCantKeepUp
	EventPartial
	EventFinal
	EventSilence
)

func (t EventType) String() string {
	switch t {
	case EventUnknown:
		return "unknown"
	case EventCantKeepUp:
		return "cant-keep-up"
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventSilence:
		return "silence"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// TokenFlags is the closed set of token annotations. Every decoded token
// carries exactly one.
type TokenFlags uint8

const (
	WordBoundary TokenFlags = iota + 1
	SentenceEnd
)

func (f TokenFlags) String() string {
	switch f {
	case WordBoundary:
		return "word-boundary"
	case SentenceEnd:
		return "sentence-end"
	default:
		return fmt.Sprintf("TokenFlags(%d)", int(f))
	}
}

// Token is one recognised unit. Text may begin with a space to start a word.
type Token struct {
	Text    string
	LogProb float32
	Flags   TokenFlags
	// Time is measured from the start of the audio fed to the session.
	Time time.Duration
}

// Event is delivered to the session handler once per engine result.
type Event struct {
	Type   EventType
	Tokens []Token
}

// Text concatenates the token texts.
func (e Event) Text() string {
	var b strings.Builder
	for _, t := range e.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Handler receives session events. It runs on the feeding goroutine for
// ModeSync sessions and on the session worker otherwise, and must not call
// back into the same session.
type Handler func(Event)

// decodeEvent converts a raw engine result. Unknown tags and flags mean
// the engine and this package disagree on the ABI, so they panic.
func decodeEvent(result engine.ResultType, raw []engine.Token) Event {
	ev := Event{Type: decodeType(result)}
	if len(raw) == 0 {
		return ev
	}
	ev.Tokens = make([]Token, len(raw))
	for i, t := range raw {
		ev.Tokens[i] = Token{
			Text:    t.Text,
			LogProb: t.LogProb,
			Flags:   decodeTokenFlags(t.Flags),
			Time:    time.Duration(t.TimeMs) * time.Millisecond,
		}
	}
	return ev
}

func decodeType(result engine.ResultType) EventType {
	switch result {
	case engine.ResultUnknown:
		return EventUnknown
	case engine.ResultPartial:
		return EventPartial
	case engine.ResultFinal:
		return EventFinal
	case engine.ResultErrorCantKeepUp:
		return EventCantKeepUp
	case engine.ResultSilence:
		return EventSilence
	default:
		panic(fmt.Sprintf("asr: unknown result type %d from engine", int32(result)))
	}
}

func decodeTokenFlags(flags uint32) TokenFlags {
	switch flags {
	case engine.TokenFlagWordBoundary:
		return WordBoundary
	case engine.TokenFlagSentenceEnd:
		return SentenceEnd
	default:
		panic(fmt.Sprintf("asr: unknown token flag %d from engine", flags))
	}
}
