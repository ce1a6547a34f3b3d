// Package transcript turns session events into text.
package transcript

import (
	"strings"
	"sync"

	"github.com/nupi-ai/plugin-asr-local-april/internal/asr"
)

// Aggregator keeps the committed transcript and the current hypothesis.
// It is safe for concurrent use, so Handle can be passed to asr.NewSession
// directly.
type Aggregator struct {
	mu         sync.Mutex
	committed  strings.Builder
	partial    string
	silence    bool
	unreliable bool
}

// Handle folds one event into the transcript.
func (a *Aggregator) Handle(ev asr.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev.Type {
	case asr.EventPartial:
		a.partial = ev.Text()
		a.silence = false
	case asr.EventFinal:
		a.committed.WriteString(ev.Text())
		a.partial = ""
		a.silence = false
		a.unreliable = false
	case asr.EventSilence:
		a.silence = true
		a.unreliable = false
	case asr.EventCantKeepUp:
		a.unreliable = true
	}
}

// Committed returns the text of all final results so far.
func (a *Aggregator) Committed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.TrimSpace(a.committed.String())
}

// Partial returns the current provisional hypothesis.
func (a *Aggregator) Partial() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.partial
}

// Text returns committed text followed by the current hypothesis.
func (a *Aggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.TrimSpace(a.committed.String() + a.partial)
}

// InSilence reports whether the last speech-related event was a silence.
func (a *Aggregator) InSilence() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.silence
}

// Unreliable is set by a cant-keep-up event and cleared by the next final or
// silence event.
func (a *Aggregator) Unreliable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unreliable
}
