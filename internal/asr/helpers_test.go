package asr

import (
	"encoding/binary"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nupi-ai/plugin-asr-local-april/internal/engine"
	"github.com/nupi-ai/plugin-asr-local-april/internal/modelfile"
)

func writeTestModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.april")
	err := modelfile.WriteFile(path, modelfile.Info{
		Language:    "en",
		Name:        "Test Model",
		Description: "asr fixture",
		Params:      modelfile.DefaultParams([]string{"<blk>", " hel", "lo", " wor", "ld", "."}),
	})
	if err != nil {
		t.Fatal(err)
	}
	return path
}

type countingEngine struct {
	*engine.StubEngine
	mu    sync.Mutex
	inits int
}

func (e *countingEngine) Init(version int) {
	e.mu.Lock()
	e.inits++
	e.mu.Unlock()
	e.StubEngine.Init(version)
}

func newTestRuntime(t *testing.T) (*Runtime, *countingEngine) {
	t.Helper()
	eng := &countingEngine{StubEngine: engine.NewStubEngine()}
	return NewRuntime(eng, nil), eng
}

func loadTestModel(t *testing.T) (*Model, *countingEngine) {
	t.Helper()
	rt, eng := newTestRuntime(t)
	m, err := rt.LoadModel(writeTestModel(t))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	return m, eng
}

// recorder collects events; safe for use from the worker goroutine.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) count(t EventType) int {
	n := 0
	for _, ev := range r.snapshot() {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// tonePCM returns ms milliseconds of loud 16 kHz PCM16 as bytes.
func tonePCM(ms int) []byte {
	out := make([]byte, 32*ms)
	for i := 0; i < len(out); i += 2 {
		v := int16(6000)
		if (i/2)%2 == 1 {
			v = -6000
		}
		binary.LittleEndian.PutUint16(out[i:], uint16(v))
	}
	return out
}

func silencePCM(ms int) []byte { return make([]byte, 32*ms) }

func checkMonotonic(t *testing.T, events []Event) {
	t.Helper()
	for _, ev := range events {
		for i := 1; i < len(ev.Tokens); i++ {
			if ev.Tokens[i].Time < ev.Tokens[i-1].Time {
				t.Fatalf("%s event: token %d time %v before %v", ev.Type, i, ev.Tokens[i].Time, ev.Tokens[i-1].Time)
			}
		}
	}
}
