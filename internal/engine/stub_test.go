package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nupi-ai/plugin-asr-local-april/internal/modelfile"
)

type record struct {
	result ResultType
	tokens []Token
}

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.april")
	info := modelfile.Info{
		Language:    "en-us",
		Name:        "Stub English",
		Description: "fixture",
		Params:      modelfile.DefaultParams([]string{"<blk>", " hel", "lo", "."}),
	}
	if err := modelfile.WriteFile(path, info); err != nil {
		t.Fatal(err)
	}
	return path
}

func newStubSession(t *testing.T) (*StubEngine, SessionHandle, *[]record) {
	t.Helper()
	eng := NewStubEngine()
	eng.Init(APIVersion)
	m := eng.CreateModel(writeModel(t))
	if m == 0 {
		t.Fatal("CreateModel returned null handle")
	}
	var got []record
	s := eng.CreateSession(m, SessionConfig{
		Flags: ConfigFlagSync,
		Handler: func(result ResultType, tokens []Token) {
			got = append(got, record{result, tokens})
		},
	})
	if s == 0 {
		t.Fatal("CreateSession returned null handle")
	}
	return eng, s, &got
}

func tone(ms int) []int16 {
	out := make([]int16, 16*ms)
	for i := range out {
		if i%2 == 0 {
			out[i] = 4000
		} else {
			out[i] = -4000
		}
	}
	return out
}

func silence(ms int) []int16 { return make([]int16, 16*ms) }

func TestStubModelMetadata(t *testing.T) {
	eng := NewStubEngine()
	eng.Init(APIVersion)
	m := eng.CreateModel(writeModel(t))
	if m == 0 {
		t.Fatal("CreateModel returned null handle")
	}
	if got := eng.ModelName(m); got != "Stub English" {
		t.Errorf("ModelName = %q", got)
	}
	if got := eng.ModelDescription(m); got != "fixture" {
		t.Errorf("ModelDescription = %q", got)
	}
	if got := eng.ModelLanguage(m); got != "en-us" {
		t.Errorf("ModelLanguage = %q", got)
	}
	if got := eng.ModelSampleRate(m); got != 16000 {
		t.Errorf("ModelSampleRate = %d, want 16000", got)
	}
	eng.FreeModel(m)
	if eng.LiveModels() != 0 || eng.FreedModels() != 1 {
		t.Fatalf("live = %d freed = %d, want 0/1", eng.LiveModels(), eng.FreedModels())
	}
}

func TestStubCreateModelRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.april")
	if err := os.WriteFile(path, []byte("definitely not a model"), 0o644); err != nil {
		t.Fatal(err)
	}
	eng := NewStubEngine()
	eng.Init(APIVersion)
	if m := eng.CreateModel(path); m != 0 {
		t.Fatalf("CreateModel = %d, want null handle", m)
	}
	if eng.CreateModelAttempts() != 1 {
		t.Fatalf("attempts = %d, want 1", eng.CreateModelAttempts())
	}
}

func TestStubPanicsBeforeInit(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewStubEngine().CreateModel("whatever.april")
}

func TestStubVoicedFramesEmitPartials(t *testing.T) {
	eng, s, got := newStubSession(t)
	eng.FeedPCM16(s, tone(300))

	if len(*got) != 3 {
		t.Fatalf("results = %d, want 3", len(*got))
	}
	for i, r := range *got {
		if r.result != ResultPartial {
			t.Errorf("result %d = %d, want partial", i, r.result)
		}
		if len(r.tokens) != i+1 {
			t.Errorf("result %d has %d tokens, want %d", i, len(r.tokens), i+1)
		}
	}
	last := (*got)[2].tokens
	if last[0].Text != " hel" || last[1].Text != "lo" || last[2].Text != "." {
		t.Errorf("tokens = %+v", last)
	}
	if last[0].Flags != TokenFlagWordBoundary || last[1].Flags != TokenFlagWordBoundary || last[2].Flags != TokenFlagSentenceEnd {
		t.Errorf("flags = %d %d %d", last[0].Flags, last[1].Flags, last[2].Flags)
	}
	if last[0].TimeMs != 0 || last[1].TimeMs != 100 || last[2].TimeMs != 200 {
		t.Errorf("times = %d %d %d", last[0].TimeMs, last[1].TimeMs, last[2].TimeMs)
	}
}

func TestStubSilenceAfterSpeechFinalizes(t *testing.T) {
	eng, s, got := newStubSession(t)
	eng.FeedPCM16(s, tone(200))
	eng.FeedPCM16(s, silence(300))

	last := (*got)[len(*got)-1]
	if last.result != ResultFinal {
		t.Fatalf("last result = %d, want final", last.result)
	}
	if len(last.tokens) != 2 {
		t.Fatalf("final tokens = %d, want 2", len(last.tokens))
	}
}

func TestStubSilenceReportedOncePerPeriod(t *testing.T) {
	eng, s, got := newStubSession(t)
	eng.FeedPCM16(s, silence(2000))

	if len(*got) != 1 || (*got)[0].result != ResultSilence {
		t.Fatalf("results = %+v, want one silence", *got)
	}
}

func TestStubFlushCommitsPending(t *testing.T) {
	eng, s, got := newStubSession(t)
	eng.FeedPCM16(s, tone(150))
	eng.Flush(s)

	last := (*got)[len(*got)-1]
	if last.result != ResultFinal {
		t.Fatalf("last result = %d, want final", last.result)
	}
	if len(last.tokens) != 2 {
		t.Fatalf("final tokens = %d, want 2 (one full frame plus the flushed remainder)", len(last.tokens))
	}
}

func TestStubFlushWithoutAudio(t *testing.T) {
	eng, s, got := newStubSession(t)
	eng.Flush(s)
	if len(*got) != 0 {
		t.Fatalf("results = %+v, want none", *got)
	}
}

func TestStubFreeModelWithLiveSessionPanics(t *testing.T) {
	eng, s, _ := newStubSession(t)
	if eng.LiveSessions() != 1 {
		t.Fatalf("LiveSessions = %d, want 1", eng.LiveSessions())
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
		eng.FreeSession(s)
	}()
	eng.FreeModel(ModelHandle(1))
}

func TestStubRejectsUnknownFlags(t *testing.T) {
	eng := NewStubEngine()
	eng.Init(APIVersion)
	m := eng.CreateModel(writeModel(t))
	s := eng.CreateSession(m, SessionConfig{Flags: 7, Handler: func(ResultType, []Token) {}})
	if s != 0 {
		t.Fatalf("CreateSession = %d, want null handle", s)
	}
}
