//go:build april

// Tests in this file depend on the working directory through NUPI_DEV_MODE
// library lookup and MUST NOT use t.Parallel().

package engine

import (
	"os"
	"path/filepath"
	"testing"
)

// nativeEngine returns an initialised AprilEngine and a model path taken from
// NUPI_APRIL_TEST_MODEL, skipping when either is unavailable.
func nativeEngine(t *testing.T) (Engine, string) {
	t.Helper()
	model := os.Getenv("NUPI_APRIL_TEST_MODEL")
	if model == "" {
		t.Skip("NUPI_APRIL_TEST_MODEL not set")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(wd, "..", "..")
	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("NUPI_DEV_MODE", "1")

	eng, err := NewNativeEngine()
	if err != nil {
		t.Skipf("native libraries not available: %v", err)
	}
	eng.Init(APIVersion)
	return eng, model
}

func TestAprilEngine_ModelMetadata_Integration(t *testing.T) {
	eng, path := nativeEngine(t)

	m := eng.CreateModel(path)
	if m == 0 {
		t.Fatalf("CreateModel(%q) returned null handle", path)
	}
	defer eng.FreeModel(m)

	if eng.ModelSampleRate(m) <= 0 {
		t.Errorf("ModelSampleRate = %d, want > 0", eng.ModelSampleRate(m))
	}
	if eng.ModelName(m) == "" {
		t.Error("ModelName is empty")
	}
	if ORTVersion() == "" {
		t.Error("ORTVersion is empty after loading")
	}
}

func TestAprilEngine_InvalidModel_Integration(t *testing.T) {
	eng, _ := nativeEngine(t)

	path := filepath.Join(t.TempDir(), "bogus.april")
	if err := os.WriteFile(path, []byte("APRILMDL but nothing else"), 0o644); err != nil {
		t.Fatal(err)
	}
	if m := eng.CreateModel(path); m != 0 {
		eng.FreeModel(m)
		t.Fatal("CreateModel accepted a corrupt file")
	}
}

func TestAprilEngine_SilenceSync_Integration(t *testing.T) {
	eng, path := nativeEngine(t)

	m := eng.CreateModel(path)
	if m == 0 {
		t.Fatal("CreateModel returned null handle")
	}
	defer eng.FreeModel(m)

	var results []ResultType
	s := eng.CreateSession(m, SessionConfig{
		Flags:   ConfigFlagSync,
		Handler: func(r ResultType, _ []Token) { results = append(results, r) },
	})
	if s == 0 {
		t.Fatal("CreateSession returned null handle")
	}
	eng.FeedPCM16(s, make([]int16, eng.ModelSampleRate(m)))
	eng.Flush(s)
	eng.FreeSession(s)

	for _, r := range results {
		if r < ResultUnknown || r > ResultSilence {
			t.Errorf("unexpected result tag %d", r)
		}
	}
}
