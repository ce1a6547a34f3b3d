package asr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadModelMetadata(t *testing.T) {
	m, _ := loadTestModel(t)
	defer m.Close()

	if m.Name() != "Test Model" {
		t.Errorf("Name = %q", m.Name())
	}
	if m.Description() != "asr fixture" {
		t.Errorf("Description = %q", m.Description())
	}
	if m.Language() != "en" {
		t.Errorf("Language = %q", m.Language())
	}
	if m.SampleRate() != 16000 {
		t.Errorf("SampleRate = %d, want 16000", m.SampleRate())
	}
}

func TestLoadModelFileNotFound(t *testing.T) {
	rt, eng := newTestRuntime(t)
	_, err := rt.LoadModel(filepath.Join(t.TempDir(), "missing.april"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
	if eng.CreateModelAttempts() != 0 {
		t.Fatalf("CreateModel attempts = %d, want 0", eng.CreateModelAttempts())
	}
}

func TestLoadModelDirectory(t *testing.T) {
	rt, eng := newTestRuntime(t)
	_, err := rt.LoadModel(t.TempDir())
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
	if eng.CreateModelAttempts() != 0 {
		t.Fatalf("CreateModel attempts = %d, want 0", eng.CreateModelAttempts())
	}
}

func TestLoadModelInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("not a model"), 0o644); err != nil {
		t.Fatal(err)
	}
	rt, eng := newTestRuntime(t)
	_, err := rt.LoadModel(path)
	if !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("err = %v, want ErrInvalidModel", err)
	}
	if eng.CreateModelAttempts() != 1 {
		t.Fatalf("CreateModel attempts = %d, want 1", eng.CreateModelAttempts())
	}
}

func TestEngineInitOnce(t *testing.T) {
	rt, eng := newTestRuntime(t)
	path := writeTestModel(t)
	for i := 0; i < 3; i++ {
		m, err := rt.LoadModel(path)
		if err != nil {
			t.Fatal(err)
		}
		m.Close()
	}
	if eng.inits != 1 {
		t.Fatalf("Init calls = %d, want 1", eng.inits)
	}
}

func TestModelFreedAfterLastShare(t *testing.T) {
	m, eng := loadTestModel(t)
	rec := &recorder{}
	s1, err := NewSession(m, ModeSync, rec.handle)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := NewSession(m, ModeAsyncRealtime, rec.handle)
	if err != nil {
		t.Fatal(err)
	}

	m.Close()
	m.Close()
	if eng.FreedModels() != 0 {
		t.Fatal("model freed while sessions are open")
	}
	if _, err := NewSession(m, ModeSync, rec.handle); !errors.Is(err, ErrModelClosed) {
		t.Fatalf("NewSession after Close: err = %v, want ErrModelClosed", err)
	}

	s1.Close()
	if eng.FreedModels() != 0 {
		t.Fatal("model freed while a session is open")
	}
	s2.Close()
	s2.Close()
	if eng.FreedModels() != 1 {
		t.Fatalf("FreedModels = %d, want 1", eng.FreedModels())
	}
	if eng.LiveModels() != 0 || eng.LiveSessions() != 0 {
		t.Fatalf("live models = %d sessions = %d, want 0/0", eng.LiveModels(), eng.LiveSessions())
	}
	if m.SampleRate() != 0 {
		t.Fatalf("SampleRate after free = %d, want 0", m.SampleRate())
	}
}

func TestModelCloseWithoutSessions(t *testing.T) {
	m, eng := loadTestModel(t)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if eng.FreedModels() != 1 {
		t.Fatalf("FreedModels = %d, want 1", eng.FreedModels())
	}
}
