package transcript

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/nupi-ai/plugin-asr-local-april/internal/asr"
)

func tokens(texts ...string) []asr.Token {
	out := make([]asr.Token, len(texts))
	for i, text := range texts {
		out[i] = asr.Token{Text: text, Time: time.Duration(i) * 500 * time.Millisecond}
	}
	return out
}

func TestAggregator(t *testing.T) {
	var a Aggregator
	a.Handle(asr.Event{Type: asr.EventPartial, Tokens: tokens(" hel")})
	a.Handle(asr.Event{Type: asr.EventPartial, Tokens: tokens(" hel", "lo")})
	if a.Partial() != " hello" {
		t.Fatalf("Partial = %q", a.Partial())
	}
	if a.Committed() != "" {
		t.Fatalf("Committed = %q, want empty", a.Committed())
	}

	a.Handle(asr.Event{Type: asr.EventFinal, Tokens: tokens(" hel", "lo", ".")})
	a.Handle(asr.Event{Type: asr.EventPartial, Tokens: tokens(" wor")})
	if a.Committed() != "hello." {
		t.Fatalf("Committed = %q", a.Committed())
	}
	if a.Text() != "hello. wor" {
		t.Fatalf("Text = %q", a.Text())
	}

	a.Handle(asr.Event{Type: asr.EventCantKeepUp})
	if !a.Unreliable() {
		t.Fatal("expected unreliable after cant-keep-up")
	}
	a.Handle(asr.Event{Type: asr.EventSilence})
	if a.Unreliable() || !a.InSilence() {
		t.Fatalf("unreliable = %v silence = %v after silence", a.Unreliable(), a.InSilence())
	}
}

func TestSRTWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewSRTWriter(&buf)
	w.Handle(asr.Event{Type: asr.EventPartial, Tokens: tokens(" ignored")})
	w.Handle(asr.Event{Type: asr.EventFinal, Tokens: tokens(" hel", "lo")})
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}

	want := "1\n00:00:00,000 --> 00:00:00,500\nhel\n\n" +
		"2\n00:00:00,500 --> 00:00:02,500\nhello\n\n"
	if buf.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestFormatTimestamp(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond
	if got := formatTimestamp(d); got != "01:02:03,045" {
		t.Fatalf("formatTimestamp = %q", got)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSRTWriterKeepsFirstError(t *testing.T) {
	w := NewSRTWriter(failWriter{})
	w.Handle(asr.Event{Type: asr.EventFinal, Tokens: tokens(" a", " b")})
	if w.Err() == nil {
		t.Fatal("expected write error")
	}
}
