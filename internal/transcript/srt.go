package transcript

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nupi-ai/plugin-asr-local-april/internal/asr"
)

// SRTCueTail is how long the last cue of a result stays on screen.
const SRTCueTail = 2 * time.Second

// SRTWriter renders final results as SubRip cues, one per token, each cue
// showing the text of the result up to and including that token.
type SRTWriter struct {
	w   io.Writer
	n   int
	err error
}

func NewSRTWriter(w io.Writer) *SRTWriter { return &SRTWriter{w: w} }

// Handle writes cues for final events and ignores everything else. The first
// write error is kept and returned by Err.
func (s *SRTWriter) Handle(ev asr.Event) {
	if ev.Type != asr.EventFinal || s.err != nil {
		return
	}
	var text strings.Builder
	for i, tok := range ev.Tokens {
		text.WriteString(tok.Text)
		end := tok.Time + SRTCueTail
		if i+1 < len(ev.Tokens) {
			end = ev.Tokens[i+1].Time
		}
		s.n++
		_, err := fmt.Fprintf(s.w, "%d\n%s --> %s\n%s\n\n",
			s.n, formatTimestamp(tok.Time), formatTimestamp(end), strings.TrimSpace(text.String()))
		if err != nil {
			s.err = err
			return
		}
	}
}

// Err returns the first write error.
func (s *SRTWriter) Err() error { return s.err }

func formatTimestamp(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
