package engine

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/nupi-ai/plugin-asr-local-april/internal/modelfile"
)

const (
	// StubFrameMs is the analysis frame of the stub recogniser.
	StubFrameMs = 100
	// StubVoiceRMS is the frame RMS at or above which a frame counts as speech.
	StubVoiceRMS = 500
	// StubFinalSilenceMs of silence after speech commits the hypothesis.
	StubFinalSilenceMs = 300
	// StubSilenceMs of silence with nothing pending reports ResultSilence.
	StubSilenceMs = 500

	// StubLogProb is the fixed log probability of stub tokens.
	StubLogProb float32 = -0.25
)

// StubEngine is a deterministic stand-in for the april engine. It reads real
// .april headers for metadata and vocabulary, then "recognises" one token per
// voiced frame. It does no inference.
type StubEngine struct {
	// FrameDelay is slept once per analysed frame. Set before use.
	FrameDelay time.Duration

	mu             sync.Mutex
	version        int
	nextHandle     uint64
	models         map[ModelHandle]*stubModel
	sessions       map[SessionHandle]*stubSession
	createAttempts int
	freedModels    int
}

type stubModel struct {
	info     modelfile.Info
	vocab    []string
	sessions int
}

type stubSession struct {
	model   ModelHandle
	handler ResultHandler
	flags   uint32

	vocab        []string
	sampleRate   int
	frameSamples int

	pending   []int16
	fed       uint64
	tokens    []Token
	nextToken int
	silenceMs int
	silenced  bool
}

// NewStubEngine returns an uninitialised StubEngine.
func NewStubEngine() *StubEngine {
	return &StubEngine{
		models:   make(map[ModelHandle]*stubModel),
		sessions: make(map[SessionHandle]*stubSession),
	}
}

// Init records the API version. Other methods panic until Init is called.
func (e *StubEngine) Init(version int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.version = version
}

func (e *StubEngine) mustInit() {
	if e.version == 0 {
		panic("engine: stub used before Init")
	}
}

// CreateModel decodes the container header at path.
func (e *StubEngine) CreateModel(path string) ModelHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustInit()
	e.createAttempts++

	info, err := modelfile.Read(path)
	if err != nil {
		return 0
	}
	var vocab []string
	for i, tok := range info.Params.Tokens {
		if int32(i) != info.Params.BlankID && tok != "" {
			vocab = append(vocab, tok)
		}
	}
	if len(vocab) == 0 {
		return 0
	}

	e.nextHandle++
	h := ModelHandle(e.nextHandle)
	e.models[h] = &stubModel{info: info, vocab: vocab}
	return h
}

func (e *StubEngine) model(m ModelHandle) *stubModel {
	mdl, ok := e.models[m]
	if !ok {
		panic("engine: unknown model handle")
	}
	return mdl
}

func (e *StubEngine) ModelName(m ModelHandle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model(m).info.Name
}

func (e *StubEngine) ModelDescription(m ModelHandle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model(m).info.Description
}

func (e *StubEngine) ModelLanguage(m ModelHandle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model(m).info.Language
}

func (e *StubEngine) ModelSampleRate(m ModelHandle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(e.model(m).info.Params.SampleRate)
}

// FreeModel panics if sessions created from m are still alive.
func (e *StubEngine) FreeModel(m ModelHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model(m).sessions > 0 {
		panic("engine: model freed while sessions are alive")
	}
	delete(e.models, m)
	e.freedModels++
}

// CreateSession returns the zero handle for an unknown flag word.
func (e *StubEngine) CreateSession(m ModelHandle, cfg SessionConfig) SessionHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustInit()
	mdl := e.model(m)
	if cfg.Flags > ConfigFlagAsyncNonRealtime || cfg.Handler == nil {
		return 0
	}

	rate := int(mdl.info.Params.SampleRate)
	mdl.sessions++
	e.nextHandle++
	h := SessionHandle(e.nextHandle)
	e.sessions[h] = &stubSession{
		model:        m,
		handler:      cfg.Handler,
		flags:        cfg.Flags,
		vocab:        mdl.vocab,
		sampleRate:   rate,
		frameSamples: rate * StubFrameMs / 1000,
	}
	return h
}

func (e *StubEngine) session(s SessionHandle) *stubSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[s]
	if !ok {
		panic("engine: unknown session handle")
	}
	return sess
}

// FeedPCM16 analyses every complete frame and invokes the handler inline.
func (e *StubEngine) FeedPCM16(s SessionHandle, samples []int16) {
	sess := e.session(s)
	sess.pending = append(sess.pending, samples...)
	for len(sess.pending) >= sess.frameSamples {
		e.frame(sess, sess.pending[:sess.frameSamples])
		sess.pending = sess.pending[sess.frameSamples:]
	}
	if len(sess.pending) == 0 {
		sess.pending = nil
	}
}

// Flush analyses the partial frame, if any, and commits pending tokens.
func (e *StubEngine) Flush(s SessionHandle) {
	sess := e.session(s)
	if len(sess.pending) > 0 {
		e.frame(sess, sess.pending)
		sess.pending = nil
	}
	if len(sess.tokens) > 0 {
		sess.finalize()
	}
}

// RealtimeSpeedup is always zero; the stub never falls behind on its own.
func (e *StubEngine) RealtimeSpeedup(s SessionHandle) float32 {
	e.session(s)
	return 0
}

func (e *StubEngine) FreeSession(s SessionHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[s]
	if !ok {
		panic("engine: unknown session handle")
	}
	delete(e.sessions, s)
	if mdl, ok := e.models[sess.model]; ok {
		mdl.sessions--
	}
}

// LiveModels reports models created and not yet freed.
func (e *StubEngine) LiveModels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.models)
}

// LiveSessions reports sessions created and not yet freed.
func (e *StubEngine) LiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// CreateModelAttempts counts CreateModel calls, successful or not.
func (e *StubEngine) CreateModelAttempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createAttempts
}

// FreedModels counts FreeModel calls.
func (e *StubEngine) FreedModels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.freedModels
}

func (e *StubEngine) frame(sess *stubSession, samples []int16) {
	if e.FrameDelay > 0 {
		time.Sleep(e.FrameDelay)
	}
	startMs := sess.fed * 1000 / uint64(sess.sampleRate)
	sess.fed += uint64(len(samples))
	frameMs := len(samples) * 1000 / sess.sampleRate

	if rms(samples) >= StubVoiceRMS {
		sess.silenceMs = 0
		sess.silenced = false
		text := sess.vocab[sess.nextToken%len(sess.vocab)]
		sess.nextToken++
		sess.tokens = append(sess.tokens, Token{
			Text:    text,
			LogProb: StubLogProb,
			Flags:   tokenFlags(text),
			TimeMs:  startMs,
		})
		sess.handler(ResultPartial, append([]Token(nil), sess.tokens...))
		return
	}

	sess.silenceMs += frameMs
	if len(sess.tokens) > 0 {
		if sess.silenceMs >= StubFinalSilenceMs {
			sess.finalize()
		}
		return
	}
	if sess.silenceMs >= StubSilenceMs && !sess.silenced {
		sess.silenced = true
		sess.handler(ResultSilence, nil)
	}
}

func (sess *stubSession) finalize() {
	tokens := sess.tokens
	sess.tokens = nil
	sess.handler(ResultFinal, tokens)
}

// tokenFlags marks pieces ending in sentence punctuation as sentence ends
// and every other piece as a word boundary.
func tokenFlags(text string) uint32 {
	if strings.HasSuffix(text, ".") || strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!") {
		return TokenFlagSentenceEnd
	}
	return TokenFlagWordBoundary
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
