package asr

import (
	"sync"
	"time"

	"github.com/nupi-ai/plugin-asr-local-april/internal/engine"
)

// speedupSmoothing weights each new measurement in the speedup average.
const speedupSmoothing = 0.2

// item is either audio or, when done is set, a flush marker.
type item struct {
	pcm  []int16
	done chan struct{}
}

// worker is the single consumer of an async session's queue.
type worker struct {
	s        *Session
	rate     int
	capacity int // samples

	notify chan struct{}
	quit   chan struct{}
	done   chan struct{}

	mu          sync.Mutex
	items       []item
	queued      int
	overflowing bool
	cantKeepUp  bool
	ratio       float64
	measured    bool
}

func newWorker(s *Session, rate, capacity int) *worker {
	return &worker{
		s:        s,
		rate:     rate,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *worker) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// push enqueues audio, applying the mode's overflow policy.
func (w *worker) push(pcm []int16) {
	w.mu.Lock()
	if w.queued+len(pcm) > w.capacity {
		if w.s.mode == ModeAsyncNonRealtime {
			if !w.overflowing {
				w.overflowing = true
				w.cantKeepUp = true
				w.s.logger.Warn("audio queue full, dropping input", "queued_samples", w.queued)
			}
			w.mu.Unlock()
			w.wake()
			return
		}
		if !w.overflowing {
			w.overflowing = true
			w.s.logger.Warn("audio queue full, dropping oldest audio", "queued_samples", w.queued)
		}
		if len(pcm) > w.capacity {
			pcm = pcm[len(pcm)-w.capacity:]
		}
		w.dropOldest(w.queued + len(pcm) - w.capacity)
	}
	w.items = append(w.items, item{pcm: pcm})
	w.queued += len(pcm)
	w.mu.Unlock()
	w.wake()
}

// dropOldest discards n samples from the head of the queue, keeping flush
// markers in place. Callers hold w.mu.
func (w *worker) dropOldest(n int) {
	kept := w.items[:0]
	for _, it := range w.items {
		if n > 0 && it.done == nil {
			if len(it.pcm) <= n {
				n -= len(it.pcm)
				w.queued -= len(it.pcm)
				continue
			}
			it.pcm = it.pcm[n:]
			w.queued -= n
			n = 0
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(w.items); i++ {
		w.items[i] = item{}
	}
	w.items = kept
}

// pushFlush enqueues a flush marker and returns the channel closed once the
// worker has processed it.
func (w *worker) pushFlush() chan struct{} {
	done := make(chan struct{})
	w.mu.Lock()
	w.items = append(w.items, item{done: done})
	w.mu.Unlock()
	w.wake()
	return done
}

// pop returns the next unit of work. cantKeepUp is reported ahead of any
// further audio after an overflow. An empty queue ends the overflow episode.
func (w *worker) pop() (it item, cantKeepUp, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cantKeepUp {
		w.cantKeepUp = false
		return item{}, true, true
	}
	if len(w.items) == 0 {
		w.overflowing = false
		return item{}, false, false
	}
	it = w.items[0]
	w.items[0] = item{}
	w.items = w.items[1:]
	w.queued -= len(it.pcm)
	return it, false, true
}

func (w *worker) run() {
	defer close(w.done)
	for {
		if w.step() {
			continue
		}
		select {
		case <-w.notify:
		case <-w.quit:
			for w.step() {
			}
			return
		}
	}
}

// step processes one unit of work and reports whether there was any.
func (w *worker) step() bool {
	it, cantKeepUp, ok := w.pop()
	switch {
	case !ok:
		return false
	case cantKeepUp:
		w.s.dispatch(engine.ResultErrorCantKeepUp, nil)
	case it.done != nil:
		w.s.eng.Flush(w.s.handle)
		close(it.done)
	default:
		start := time.Now()
		w.s.eng.FeedPCM16(w.s.handle, it.pcm)
		w.observe(time.Since(start), len(it.pcm))
	}
	return true
}

func (w *worker) observe(elapsed time.Duration, samples int) {
	audio := time.Duration(samples) * time.Second / time.Duration(w.rate)
	if audio <= 0 {
		return
	}
	r := float64(elapsed) / float64(audio)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.measured {
		w.ratio = r
		w.measured = true
		return
	}
	w.ratio += speedupSmoothing * (r - w.ratio)
}

func (w *worker) speedup() float32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.ratio
	if w.overflowing && r < 1 {
		r = 1
	}
	return float32(r)
}

// stop abandons queued audio behind the last flush marker, lets the worker
// finish everything before it, and waits for the worker to exit.
func (w *worker) stop() {
	w.mu.Lock()
	last := -1
	for i, it := range w.items {
		if it.done != nil {
			last = i
		}
	}
	for i := last + 1; i < len(w.items); i++ {
		w.queued -= len(w.items[i].pcm)
		w.items[i] = item{}
	}
	w.items = w.items[:last+1]
	w.cantKeepUp = false
	w.mu.Unlock()

	close(w.quit)
	<-w.done
}
