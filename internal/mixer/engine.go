package mixer

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/glizzus/livesfx/internal/generator"
	"github.com/glizzus/livesfx/internal/library"
)

// BlockSize is the number of frames produced per output callback.
const BlockSize = 1024

// Recorder observes playback decisions.
type Recorder interface {
	Triggered(event string)
	Dropped(event string)
}

type voice struct {
	id    string
	event string
	data  []float64
	pos   int
}

// Engine mixes the active voices into output blocks.
type Engine struct {
	catalog  atomic.Pointer[library.Catalog]
	ids      generator.Generator[string]
	pick     func(n int) int
	recorder Recorder

	mu     sync.Mutex
	slots  []*voice
	active int
}

type Option func(*Engine)

// WithPicker replaces the uniform random clip choice. pick receives the
// number of candidate clips and returns an index.
func WithPicker(pick func(n int) int) Option {
	return func(e *Engine) {
		e.pick = pick
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// NewEngine creates an engine with room for maxVoices simultaneous sounds.
func NewEngine(maxVoices int, opts ...Option) *Engine {
	e := &Engine{
		ids:   &generator.Counter{Prefix: "voice-"},
		pick:  rand.IntN,
		slots: make([]*voice, max(maxVoices, 1)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.catalog.Store(library.NewCatalog(0, nil))
	return e
}

// SetCatalog swaps the clips future triggers draw from. Voices already
// playing keep their own buffers.
func (e *Engine) SetCatalog(c *library.Catalog) {
	e.catalog.Store(c)
}

func (e *Engine) Catalog() *library.Catalog {
	return e.catalog.Load()
}

// Trigger starts one randomly chosen clip of event at volume times the
// clip's own volume. It reports whether a voice was started; events without
// clips and triggers arriving while every slot is busy start nothing.
func (e *Engine) Trigger(event string, volume float64) bool {
	clips := e.catalog.Load().Clips(event)
	if len(clips) == 0 {
		slog.Debug("No clips for event", "event", event)
		return false
	}

	clip := clips[e.pick(len(clips))]
	gain := volume * clip.Volume
	data := make([]float64, len(clip.Samples))
	for i, s := range clip.Samples {
		data[i] = s * gain
	}

	id, err := e.ids.Next()
	if err != nil {
		slog.Warn("Failed to generate voice id", "error", err)
	}
	v := &voice{id: id, event: event, data: data}

	e.mu.Lock()
	placed := false
	for i, slot := range e.slots {
		if slot == nil {
			e.slots[i] = v
			e.active++
			placed = true
			break
		}
	}
	e.mu.Unlock()

	if !placed {
		slog.Warn("All voices busy, dropping sound", "event", event, "file", clip.Source)
		if e.recorder != nil {
			e.recorder.Dropped(event)
		}
		return false
	}

	slog.Debug("Playing sound", "event", event, "file", clip.Source, "voice", id, "volume", gain)
	if e.recorder != nil {
		e.recorder.Triggered(event)
	}
	return true
}

// Mix fills block with the next len(block) samples of every active voice.
// Voices that run out are evicted. If any voice contributed and the peak
// magnitude exceeds 1, the whole block is scaled down by that peak; a block
// nothing played into stays silent.
func (e *Engine) Mix(block []float64) {
	clear(block)

	contributed := false
	e.mu.Lock()
	for _, v := range e.slots {
		if v == nil {
			continue
		}
		n := min(len(block), len(v.data)-v.pos)
		for j := range n {
			block[j] += v.data[v.pos+j]
		}
		v.pos += n
		contributed = true
	}
	for i, v := range e.slots {
		if v != nil && v.pos >= len(v.data) {
			e.slots[i] = nil
			e.active--
		}
	}
	e.mu.Unlock()

	if !contributed {
		return
	}

	var peak float64
	for _, s := range block {
		peak = max(peak, math.Abs(s))
	}
	if peak > 1 {
		for i := range block {
			block[i] /= peak
		}
	}
}

// Active returns the number of voices currently playing.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}
