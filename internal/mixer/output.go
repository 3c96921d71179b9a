package mixer

import (
	"fmt"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output adapts an Engine to a beep.Streamer. The engine is always asked
// for whole blocks; Output hands them out in whatever chunk size the
// speaker requests, duplicating the mono mix onto both channels.
type Output struct {
	engine *Engine
	block  []float64
	pos    int
}

var _ beep.Streamer = (*Output)(nil)

func NewOutput(e *Engine) *Output {
	return &Output{
		engine: e,
		block:  make([]float64, BlockSize),
		pos:    BlockSize,
	}
}

func (o *Output) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		if o.pos >= len(o.block) {
			o.engine.Mix(o.block)
			o.pos = 0
		}
		s := o.block[o.pos]
		o.pos++
		samples[i] = [2]float64{s, s}
	}
	return len(samples), true
}

func (o *Output) Err() error {
	return nil
}

// StartSpeaker opens the default output device and streams the engine to it
// until StopSpeaker is called.
func StartSpeaker(e *Engine, sampleRate int) error {
	if err := speaker.Init(beep.SampleRate(sampleRate), BlockSize); err != nil {
		return fmt.Errorf("failed to initialize audio output: %w", err)
	}
	speaker.Play(NewOutput(e))
	return nil
}

func StopSpeaker() {
	speaker.Clear()
}
