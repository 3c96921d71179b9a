package library

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/glizzus/livesfx/internal/settings"
)

// maxAssetBytes bounds how much of a single sound file is read into memory.
const maxAssetBytes = 64 << 20

// AssetError is returned when a sound file cannot be read or decoded.
type AssetError struct {
	Source string
	Err    error
}

var _ error = (*AssetError)(nil)

func (e *AssetError) Error() string {
	return fmt.Sprintf("sound asset %s: %v", e.Source, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// Clip is a decoded sound ready for mixing: mono at the catalog rate.
type Clip struct {
	Source  string
	Samples []float64
	Volume  float64
}

// Catalog maps event names to the clips that may play for them.
type Catalog struct {
	SampleRate int
	clips      map[string][]Clip
}

func NewCatalog(sampleRate int, clips map[string][]Clip) *Catalog {
	if clips == nil {
		clips = map[string][]Clip{}
	}
	return &Catalog{SampleRate: sampleRate, clips: clips}
}

// Clips returns the clips for event. Unknown events and events whose files
// all failed to load return an empty slice.
func (c *Catalog) Clips(event string) []Clip {
	if c == nil {
		return nil
	}
	return c.clips[event]
}

// Events returns the event names the catalog knows about, sorted.
func (c *Catalog) Events() []string {
	if c == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(c.clips))
}

// Len returns the total number of clips across all events.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, clips := range c.clips {
		n += len(clips)
	}
	return n
}

// Loader builds catalogs from a Source.
type Loader struct {
	source     Source
	sampleRate int
}

func NewLoader(source Source, sampleRate int) *Loader {
	return &Loader{source: source, sampleRate: sampleRate}
}

// Load decodes every file the policy names. Files that cannot be loaded are
// skipped with a warning; an event keeps whatever clips did load, possibly
// none.
func (l *Loader) Load(ctx context.Context, p *settings.Policy) *Catalog {
	decoded := make(map[string][]float64)
	failed := make(map[string]bool)
	clips := make(map[string][]Clip)

	for _, event := range p.Events() {
		eventClips := []Clip{}
		for _, file := range p.Files(event) {
			if failed[file] {
				continue
			}
			samples, ok := decoded[file]
			if !ok {
				var err error
				samples, err = l.Samples(ctx, file)
				if err != nil {
					slog.Warn("Skipping sound file", "event", event, "file", file, "error", err)
					failed[file] = true
					continue
				}
				decoded[file] = samples
			}
			eventClips = append(eventClips, Clip{
				Source:  file,
				Samples: samples,
				Volume:  p.Volume(file),
			})
		}
		if len(eventClips) == 0 {
			slog.Warn("No playable sound files for event", "event", event)
		}
		clips[event] = eventClips
	}

	catalog := NewCatalog(l.sampleRate, clips)
	slog.Info("Loaded sound catalog", "events", len(clips), "clips", catalog.Len(), "files", len(decoded))
	return catalog
}

// Samples reads and decodes a single file into mono samples at the loader's
// rate.
func (l *Loader) Samples(ctx context.Context, name string) ([]float64, error) {
	rc, err := l.source.Open(ctx, name)
	if err != nil {
		return nil, &AssetError{Source: name, Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxAssetBytes+1))
	if err != nil {
		return nil, &AssetError{Source: name, Err: fmt.Errorf("failed to read: %w", err)}
	}
	if len(data) > maxAssetBytes {
		return nil, &AssetError{Source: name, Err: fmt.Errorf("file is larger than %d bytes", maxAssetBytes)}
	}

	audio, err := decode(name, data)
	if err != nil {
		return nil, &AssetError{Source: name, Err: err}
	}

	if len(audio.samples) == 0 {
		return nil, &AssetError{Source: name, Err: fmt.Errorf("no samples decoded")}
	}

	mono := Downmix(audio.samples, audio.channels)
	return Resample(mono, audio.rate, l.sampleRate), nil
}
