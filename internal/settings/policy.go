package settings

import (
	"maps"
	"slices"
)

// MaxLikeRepeats caps the number of sounds a single like burst may play.
const MaxLikeRepeats = 5

// Event names understood by the engine.
const (
	EventLike      = "like"
	EventGift1     = "gift1"
	EventGift2     = "gift2"
	EventGift3     = "gift3"
	EventMessage   = "message"
	EventSuperChat = "superChat"
	EventGuard     = "guard"
	EventEnter     = "enter"
	EventFollow    = "follow"
)

// Policy is the read-only view of the settings the engine acts on.
type Policy struct {
	IDCode        string
	Sounds        map[string][]string
	Volumes       map[string]int
	Probabilities map[string]float64
	MultiLike     bool
}

// Default returns the policy used when the store holds nothing yet.
func Default() *Policy {
	return &Policy{
		Sounds: map[string][]string{
			EventLike:      {"Waga.wav"},
			EventGift1:     {"Ouye.wav"},
			EventGift2:     {"Hachimi.wav"},
			EventGift3:     {"Wow.wav"},
			EventMessage:   {"Manbo1.wav"},
			EventSuperChat: {"SuperChat.wav"},
			EventGuard:     {"Guard.wav"},
			EventEnter:     {"Enter.wav"},
			EventFollow:    {"Follow.wav"},
		},
		Volumes: map[string]int{},
		Probabilities: map[string]float64{
			EventLike:    1.0,
			EventMessage: 1.0,
		},
		MultiLike: true,
	}
}

// Events returns the configured event names in sorted order.
func (p *Policy) Events() []string {
	return slices.Sorted(maps.Keys(p.Sounds))
}

// Files returns the sound files configured for event.
func (p *Policy) Files(event string) []string {
	return p.Sounds[event]
}

// Volume returns the normalized volume of file in [0, 1]. Files without a
// setting play at full volume.
func (p *Policy) Volume(file string) float64 {
	percent, ok := p.Volumes[file]
	if !ok {
		return 1.0
	}
	return float64(min(max(percent, 0), 100)) / 100.0
}

// Probability returns the chance in [0, 1] that event plays when it is
// gated. Events without a setting always play.
func (p *Policy) Probability(event string) float64 {
	prob, ok := p.Probabilities[event]
	if !ok {
		return 1.0
	}
	return min(max(prob, 0), 1)
}

// Clone returns a deep copy that can be modified without affecting p.
func (p *Policy) Clone() *Policy {
	c := &Policy{
		IDCode:        p.IDCode,
		Sounds:        make(map[string][]string, len(p.Sounds)),
		Volumes:       maps.Clone(p.Volumes),
		Probabilities: maps.Clone(p.Probabilities),
		MultiLike:     p.MultiLike,
	}
	for event, files := range p.Sounds {
		c.Sounds[event] = slices.Clone(files)
	}
	if c.Volumes == nil {
		c.Volumes = map[string]int{}
	}
	if c.Probabilities == nil {
		c.Probabilities = map[string]float64{}
	}
	return c
}
