package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Top-level keys of the settings document.
const (
	KeyIDCode        = "idCode"
	KeySoundMappings = "soundMappings"
	KeyVolumes       = "volumeSettings"
	KeyProbabilities = "probabilitySettings"
	KeyMultiLike     = "multiLikeEnabled"
)

// FileList is a list of sound files. Older documents store a single file
// name instead of a list; both forms decode.
type FileList []string

func (l *FileList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		if single == "" {
			*l = FileList{}
		} else {
			*l = FileList{single}
		}
		return nil
	case yaml.SequenceNode:
		many := []string{}
		if err := value.Decode(&many); err != nil {
			return err
		}
		*l = many
		return nil
	default:
		return fmt.Errorf("sound mapping must be a file name or a list, got yaml kind %d", value.Kind)
	}
}

func (l *FileList) UnmarshalJSON(raw []byte) error {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			*l = FileList{}
		} else {
			*l = FileList{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return fmt.Errorf("sound mapping must be a file name or a list: %w", err)
	}
	if many == nil {
		many = []string{}
	}
	*l = many
	return nil
}

// Document is the persisted form of a Policy.
type Document struct {
	IDCode              string              `yaml:"idCode" json:"idCode"`
	SoundMappings       map[string]FileList `yaml:"soundMappings" json:"soundMappings"`
	VolumeSettings      map[string]float64  `yaml:"volumeSettings" json:"volumeSettings"`
	MultiLikeEnabled    *bool               `yaml:"multiLikeEnabled" json:"multiLikeEnabled"`
	ProbabilitySettings map[string]float64  `yaml:"probabilitySettings" json:"probabilitySettings"`
}

// EventName maps a document key such as "giftSound1" or "superChatSound" to
// the event it configures ("gift1", "superChat"). Plain event names pass
// through unchanged.
func EventName(key string) string {
	return strings.Replace(key, "Sound", "", 1)
}

// DocumentKey is the inverse of EventName: "gift1" becomes "giftSound1".
func DocumentKey(event string) string {
	base := strings.TrimRightFunc(event, unicode.IsDigit)
	return base + "Sound" + event[len(base):]
}

// Policy converts the document, applying defaults for missing entries.
func (d *Document) Policy() *Policy {
	p := &Policy{
		IDCode:        d.IDCode,
		Sounds:        make(map[string][]string, len(d.SoundMappings)),
		Volumes:       make(map[string]int, len(d.VolumeSettings)),
		Probabilities: make(map[string]float64, len(d.ProbabilitySettings)),
		MultiLike:     true,
	}
	for key, files := range d.SoundMappings {
		event := EventName(key)
		if _, ok := p.Sounds[event]; !ok {
			p.Sounds[event] = []string{}
		}
		p.Sounds[event] = append(p.Sounds[event], files...)
	}
	for file, percent := range d.VolumeSettings {
		p.Volumes[file] = int(math.Round(percent))
	}
	for key, prob := range d.ProbabilitySettings {
		p.Probabilities[EventName(key)] = prob
	}
	if d.MultiLikeEnabled != nil {
		p.MultiLike = *d.MultiLikeEnabled
	}
	return p
}

// NewDocument converts a policy into its persisted form.
func NewDocument(p *Policy) *Document {
	multiLike := p.MultiLike
	d := &Document{
		IDCode:              p.IDCode,
		SoundMappings:       make(map[string]FileList, len(p.Sounds)),
		VolumeSettings:      make(map[string]float64, len(p.Volumes)),
		MultiLikeEnabled:    &multiLike,
		ProbabilitySettings: make(map[string]float64, len(p.Probabilities)),
	}
	for event, files := range p.Sounds {
		d.SoundMappings[DocumentKey(event)] = append(FileList{}, files...)
	}
	for file, percent := range p.Volumes {
		d.VolumeSettings[file] = float64(percent)
	}
	for event, prob := range p.Probabilities {
		d.ProbabilitySettings[DocumentKey(event)] = prob
	}
	return d
}

// decodeFields builds a document from key/value pairs where every value is
// the JSON encoding of that key's entry. Unknown keys are ignored.
func decodeFields(fields map[string]string) (*Document, error) {
	d := &Document{}
	targets := map[string]any{
		KeyIDCode:        &d.IDCode,
		KeySoundMappings: &d.SoundMappings,
		KeyVolumes:       &d.VolumeSettings,
		KeyProbabilities: &d.ProbabilitySettings,
		KeyMultiLike:     &d.MultiLikeEnabled,
	}
	for key, raw := range fields {
		target, ok := targets[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return nil, fmt.Errorf("failed to decode setting %q: %w", key, err)
		}
	}
	return d, nil
}

// encodeFields is the inverse of decodeFields.
func encodeFields(d *Document) (map[string]string, error) {
	values := map[string]any{
		KeyIDCode:        d.IDCode,
		KeySoundMappings: d.SoundMappings,
		KeyVolumes:       d.VolumeSettings,
		KeyProbabilities: d.ProbabilitySettings,
		KeyMultiLike:     d.MultiLikeEnabled,
	}
	fields := make(map[string]string, len(values))
	for key, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode setting %q: %w", key, err)
		}
		fields[key] = string(raw)
	}
	return fields, nil
}
