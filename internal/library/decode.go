package library

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/jonas747/ogg"
	"layeh.com/gopus"
)

// pcm is decoded audio: interleaved samples in [-1, 1].
type pcm struct {
	samples  []float64
	channels int
	rate     int
}

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// supported reports whether name has an extension decode understands.
func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave", ".ogg", ".opus":
		return true
	}
	return false
}

func decode(name string, data []byte) (*pcm, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave":
		return decodeWAV(bytes.NewReader(data))
	case ".ogg", ".opus":
		return decodeOggOpus(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func decodeWAV(r io.ReadSeeker) (*pcm, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("wav file has no usable format")
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, bitDepth)
	}
	scale := float64(int64(1) << (bitDepth - 1))

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			// 8-bit wav samples are unsigned.
			samples[i] = float64(v-128) / 128
		} else {
			samples[i] = float64(v) / scale
		}
	}

	return &pcm{
		samples:  samples,
		channels: buf.Format.NumChannels,
		rate:     buf.Format.SampleRate,
	}, nil
}

const (
	opusRate = 48000
	// opusMaxFrame is the largest frame an Opus packet can carry (120 ms).
	opusMaxFrame = 5760
)

// decodeOggOpus decodes an Ogg Opus stream. The first packet is the OpusHead
// header and the second the OpusTags comment block; the rest is audio.
func decodeOggOpus(r io.Reader) (*pcm, error) {
	packets := ogg.NewPacketDecoder(ogg.NewDecoder(r))

	head, _, err := packets.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to read opus header: %w", err)
	}
	if len(head) < 19 || string(head[:8]) != "OpusHead" {
		return nil, fmt.Errorf("%w: missing OpusHead", ErrUnsupportedFormat)
	}
	channels := int(head[9])
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channel opus", ErrUnsupportedFormat, channels)
	}
	preSkip := int(binary.LittleEndian.Uint16(head[10:12]))

	if _, _, err := packets.Decode(); err != nil {
		return nil, fmt.Errorf("failed to read opus tags: %w", err)
	}

	dec, err := gopus.NewDecoder(opusRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	var decoded []int16
	for {
		packet, _, err := packets.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("failed to read opus packet: %w", err)
		}
		if len(packet) == 0 {
			continue
		}
		frame, err := dec.Decode(packet, opusMaxFrame, false)
		if err != nil {
			return nil, fmt.Errorf("failed to decode opus packet: %w", err)
		}
		decoded = append(decoded, frame...)
	}

	skip := min(preSkip*channels, len(decoded))
	decoded = decoded[skip:]

	samples := make([]float64, len(decoded))
	for i, v := range decoded {
		samples[i] = float64(v) / 32768
	}
	return &pcm{samples: samples, channels: channels, rate: opusRate}, nil
}
