package proto_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/glizzus/livesfx/internal/proto"
	"github.com/google/go-cmp/cmp"
)

func header(total int32, headerLen int16, version int16, op int32, seq int32) []byte {
	buf := make([]byte, proto.HeaderLength)
	binary.BigEndian.PutUint32(buf[0:4], uint32(total))
	binary.BigEndian.PutUint16(buf[4:6], uint16(headerLen))
	binary.BigEndian.PutUint16(buf[6:8], uint16(version))
	binary.BigEndian.PutUint32(buf[8:12], uint32(op))
	binary.BigEndian.PutUint32(buf[12:16], uint32(seq))
	return buf
}

func TestEncodeLayout(t *testing.T) {
	got := proto.Encode(proto.OpAuth, 9, []byte(`{"a":1}`))
	want := append(header(23, 16, 0, 7, 9), []byte(`{"a":1}`)...)
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = %x, want %x", got, want)
	}
}

func TestEncodeEmptyBody(t *testing.T) {
	got := proto.Encode(proto.OpHeartbeat, 0, nil)
	if !bytes.Equal(got, header(16, 16, 0, 2, 0)) {
		t.Errorf("Encode() = %x", got)
	}
}

func TestRoundTrip(t *testing.T) {
	tc := []struct {
		name string
		op   proto.Operation
		seq  int32
		body []byte
	}{
		{name: "empty heartbeat", op: proto.OpHeartbeat, seq: 0, body: []byte{}},
		{name: "auth body", op: proto.OpAuth, seq: 1, body: []byte(`{"key":"value"}`)},
		{name: "negative sequence", op: proto.OpMessage, seq: -42, body: []byte("x")},
		{name: "negative operation", op: proto.Operation(-1), seq: 7, body: []byte("y")},
		{name: "largest body", op: proto.OpMessage, seq: 1 << 30, body: bytes.Repeat([]byte{0xab}, proto.MaxPacketBytes-proto.HeaderLength)},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			f, err := proto.Decode(proto.Encode(test.op, test.seq, test.body))
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if f.Operation != test.op || f.Sequence != test.seq {
				t.Errorf("got op %v seq %d, want op %v seq %d", f.Operation, f.Sequence, test.op, test.seq)
			}
			if diff := cmp.Diff(test.body, f.Body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			if f.HeaderLength != proto.HeaderLength || f.Version != 0 {
				t.Errorf("unexpected header fields: %+v", f)
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tc := []struct {
		name string
		buf  []byte
		want error
	}{
		{name: "empty buffer", buf: nil, want: proto.ErrIncompleteHeader},
		{name: "fifteen bytes", buf: make([]byte, 15), want: proto.ErrIncompleteHeader},
		{name: "length above maximum", buf: header(3000, 16, 0, 5, 0), want: proto.ErrInvalidLength},
		{name: "negative length", buf: header(-1, 16, 0, 5, 0), want: proto.ErrInvalidLength},
		{name: "length below header", buf: header(10, 16, 0, 5, 0), want: proto.ErrInvalidLength},
		{name: "wrong header length", buf: header(16, 12, 0, 5, 0), want: proto.ErrInvalidHeaderLength},
		{name: "truncated body", buf: append(header(100, 16, 0, 5, 0), make([]byte, 34)...), want: proto.ErrTruncatedBody},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			f, err := proto.Decode(test.buf)
			if !errors.Is(err, test.want) {
				t.Fatalf("Decode() error = %v, want %v", err, test.want)
			}
			if f != nil {
				t.Errorf("Decode() returned a frame alongside an error: %+v", f)
			}
		})
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	buf := append(proto.Encode(proto.OpMessage, 3, []byte("abc")), []byte("trailing")...)
	f, err := proto.Decode(buf)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if string(f.Body) != "abc" {
		t.Errorf("body = %q, want %q", f.Body, "abc")
	}
}

func TestDecodeCopiesBody(t *testing.T) {
	buf := proto.Encode(proto.OpMessage, 0, []byte("abc"))
	f, err := proto.Decode(buf)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	buf[proto.HeaderLength] = 'z'
	if string(f.Body) != "abc" {
		t.Errorf("body changed with the source buffer: %q", f.Body)
	}
}
