// Package proto encodes and decodes frames of the live-event wire protocol.
//
// A frame is a fixed 16 byte big-endian header followed by the body:
//
//	[int32 total length][int16 header length = 16][int16 version][int32 operation][int32 sequence][body]
//
// The total length counts the header. Decode never panics on malformed input;
// every rejection is reported with one of the sentinel errors so callers can
// drop the frame and keep the connection open.
package proto
