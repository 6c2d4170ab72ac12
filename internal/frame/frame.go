// Package frame implements the fixed-size little-endian wire frames
// exchanged with the microcontroller over the RS-485 link: the 15-byte
// sample frame and the 6-byte configuration frame, both XOR-checksummed.
package frame

import (
	"encoding/binary"
	"errors"
)

const (
	// SampleMagic1 and SampleMagic2 are the two header bytes of a sample frame.
	SampleMagic1 byte = 0xAA
	SampleMagic2 byte = 0xBB

	// ConfigMagic1 and ConfigMagic2 are the two header bytes of a configuration frame.
	ConfigMagic1 byte = 0xCC
	ConfigMagic2 byte = 0xDD

	// SampleFrameSize is the wire size of an encoded SampleFrame.
	SampleFrameSize = 15

	// ConfigFrameSize is the wire size of an encoded ConfigFrame.
	ConfigFrameSize = 6
)

// ErrBadHeader indicates the leading magic bytes did not match. It is
// distinct from ErrBadChecksum so callers can tell the two failures
// apart; the ingest parser recovers from both by dropping one byte.
var ErrBadHeader = errors.New("frame: bad header magic")

// ErrBadChecksum indicates the header matched but the trailing XOR
// checksum did not.
var ErrBadChecksum = errors.New("frame: checksum mismatch")

// ErrShortBuffer indicates fewer bytes were supplied than the frame requires.
var ErrShortBuffer = errors.New("frame: short buffer")

// SampleFrame is the in-memory form of the 15-byte sample wire frame:
// two magic bytes, three signed 32-bit channel readings, one XOR checksum.
type SampleFrame struct {
	Ch0 int32
	Ch1 int32
	Ch2 int32
}

// ConfigFrame is the in-memory form of the 6-byte configuration wire frame.
type ConfigFrame struct {
	SamplingRate uint16
	PGA          uint8
	DataRate     uint8
}

// xorChecksum returns the XOR of every byte in b.
func xorChecksum(b []byte) byte {
	var c byte
	for _, x := range b {
		c ^= x
	}
	return c
}

// EncodeSample serializes a SampleFrame to its 15-byte wire form.
func EncodeSample(f SampleFrame) []byte {
	buf := make([]byte, SampleFrameSize)
	buf[0] = SampleMagic1
	buf[1] = SampleMagic2
	binary.LittleEndian.PutUint32(buf[2:6], uint32(f.Ch0))
	binary.LittleEndian.PutUint32(buf[6:10], uint32(f.Ch1))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(f.Ch2))
	buf[14] = xorChecksum(buf[:14])
	return buf
}

// DecodeSample parses a 15-byte buffer into a SampleFrame. It returns
// ErrBadHeader if the magic bytes don't match, ErrBadChecksum if the
// magic matched but the checksum didn't, and the decoded frame with a
// nil error on success.
func DecodeSample(b []byte) (SampleFrame, error) {
	if len(b) < SampleFrameSize {
		return SampleFrame{}, ErrShortBuffer
	}
	if b[0] != SampleMagic1 || b[1] != SampleMagic2 {
		return SampleFrame{}, ErrBadHeader
	}
	if xorChecksum(b[:14]) != b[14] {
		return SampleFrame{}, ErrBadChecksum
	}
	return SampleFrame{
		Ch0: int32(binary.LittleEndian.Uint32(b[2:6])),
		Ch1: int32(binary.LittleEndian.Uint32(b[6:10])),
		Ch2: int32(binary.LittleEndian.Uint32(b[10:14])),
	}, nil
}

// EncodeConfig serializes a ConfigFrame to its 6-byte wire form.
func EncodeConfig(f ConfigFrame) []byte {
	buf := make([]byte, ConfigFrameSize)
	buf[0] = ConfigMagic1
	buf[1] = ConfigMagic2
	binary.LittleEndian.PutUint16(buf[2:4], f.SamplingRate)
	buf[4] = f.PGA
	buf[5] = f.DataRate
	return buf
}

// DecodeConfig parses a 6-byte buffer into a ConfigFrame. The serial
// handshake does not use it: it compares the echoed bytes directly.
func DecodeConfig(b []byte) (ConfigFrame, error) {
	if len(b) < ConfigFrameSize {
		return ConfigFrame{}, ErrShortBuffer
	}
	if b[0] != ConfigMagic1 || b[1] != ConfigMagic2 {
		return ConfigFrame{}, ErrBadHeader
	}
	return ConfigFrame{
		SamplingRate: binary.LittleEndian.Uint16(b[2:4]),
		PGA:          b[4],
		DataRate:     b[5],
	}, nil
}
