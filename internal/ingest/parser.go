// Package ingest implements the resynchronizing stream parser that turns
// a raw byte stream from the serial link into a sequence of decoded
// sample frames, recovering one byte at a time from corruption.
package ingest

import (
	"errors"

	"github.com/rpi3seismo/stationd/internal/frame"
)

// Parser owns a growable byte buffer and extracts valid sample frames
// from whatever bytes are fed to it, resynchronizing on the frame magic
// whenever the buffer doesn't align.
//
// Dropping a full frame on a checksum failure loses one true frame for
// one resync event; dropping a single byte instead recovers at the next
// aligned magic and preserves throughput. The inner loop never waits for
// more data than is already buffered.
type Parser struct {
	buf          []byte
	droppedBytes uint64
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// DroppedBytes reports how many bytes have been discarded while
// resynchronizing, for diagnostics.
func (p *Parser) DroppedBytes() uint64 {
	return p.droppedBytes
}

// Feed appends newly-read bytes to the internal buffer and returns every
// sample frame that can be extracted from it. Leftover bytes (a partial
// frame, or the tail of a resync) remain buffered for the next call.
func (p *Parser) Feed(data []byte) []frame.SampleFrame {
	p.buf = append(p.buf, data...)

	var out []frame.SampleFrame

	for len(p.buf) >= frame.SampleFrameSize {
		f, err := frame.DecodeSample(p.buf[:frame.SampleFrameSize])
		switch {
		case err == nil:
			out = append(out, f)
			p.buf = p.buf[frame.SampleFrameSize:]
		case errors.Is(err, frame.ErrBadChecksum):
			// Header matched but the checksum didn't: drop exactly one
			// byte so an aligned magic a few bytes later is not skipped
			// over along with it.
			p.buf = p.buf[1:]
			p.droppedBytes++
		case errors.Is(err, frame.ErrBadHeader):
			p.buf = p.buf[1:]
			p.droppedBytes++
		default:
			// Unreachable with a full 15-byte slice, but fail safe.
			p.buf = p.buf[1:]
			p.droppedBytes++
		}
	}

	return out
}

// Pending returns the number of buffered bytes not yet forming a
// complete frame.
func (p *Parser) Pending() int {
	return len(p.buf)
}
