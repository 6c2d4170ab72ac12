// Package gpioline controls the RS-485 transceiver's driver-enable
// (DE) line, asserted only for the duration of a write (spec §4.B) so
// the bus stays in receive mode the rest of the time.
package gpioline

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// DigitalPin is the minimal control surface the serial link needs: set
// the line high to transmit, low to receive.
type DigitalPin interface {
	Assert() error
	Deassert() error
	Close() error
}

// cdevPin drives a real GPIO character-device line via go-gpiocdev.
type cdevPin struct {
	line *gpiocdev.Line
}

// OpenDriverEnable requests chip/offset as an output line, initially
// low (receive mode).
func OpenDriverEnable(chip string, offset int) (DigitalPin, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("gpioline: requesting %s:%d: %w", chip, offset, err)
	}
	return &cdevPin{line: line}, nil
}

func (p *cdevPin) Assert() error   { return p.line.SetValue(1) }
func (p *cdevPin) Deassert() error { return p.line.SetValue(0) }
func (p *cdevPin) Close() error    { return p.line.Close() }

// MockPin is an in-memory DigitalPin for platforms without a GPIO
// character device (development machines, CI) and for tests, per spec
// §7's "hardware-unavailable" fallback.
type MockPin struct {
	Asserted bool
	Closed   bool
}

func NewMockPin() *MockPin { return &MockPin{} }

func (p *MockPin) Assert() error   { p.Asserted = true; return nil }
func (p *MockPin) Deassert() error { p.Asserted = false; return nil }
func (p *MockPin) Close() error    { p.Closed = true; return nil }
