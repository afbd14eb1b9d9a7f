// Package gpio implements hal.ResetPin over a physical GPIO line using
// periph.io/x/conn/v3 and periph.io/x/host/v3.
package gpio

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// Init loads the host drivers. Call once before Open.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("%w: gpio host init: %v", pkg.ErrTransport, err)
	}
	return nil
}

// Pin is a hal.ResetPin backed by a named GPIO line, active-low per the
// module's reset convention (hold low to assert reset).
type Pin struct {
	line gpio.PinIO
}

// Open looks up name (e.g. "GPIO17") in the platform's pin registry and
// configures it as an output, initially high (reset deasserted).
func Open(name string) (*Pin, error) {
	line := gpioreg.ByName(name)
	if line == nil {
		return nil, fmt.Errorf("%w: no such gpio pin %q", pkg.ErrTransport, name)
	}
	if err := line.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("%w: gpio %q out: %v", pkg.ErrTransport, name, err)
	}
	return &Pin{line: line}, nil
}

// SetLow asserts the reset line.
func (p *Pin) SetLow() error {
	if err := p.line.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrTransport, err)
	}
	return nil
}

// SetHigh deasserts the reset line.
func (p *Pin) SetHigh() error {
	if err := p.line.Out(gpio.High); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrTransport, err)
	}
	return nil
}
