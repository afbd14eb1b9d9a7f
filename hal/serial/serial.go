// Package serial implements hal.Transport over a real UART using
// github.com/tarm/serial, with hardware flow control toggled directly via
// termios through golang.org/x/sys/unix (tarm/serial has no RTS/CTS knob).
package serial

import (
	"context"
	"fmt"
	"sync"

	"github.com/tarm/serial"
	"golang.org/x/sys/unix"

	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// Port is a hal.Transport backed by a real serial device.
type Port struct {
	mu   sync.Mutex
	name string
	baud uint32
	flow bool
	port *serial.Port
}

// Open opens name at the given baud rate. flowControl enables hardware
// RTS/CTS, matching the module's default RS-232 configuration (115200 8N1,
// flow control on).
func Open(name string, baud uint32, flowControl bool) (*Port, error) {
	p := &Port{name: name, baud: baud, flow: flowControl}
	if err := p.reopen(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Port) reopen() error {
	if p.port != nil {
		_ = p.port.Close()
	}
	cfg := &serial.Config{Name: p.name, Baud: int(p.baud)}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return fmt.Errorf("%w: open %s at %d baud: %v", pkg.ErrTransport, p.name, p.baud, err)
	}
	p.port = port
	if p.flow {
		if err := setHardwareFlowControl(port, true); err != nil {
			pkg.LogWarn(pkg.ComponentTransport, "failed to enable hardware flow control", "err", err)
		}
	}
	return nil
}

// Read implements hal.Transport. tarm/serial has no context-aware read, so
// cancellation is best-effort: a cancelled ctx unblocks the next call, not
// one already in progress on the OS read syscall.
func (p *Port) Read(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	port := p.port
	p.mu.Unlock()
	n, err := port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("%w: %v", pkg.ErrTransport, err)
	}
	return n, nil
}

// Write implements hal.Transport.
func (p *Port) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	port := p.port
	p.mu.Unlock()
	if _, err := port.Write(data); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrTransport, err)
	}
	return nil
}

// SetBaudRate reopens the port at the new baud rate, preserving flow control
// configuration. This is the simplest correct implementation given
// tarm/serial's lack of an in-place baud change; the runner already expects
// a short settle delay after any baud change.
func (p *Port) SetBaudRate(baud uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baud = baud
	return p.reopen()
}

// Close releases the underlying port.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

// setHardwareFlowControl enables RTS/CTS on the already-open file descriptor
// via raw termios flags, since tarm/serial's Config has no flow-control
// field.
func setHardwareFlowControl(port *serial.Port, on bool) error {
	fder, ok := any(port).(interface{ Fd() uintptr })
	if !ok {
		return fmt.Errorf("%w: underlying port does not expose a file descriptor", pkg.ErrTransport)
	}
	fd := int(fder.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	if on {
		t.Cflag |= unix.CRTSCTS
	} else {
		t.Cflag &^= unix.CRTSCTS
	}
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}
