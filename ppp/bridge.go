package ppp

import (
	"context"
	"errors"
	"time"

	"github.com/FactbirdHQ/ublox-short-range-go/atclient"
	"github.com/FactbirdHQ/ublox-short-range-go/atclient/command"
	"github.com/FactbirdHQ/ublox-short-range-go/digest"
	"github.com/FactbirdHQ/ublox-short-range-go/edm"
	"github.com/FactbirdHQ/ublox-short-range-go/hal"
	"github.com/FactbirdHQ/ublox-short-range-go/ingress"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

const (
	// minRestartInterval bounds how fast consecutive dial attempts can
	// follow one another.
	minRestartInterval = 10 * time.Second
	// stableUpDuration is how long a session must run before a later
	// failure resets the fail counter instead of adding to it.
	stableUpDuration = 60 * time.Second
	// maxFailsBeforeReboot is the module's own teardown threshold: this
	// many dial failures inside the stability window and the module gets
	// hard-reset instead of retried again.
	maxFailsBeforeReboot = 10
	// postDialDrain is how long to wait after the dial before handing the
	// transport to the Engine. Bytes that arrive in that window are not
	// read or discarded here; the Engine receives them.
	postDialDrain = 2 * time.Second
)

// errUnstable signals dialUntilUnstable's fail threshold was reached; Run
// responds by hard-resetting the module and starting over.
var errUnstable = errors.New("ppp link failed repeatedly")

// accumulateFailure updates the fail counter given how long the previous
// attempt ran for: a session that stayed up past stableUpDuration clears
// the counter, otherwise it increments, reporting unstable once it reaches
// maxFailsBeforeReboot.
func accumulateFailure(elapsed time.Duration, fails int) (newFails int, unstable bool) {
	if elapsed > stableUpDuration {
		return 0, false
	}
	fails++
	return fails, fails >= maxFailsBeforeReboot
}

// configRouter is a minimal digest.Router for the plain-AT configure phase
// that precedes each PPP dial: only command responses matter there, so
// URC, Data, and StartUp items are discarded rather than routed anywhere.
type configRouter struct{ slot *atclient.Slot }

func (r configRouter) Response(payload []byte, err error) { r.slot.Publish(payload, err) }
func (configRouter) URC(edm.PayloadType, []byte)          {}
func (configRouter) Data(byte, []byte)                    {}
func (configRouter) StartUp()                             {}

// Bridge brings the module into PPP mode and keeps it there: it configures
// the UART for dialing, dials, hands the transport to an Engine, and
// restarts on failure, rebooting the module outright if failures keep
// happening within the stability window.
type Bridge struct {
	transport   hal.Transport
	reset       hal.ResetPin
	clock       hal.Clock
	engine      Engine
	config      Config
	baudRate    uint32
	flowControl bool
}

// New creates a Bridge. baudRate/flowControl are the settings applied to
// the module's UART (via AT+UMRS) immediately before dialing.
func New(transport hal.Transport, reset hal.ResetPin, clock hal.Clock, engine Engine, config Config, baudRate uint32, flowControl bool) *Bridge {
	return &Bridge{
		transport:   transport,
		reset:       reset,
		clock:       clock,
		engine:      engine,
		config:      config,
		baudRate:    baudRate,
		flowControl: flowControl,
	}
}

// Run drives PPP bring-up until ctx is cancelled. onIPv4Up is invoked with
// the negotiated address each time the Engine assigns one.
func (b *Bridge) Run(ctx context.Context, onIPv4Up func(IPv4Config)) error {
	for {
		if err := b.hardReset(ctx); err != nil {
			return err
		}

		select {
		case <-b.clock.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}

		err := b.dialUntilUnstable(ctx, onIPv4Up)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errUnstable) {
			pkg.LogWarn(pkg.ComponentPPP, "ppp failed too much, rebooting modem")
			continue
		}
		return err
	}
}

// hardReset drives the reset line, or — absent one — leaves the module as
// is; no software reboot (RebootDCE) is sent in its place.
func (b *Bridge) hardReset(ctx context.Context) error {
	if b.reset == nil {
		return nil
	}
	if err := b.reset.SetLow(); err != nil {
		return err
	}
	select {
	case <-b.clock.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.reset.SetHigh()
}

// dialUntilUnstable repeats configure-dial-run cycles, tracking failures in
// a 60-second stability window, until the Engine runs successfully for a
// full cycle (returned only on ctx cancellation) or errUnstable.
func (b *Bridge) dialUntilUnstable(ctx context.Context, onIPv4Up func(IPv4Config)) error {
	var fails int
	var lastStart time.Time

	for {
		if !lastStart.IsZero() {
			if wait := minRestartInterval - b.clock.Now().Sub(lastStart); wait > 0 {
				select {
				case <-b.clock.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			var unstable bool
			fails, unstable = accumulateFailure(b.clock.Now().Sub(lastStart), fails)
			if unstable {
				return errUnstable
			}
		}
		lastStart = b.clock.Now()

		if err := b.configure(ctx); err != nil {
			pkg.LogWarn(pkg.ComponentPPP, "ppp configure failed", "err", err)
			continue
		}

		select {
		case <-b.clock.After(postDialDrain):
		case <-ctx.Done():
			return ctx.Err()
		}

		pkg.LogInfo(pkg.ComponentPPP, "running ppp")
		err := b.engine.Run(ctx, b.transport, b.config, onIPv4Up)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pkg.LogWarn(pkg.ComponentPPP, "ppp session ended", "err", err)
	}
}

// configure puts the module back in command mode, disables echo, and sets
// the dial baud rate, using a throwaway AT client and ingress loop scoped
// to this call — the full network.Runner isn't available once PPP owns
// the UART.
func (b *Bridge) configure(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)

	slot := atclient.NewSlot()
	route := configRouter{slot: slot}
	task := ingress.New(b.transport, digest.New(), route)

	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()
	defer func() { cancel(); <-done }()

	cl := atclient.New(task.Writer(), slot, false)

	// Best-effort: the module may already be in command mode, in which
	// case this fails harmlessly (mirrors the source's `let _ = ...`).
	_, _ = cl.Send(ctx, command.ChangeMode{Mode: command.CommandMode})

	if _, err := cl.Send(ctx, command.SetEcho{On: false}); err != nil {
		return err
	}
	if _, err := cl.Send(ctx, command.SetRS232Settings{
		BaudRate:    b.baudRate,
		FlowControl: b.flowControl,
		ChangeAfter: command.ChangeAfterOK,
	}); err != nil {
		return err
	}

	_, err := cl.Send(ctx, command.ChangeMode{Mode: command.PPPMode})
	return err
}
