// Command ublox-shell wires a serial port and an optional reset pin to the
// driver stack and drives a single Wi-Fi join from the command line,
// following the module's state through to an up or failed link.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FactbirdHQ/ublox-short-range-go/control"
	"github.com/FactbirdHQ/ublox-short-range-go/hal"
	"github.com/FactbirdHQ/ublox-short-range-go/hal/gpio"
	"github.com/FactbirdHQ/ublox-short-range-go/hal/serial"
	"github.com/FactbirdHQ/ublox-short-range-go/network"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// componentShell identifies this binary's own log lines, distinct from the
// driver packages' components.
const componentShell pkg.Component = "shell"

var (
	device      = flag.String("device", "/dev/ttyUSB0", "UART device path")
	baud        = flag.Uint("baud", 115200, "Target baud rate")
	flowControl = flag.Bool("flow-control", true, "Enable hardware RTS/CTS flow control")
	resetPinID  = flag.String("reset-pin", "", "Reset GPIO line name (e.g. GPIO17); omitted uses a software reboot")
	hostname    = flag.String("hostname", "", "DHCP hostname to set before joining; empty skips")
	ssid        = flag.String("ssid", "", "Access point SSID to join")
	passphrase  = flag.String("passphrase", "", "WPA2 passphrase; omitted joins as an open network")
	verbose     = flag.Bool("v", false, "Enable debug logging")
	jsonLog     = flag.Bool("json", false, "Log as JSON")
)

func main() {
	flag.Parse()

	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	} else {
		pkg.SetLogLevel(slog.LevelInfo)
	}
	if *jsonLog {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	if *ssid == "" {
		pkg.LogError(componentShell, "-ssid is required")
		os.Exit(2)
	}

	if err := run(); err != nil {
		pkg.LogError(componentShell, "exiting", "err", err)
		os.Exit(1)
	}
}

func run() error {
	var reset hal.ResetPin
	if *resetPinID != "" {
		if err := gpio.Init(); err != nil {
			return err
		}
		pin, err := gpio.Open(*resetPinID)
		if err != nil {
			return err
		}
		reset = pin
	}

	port, err := serial.Open(*device, uint32(*baud), *flowControl)
	if err != nil {
		return err
	}
	defer port.Close()

	runner := network.New(port, reset, hal.SystemClock{}, network.Config{
		BaudRate:    uint32(*baud),
		FlowControl: *flowControl,
	})
	driver := control.New(runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		pkg.LogInfo(componentShell, "shutting down")
		cancel()
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(ctx) }()

	if err := awaitInit(ctx, runner); err != nil {
		cancel()
		return err
	}
	pkg.LogInfo(componentShell, "runner initialized")

	if *hostname != "" {
		if err := driver.SetHostname(ctx, *hostname); err != nil {
			pkg.LogWarn(componentShell, "set hostname failed", "err", err)
		}
	}

	joinCtx, joinCancel := context.WithTimeout(ctx, 30*time.Second)
	var joinErr error
	if *passphrase != "" {
		joinErr = driver.JoinWPA2(joinCtx, *ssid, *passphrase)
	} else {
		joinErr = driver.JoinOpen(joinCtx, *ssid)
	}
	joinCancel()
	if joinErr != nil {
		cancel()
		return joinErr
	}

	snap := runner.Connection().Snapshot()
	pkg.LogInfo(componentShell, "joined",
		"ssid", *ssid,
		"wifi_state", snap.WifiState,
		"ipv4_up", snap.IPv4Up)

	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// awaitInit blocks until the runner completes its first baud-probe/EDM/
// steady-state bring-up sequence, polling rather than adding a dedicated
// signal to Runner for a single-shot CLI's sake.
func awaitInit(ctx context.Context, runner *network.Runner) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if runner.Initialized() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
