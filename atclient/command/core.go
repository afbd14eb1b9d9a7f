// Package command is the AT command catalogue: typed serialize/parse/timeout
// records consumed by atclient.Client. The design lies in the EDM framing
// and client plumbing elsewhere; this catalogue is intentionally mechanical.
package command

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

const defaultTimeout = time.Second

// AT is the bare connectivity check.
type AT struct{}

func (AT) Bytes() []byte             { return []byte("AT\r\n") }
func (AT) MaxTimeout() time.Duration { return defaultTimeout }
func (AT) ExpectsResponse() bool     { return true }
func (AT) Parse(payload []byte) (any, error) {
	return struct{}{}, nil
}

// ChangeAfterConfirm controls when a serial-setting change takes effect
// relative to the command's OK confirmation.
type ChangeAfterConfirm int

const (
	ChangeImmediately ChangeAfterConfirm = iota
	ChangeAfterOK
	ChangeAfterShutdown
)

// SetRS232Settings reconfigures the UART baud rate (and, optionally, flow
// control) via AT+UMRS.
type SetRS232Settings struct {
	BaudRate   uint32
	FlowControl bool
	ChangeAfter ChangeAfterConfirm
}

func (c SetRS232Settings) Bytes() []byte {
	flow := 0
	if c.FlowControl {
		flow = 2
	}
	return []byte(fmt.Sprintf("AT+UMRS=%d,%d,8,1,1,%d\r\n", c.BaudRate, flow, int(c.ChangeAfter)))
}
func (SetRS232Settings) MaxTimeout() time.Duration { return 5 * time.Second }
func (SetRS232Settings) ExpectsResponse() bool     { return true }
func (SetRS232Settings) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// SetEcho turns local command echo on or off.
type SetEcho struct{ On bool }

func (c SetEcho) Bytes() []byte {
	if c.On {
		return []byte("ATE1\r\n")
	}
	return []byte("ATE0\r\n")
}
func (SetEcho) MaxTimeout() time.Duration              { return defaultTimeout }
func (SetEcho) ExpectsResponse() bool                  { return true }
func (SetEcho) Parse(payload []byte) (any, error)      { return struct{}{}, nil }

// StoreCurrentConfig persists the active configuration across reboots.
type StoreCurrentConfig struct{}

func (StoreCurrentConfig) Bytes() []byte             { return []byte("AT&W\r\n") }
func (StoreCurrentConfig) MaxTimeout() time.Duration { return 5 * time.Second }
func (StoreCurrentConfig) ExpectsResponse() bool     { return true }
func (StoreCurrentConfig) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// RebootDCE power-cycles the module in software (used when no reset GPIO is
// wired).
type RebootDCE struct{}

func (RebootDCE) Bytes() []byte             { return []byte("AT+CPWROFF\r\n") }
func (RebootDCE) MaxTimeout() time.Duration { return 5 * time.Second }
func (RebootDCE) ExpectsResponse() bool     { return true }
func (RebootDCE) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// ResetToFactoryDefaults clears stored Wi-Fi/network configuration.
type ResetToFactoryDefaults struct{}

func (ResetToFactoryDefaults) Bytes() []byte             { return []byte("AT+UFACTORY\r\n") }
func (ResetToFactoryDefaults) MaxTimeout() time.Duration { return 5 * time.Second }
func (ResetToFactoryDefaults) ExpectsResponse() bool     { return true }
func (ResetToFactoryDefaults) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// SoftwareVersionResponse is the parsed result of SoftwareVersion.
type SoftwareVersionResponse struct {
	Version string
}

// SoftwareVersion reads the module's firmware version string.
type SoftwareVersion struct{}

func (SoftwareVersion) Bytes() []byte             { return []byte("ATI9\r\n") }
func (SoftwareVersion) MaxTimeout() time.Duration { return defaultTimeout }
func (SoftwareVersion) ExpectsResponse() bool     { return true }
func (SoftwareVersion) Parse(payload []byte) (any, error) {
	return SoftwareVersionResponse{Version: strings.TrimSpace(string(payload))}, nil
}

// PPPModeValue selects the module's operating mode for ChangeMode.
type PPPModeValue int

const (
	EDMMode PPPModeValue = iota
	PPPMode
	CommandMode
)

// ChangeMode switches between command, EDM, and PPP mode (ATO2/ATO3/ATO0
// style escape).
type ChangeMode struct{ Mode PPPModeValue }

func (c ChangeMode) Bytes() []byte {
	switch c.Mode {
	case PPPMode:
		return []byte("ATO3\r\n")
	case EDMMode:
		return []byte("ATO2\r\n")
	default:
		return []byte("ATO0\r\n")
	}
}
func (ChangeMode) MaxTimeout() time.Duration         { return 4 * time.Second }
func (ChangeMode) ExpectsResponse() bool             { return true }
func (ChangeMode) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// edmConfirmation is the exact 6-byte EDM acknowledgement SwitchToEdmCommand
// requires, per the module's EDM specification.
var edmConfirmation = []byte{0xAA, 0x00, 0x02, 0x00, 0x71, 0x55}

// SwitchToEdmCommand requests EDM framing. It serializes identically to
// ChangeMode{EDMMode} ("ATO2\r\n") but validates a specific raw confirmation
// rather than a textual OK, since the module immediately starts speaking EDM
// framing once the switch takes effect.
type SwitchToEdmCommand struct{}

func (SwitchToEdmCommand) Bytes() []byte             { return []byte("ATO2\r\n") }
func (SwitchToEdmCommand) MaxTimeout() time.Duration { return 4 * time.Second }
func (SwitchToEdmCommand) ExpectsResponse() bool     { return true }
func (SwitchToEdmCommand) Parse(payload []byte) (any, error) {
	if !bytes.Equal(payload, edmConfirmation) {
		pkg.LogWarn(pkg.ComponentATClient, "unexpected edm switch confirmation", "payload", payload)
		return nil, pkg.ErrInvalidResponse
	}
	return struct{}{}, nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
