// Package control is the host-facing facade over a network.Runner: join,
// disconnect, hostname, GPIO, factory reset, and TLS credential import, each
// sequenced exactly as the module's AT command set requires and bounded by
// an explicit timeout.
package control

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/FactbirdHQ/ublox-short-range-go/atclient"
	"github.com/FactbirdHQ/ublox-short-range-go/atclient/command"
	"github.com/FactbirdHQ/ublox-short-range-go/network"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// configID is the single Wi-Fi station configuration slot this driver uses.
// The module supports several, but nothing above this facade ever asks for
// more than one active station profile at a time.
const configID uint8 = 0

const (
	joinOpenTimeout  = 25 * time.Second
	joinWPA2Timeout  = 20 * time.Second
	disconnectTimeout = 10 * time.Second
)

// maxSSIDLen and maxPassphraseLen bound the fields the module's AT+UWSC
// accepts; Control rejects oversized input itself rather than letting a
// malformed AT line reach the module.
const (
	maxSSIDLen       = 32
	maxPassphraseLen = 63
)

// Control is a thin, stateless-beyond-its-Runner wrapper: every method
// issues a sequence of AT commands against the shared runner and, where the
// module's behavior is asynchronous, waits on the runner's Connection
// broadcast for the URC-driven state change that confirms it.
type Control struct {
	runner *network.Runner
}

// New creates a Control bound to an already-constructed Runner. Run must be
// called (typically in its own goroutine) before any Control method other
// than checking Initialized will succeed.
func New(runner *network.Runner) *Control {
	return &Control{runner: runner}
}

func (c *Control) client() *atclient.Client { return c.runner.Client() }

// requireInitialized guards every Control method against use before the
// runner's init sequence has completed once.
func (c *Control) requireInitialized() error {
	if !c.runner.Initialized() {
		return pkg.ErrUninitialized
	}
	return nil
}

// SetHostname sets the module's DHCP hostname.
func (c *Control) SetHostname(ctx context.Context, name string) error {
	if err := c.requireInitialized(); err != nil {
		return err
	}
	_, err := c.client().Send(ctx, command.SetNetworkHostName{Name: name})
	return err
}

// FactoryReset clears all stored Wi-Fi/network configuration and reboots
// the module. The runner observes the resulting +STARTUP and re-runs init.
func (c *Control) FactoryReset(ctx context.Context) error {
	if err := c.requireInitialized(); err != nil {
		return err
	}
	if _, err := c.client().Send(ctx, command.ResetToFactoryDefaults{}); err != nil {
		return err
	}
	_, err := c.client().Send(ctx, command.RebootDCE{})
	return err
}

// GPIOSet drives a general-purpose output pin.
func (c *Control) GPIOSet(ctx context.Context, id uint8, value bool) error {
	if err := c.requireInitialized(); err != nil {
		return err
	}
	_, err := c.client().Send(ctx, command.WriteGPIO{ID: id, Value: value})
	return err
}

// JoinOpen associates with an open (unencrypted) access point: reset the
// station config slot, write SSID and open authentication, activate, then
// wait for the link to come up.
func (c *Control) JoinOpen(ctx context.Context, ssid string) error {
	if err := c.requireInitialized(); err != nil {
		return err
	}
	if len(ssid) > maxSSIDLen {
		return pkg.ErrOverflow
	}

	if done, err := c.skipIfAlreadyJoined(ctx, ssid); done || err != nil {
		return err
	}

	if err := c.resetStationSlot(ctx); err != nil {
		return err
	}
	if err := c.setStationConfig(ctx, command.ParamSSID, ssid); err != nil {
		return err
	}
	if err := c.setStationConfig(ctx, command.ParamAuthentication, fmt.Sprintf("%d", int(command.AuthOpen))); err != nil {
		return err
	}
	return c.activateAndAwaitJoin(ctx, ssid, joinOpenTimeout)
}

// JoinWPA2 associates with a WPA/WPA2-PSK access point.
func (c *Control) JoinWPA2(ctx context.Context, ssid, passphrase string) error {
	if err := c.requireInitialized(); err != nil {
		return err
	}
	if len(ssid) > maxSSIDLen {
		return pkg.ErrOverflow
	}
	if len(passphrase) > maxPassphraseLen {
		return pkg.ErrOverflow
	}

	if done, err := c.skipIfAlreadyJoined(ctx, ssid); done || err != nil {
		return err
	}

	if err := c.resetStationSlot(ctx); err != nil {
		return err
	}
	if err := c.setStationConfig(ctx, command.ParamSSID, ssid); err != nil {
		return err
	}
	if err := c.setStationConfig(ctx, command.ParamAuthentication, fmt.Sprintf("%d", int(command.AuthWpaWpa2Psk))); err != nil {
		return err
	}
	if err := c.setStationConfig(ctx, command.ParamWpaPskOrPassphrase, passphrase); err != nil {
		return err
	}
	return c.activateAndAwaitJoin(ctx, ssid, joinWPA2Timeout)
}

// skipIfAlreadyJoined reports (true, nil) if the module is already
// connected to ssid, in which case the join is a no-op. If connected to a
// different SSID, it disconnects first and reports (false, nil) so the
// caller proceeds with a fresh join.
func (c *Control) skipIfAlreadyJoined(ctx context.Context, ssid string) (bool, error) {
	status, err := c.wifiStatus(ctx)
	if err != nil {
		return false, err
	}
	if status != network.WifiConnected {
		return false, nil
	}

	current, err := c.connectedSSID(ctx)
	if err != nil {
		return false, err
	}
	if current == ssid {
		return true, nil
	}
	return false, c.Disconnect(ctx)
}

func (c *Control) wifiStatus(ctx context.Context) (network.WifiState, error) {
	resp, err := c.client().Send(ctx, command.GetWifiStatus{ConfigID: configID})
	if err != nil {
		return 0, err
	}
	status, ok := resp.(command.GetWifiStatusResponse)
	if !ok {
		return 0, pkg.ErrInvalidResponse
	}
	return status.State, nil
}

func (c *Control) connectedSSID(ctx context.Context) (string, error) {
	resp, err := c.client().Send(ctx, command.GetWifiStationConfig{ConfigID: configID, Parameter: command.ParamSSID})
	if err != nil {
		return "", err
	}
	cfg, ok := resp.(command.GetWifiStationConfigResponse)
	if !ok {
		return "", pkg.ErrInvalidResponse
	}
	return cfg.Value, nil
}

func (c *Control) resetStationSlot(ctx context.Context) error {
	if _, err := c.client().Send(ctx, command.ExecWifiStationAction{ConfigID: configID, Action: command.ActionReset}); err != nil {
		return err
	}
	_, err := c.client().Send(ctx, command.SetWifiStationConfig{
		ConfigID:  configID,
		Parameter: command.ParamActiveOnStartup,
		Value:     "0",
	})
	return err
}

func (c *Control) setStationConfig(ctx context.Context, param command.WifiStationConfigParameter, value string) error {
	_, err := c.client().Send(ctx, command.SetWifiStationConfig{ConfigID: configID, Parameter: param, Value: value})
	return err
}

// activateAndAwaitJoin sends the Activate action, waits up to timeout for
// the link to come up (wifi_state Connected with an assigned IPv4 address,
// mirroring the source's network_up && wifi_state==Connected link-state
// definition) or settle into SecurityProblems, and verifies the connected
// SSID matches the one requested.
func (c *Control) activateAndAwaitJoin(ctx context.Context, ssid string, timeout time.Duration) error {
	if _, err := c.client().Send(ctx, command.ExecWifiStationAction{ConfigID: configID, Action: command.ActionActivate}); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.runner.Connection().Wait(waitCtx, func(s network.Snapshot) bool {
		return (s.WifiState == network.WifiConnected && s.IPv4Up) || s.WifiState == network.WifiSecurityProblems
	})
	if err != nil {
		return pkg.ErrTimeout
	}

	snap := c.runner.Connection().Snapshot()
	if snap.WifiState == network.WifiSecurityProblems {
		return pkg.ErrSupplicant
	}

	current, err := c.connectedSSID(ctx)
	if err != nil {
		return err
	}
	if current != ssid {
		return pkg.ErrNetwork
	}
	return nil
}

// Disconnect deactivates the active station configuration slot and waits
// for the link to report Down.
func (c *Control) Disconnect(ctx context.Context) error {
	if err := c.requireInitialized(); err != nil {
		return err
	}

	status, err := c.wifiStatus(ctx)
	if err != nil {
		return err
	}
	if status != network.WifiInactive {
		if _, err := c.client().Send(ctx, command.ExecWifiStationAction{ConfigID: configID, Action: command.ActionDeactivate}); err != nil {
			return err
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	defer cancel()

	err = c.runner.Connection().Wait(waitCtx, func(s network.Snapshot) bool {
		return s.WifiState != network.WifiConnected
	})
	if err != nil {
		return pkg.ErrTimeout
	}
	return nil
}

// ImportCredentials uploads a TLS credential blob (trusted root CA, client
// certificate, or client private key) under name, then verifies the
// module's reported MD5 digest. If expectedMD5 is non-empty and disagrees
// with the module's digest, a credential with different content is already
// stored under that name.
func (c *Control) ImportCredentials(ctx context.Context, kind command.SecurityDataType, name string, data []byte, expectedMD5 string) error {
	if err := c.requireInitialized(); err != nil {
		return err
	}

	if _, err := c.client().Send(ctx, command.PrepareSecurityDataImport{Type: kind, Name: name, Size: len(data)}); err != nil {
		return err
	}

	resp, err := c.client().Send(ctx, command.SendSecurityDataImport{Data: data})
	if err != nil {
		return err
	}
	result, ok := resp.(command.SendSecurityDataImportResponse)
	if !ok {
		return pkg.ErrInvalidResponse
	}

	if expectedMD5 != "" && !md5Equal(expectedMD5, result.MD5Hex) {
		return pkg.ErrDuplicateCredentials
	}
	return nil
}

// md5Equal compares hex-encoded MD5 digests case-insensitively. Computing a
// fresh digest here is unnecessary — the module already hashed the bytes it
// received — so this only normalizes the two strings for comparison.
func md5Equal(a, b string) bool {
	da, erra := hex.DecodeString(a)
	db, errb := hex.DecodeString(b)
	if erra != nil || errb != nil {
		return a == b
	}
	return hex.EncodeToString(da) == hex.EncodeToString(db)
}

// sumMD5 is exposed for tests constructing an expected digest from raw
// credential bytes without depending on the module's own computation.
func sumMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
