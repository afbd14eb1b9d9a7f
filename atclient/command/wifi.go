package command

import (
	"fmt"
	"strings"
	"time"
)

// WifiConfigParameter identifies a module-wide Wi-Fi configuration tag.
type WifiConfigParameter int

const (
	DropNetworkOnLinkLoss WifiConfigParameter = iota
	PowerSaveMode
)

// WifiConfigValue is the (parameter-specific) value written by SetWifiConfig.
type WifiConfigValue int

const (
	Off WifiConfigValue = iota
	On
	ActiveMode
	PowerSave
)

// SetWifiConfig writes a single module-wide Wi-Fi configuration tag.
type SetWifiConfig struct {
	Parameter WifiConfigParameter
	Value     WifiConfigValue
}

func (c SetWifiConfig) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UWCFG=%d,%d\r\n", int(c.Parameter), int(c.Value)))
}
func (SetWifiConfig) MaxTimeout() time.Duration         { return defaultTimeout }
func (SetWifiConfig) ExpectsResponse() bool             { return true }
func (SetWifiConfig) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// WifiStationAction is an action applied to a Wi-Fi station configuration
// slot via ExecWifiStationAction.
type WifiStationAction int

const (
	ActionReset WifiStationAction = iota
	ActionActivate
	ActionDeactivate
)

// ExecWifiStationAction drives the station configuration state machine
// (reset/activate/deactivate a configuration slot).
type ExecWifiStationAction struct {
	ConfigID uint8
	Action   WifiStationAction
}

func (c ExecWifiStationAction) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UWSCA=%d,%d\r\n", c.ConfigID, int(c.Action)))
}
func (ExecWifiStationAction) MaxTimeout() time.Duration         { return 10 * time.Second }
func (ExecWifiStationAction) ExpectsResponse() bool             { return true }
func (ExecWifiStationAction) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// WifiStationConfigParameter identifies a per-slot Wi-Fi station setting.
type WifiStationConfigParameter int

const (
	ParamActiveOnStartup WifiStationConfigParameter = iota
	ParamSSID
	ParamAuthentication
	ParamWpaPskOrPassphrase
	ParamWepKey1
	ParamWepKey2
	ParamWepKey3
	ParamWepKey4
	ParamEapIdentity
)

// Authentication is the value accepted for ParamAuthentication.
type Authentication int

const (
	AuthOpen Authentication = iota
	AuthWEP
	AuthWpaWpa2Psk
)

// SetWifiStationConfig writes one parameter of one configuration slot.
type SetWifiStationConfig struct {
	ConfigID  uint8
	Parameter WifiStationConfigParameter
	Value     string
}

func (c SetWifiStationConfig) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UWSC=%d,%d,%s\r\n", c.ConfigID, int(c.Parameter), quoteIfNeeded(c.Value)))
}
func (SetWifiStationConfig) MaxTimeout() time.Duration         { return defaultTimeout }
func (SetWifiStationConfig) ExpectsResponse() bool             { return true }
func (SetWifiStationConfig) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// GetWifiStationConfig reads back one parameter of one configuration slot.
// control uses it to read the current SSID before a join; nothing reads a
// slot back after a join's config writes.
type GetWifiStationConfig struct {
	ConfigID  uint8
	Parameter WifiStationConfigParameter
}

// GetWifiStationConfigResponse carries back the raw textual value; callers
// that need ActiveOnStartup as a bool or authentication as an enum convert
// it themselves, since the wire representation is parameter-dependent.
type GetWifiStationConfigResponse struct {
	ConfigID  uint8
	Parameter WifiStationConfigParameter
	Value     string
}

func (c GetWifiStationConfig) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UWSC=%d,%d\r\n", c.ConfigID, int(c.Parameter)))
}
func (GetWifiStationConfig) MaxTimeout() time.Duration { return defaultTimeout }
func (GetWifiStationConfig) ExpectsResponse() bool     { return true }
func (c GetWifiStationConfig) Parse(payload []byte) (any, error) {
	// "+UWSC:<config_id>,<param_tag>,<value>": the value is the third field.
	fields := strings.SplitN(strings.TrimSpace(string(payload)), ",", 3)
	value := fields[len(fields)-1]
	return GetWifiStationConfigResponse{ConfigID: c.ConfigID, Parameter: c.Parameter, Value: strings.Trim(value, `"`)}, nil
}

// WifiState mirrors the module's link-state enumeration.
type WifiState int

const (
	WifiInactive WifiState = iota
	WifiNotConnected
	WifiConnected
	WifiSecurityProblems
)

// GetWifiStatusResponse is the parsed response of GetWifiStatus.
type GetWifiStatusResponse struct {
	State WifiState
}

// GetWifiStatus reads the current Wi-Fi station link state.
type GetWifiStatus struct{ ConfigID uint8 }

func (c GetWifiStatus) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UWSSTAT=%d,0\r\n", c.ConfigID))
}
func (GetWifiStatus) MaxTimeout() time.Duration { return defaultTimeout }
func (GetWifiStatus) ExpectsResponse() bool     { return true }
func (GetWifiStatus) Parse(payload []byte) (any, error) {
	_, value, ok := strings.Cut(strings.TrimSpace(string(payload)), ",")
	if !ok {
		return GetWifiStatusResponse{State: WifiInactive}, nil
	}
	n, err := parseInt(value)
	if err != nil {
		return nil, err
	}
	return GetWifiStatusResponse{State: WifiState(n)}, nil
}

// WifiScanResult is one access point row of a WifiScan response.
type WifiScanResult struct {
	BSSID   string
	SSID    string
	Channel int
	RSSI    int
}

// WifiScanResponse is every row returned by a WifiScan.
type WifiScanResponse struct {
	Results []WifiScanResult
}

// WifiScan requests a Wi-Fi access point scan.
type WifiScan struct{}

func (WifiScan) Bytes() []byte             { return []byte("AT+UWSCAN\r\n") }
func (WifiScan) MaxTimeout() time.Duration { return 15 * time.Second }
func (WifiScan) ExpectsResponse() bool     { return true }
func (WifiScan) Parse(payload []byte) (any, error) {
	var resp WifiScanResponse
	for _, line := range strings.Split(strings.TrimSpace(string(payload)), "\r\n") {
		line = strings.TrimPrefix(line, "+UWSCAN:")
		fields := strings.Split(line, ",")
		if len(fields) < 4 {
			continue
		}
		channel, _ := parseInt(fields[2])
		rssi, _ := parseInt(fields[3])
		resp.Results = append(resp.Results, WifiScanResult{
			BSSID:   strings.Trim(fields[0], `"`),
			SSID:    strings.Trim(fields[1], `"`),
			Channel: channel,
			RSSI:    rssi,
		})
	}
	return resp, nil
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ", \t\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
