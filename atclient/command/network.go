package command

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// SetNetworkHostName sets the module's DHCP hostname.
type SetNetworkHostName struct{ Name string }

func (c SetNetworkHostName) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UNHN=%q\r\n", c.Name))
}
func (SetNetworkHostName) MaxTimeout() time.Duration         { return defaultTimeout }
func (SetNetworkHostName) ExpectsResponse() bool             { return true }
func (SetNetworkHostName) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// NetworkStatusParameter identifies a field of GetNetworkStatus.
type NetworkStatusParameter int

const (
	StatusInterfaceType NetworkStatusParameter = iota
	StatusIPv4Address
	StatusIPv6LinkLocalAddress
	StatusIPv6Address1
)

// GetNetworkStatusResponse carries back the requested field, already parsed
// to the appropriate type where that's unambiguous (addresses); interface
// type is left as the module's raw integer code.
type GetNetworkStatusResponse struct {
	Parameter    NetworkStatusParameter
	InterfaceType int
	Addr          netip.Addr
}

// GetNetworkStatus queries one field of the named network interface.
type GetNetworkStatus struct {
	Interface uint8
	Parameter NetworkStatusParameter
}

func (c GetNetworkStatus) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UNSTAT=%d,%d\r\n", c.Interface, int(c.Parameter)))
}
func (GetNetworkStatus) MaxTimeout() time.Duration { return defaultTimeout }
func (GetNetworkStatus) ExpectsResponse() bool     { return true }
func (c GetNetworkStatus) Parse(payload []byte) (any, error) {
	_, value, ok := strings.Cut(strings.TrimSpace(string(payload)), ",")
	if !ok {
		value = strings.TrimSpace(string(payload))
	}
	value = strings.Trim(value, `"`)

	resp := GetNetworkStatusResponse{Parameter: c.Parameter}
	if c.Parameter == StatusInterfaceType {
		n, err := parseInt(value)
		if err != nil {
			return nil, err
		}
		resp.InterfaceType = n
		return resp, nil
	}
	if value == "0.0.0.0" || value == "::" || value == "" {
		return resp, nil
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return nil, err
	}
	resp.Addr = addr
	return resp, nil
}

// WriteGPIO sets a general-purpose I/O pin's output level.
type WriteGPIO struct {
	ID    uint8
	Value bool
}

func (c WriteGPIO) Bytes() []byte {
	v := 0
	if c.Value {
		v = 1
	}
	return []byte(fmt.Sprintf("AT+UGPIOW=%d,%d\r\n", c.ID, v))
}
func (WriteGPIO) MaxTimeout() time.Duration         { return defaultTimeout }
func (WriteGPIO) ExpectsResponse() bool             { return true }
func (WriteGPIO) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// PingErrorKind classifies why a Ping failed, per the DNS table's Error
// state.
type PingErrorKind int

const (
	PingErrorTimeout PingErrorKind = iota
	PingErrorUnreachable
)

// PingResponse is the parsed result of a successful Ping URC sequence. The
// command itself only confirms the request was accepted; the resolved
// address and timing arrive later as +UUPING/+UUPINGER URCs, handled by the
// network runner, not here.
type PingResponse struct{}

// Ping requests the module resolve and probe a hostname.
type Ping struct {
	Hostname string
	Retries  uint8
}

func (c Ping) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UPING=%q,%d\r\n", c.Hostname, c.Retries))
}
func (Ping) MaxTimeout() time.Duration         { return 8 * time.Second }
func (Ping) ExpectsResponse() bool             { return true }
func (Ping) Parse(payload []byte) (any, error) { return PingResponse{}, nil }
