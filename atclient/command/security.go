package command

import (
	"fmt"
	"strings"
	"time"
)

// SecurityDataType names the kind of credential blob being imported.
type SecurityDataType int

const (
	DataTrustedRootCA SecurityDataType = iota
	DataClientCertificate
	DataClientPrivateKey
)

// PrepareSecurityDataImport announces an upcoming credential import: its
// type, a name the module will file it under, and its size in bytes. The
// module replies with an MD5 digest of nothing yet — that arrives after the
// data itself is sent via SendSecurityDataImport.
type PrepareSecurityDataImport struct {
	Type SecurityDataType
	Name string
	Size int
}

func (c PrepareSecurityDataImport) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+USECPRT=%d,%q,%d\r\n", int(c.Type), c.Name, c.Size))
}
func (PrepareSecurityDataImport) MaxTimeout() time.Duration         { return 5 * time.Second }
func (PrepareSecurityDataImport) ExpectsResponse() bool             { return true }
func (PrepareSecurityDataImport) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// SendSecurityDataImportResponse carries the module's MD5 digest of the
// bytes it received, for the caller to verify against the expected digest.
type SendSecurityDataImportResponse struct {
	MD5Hex string
}

// SendSecurityDataImport streams the raw credential bytes announced by a
// preceding PrepareSecurityDataImport.
type SendSecurityDataImport struct {
	Data []byte
}

func (c SendSecurityDataImport) Bytes() []byte {
	return append([]byte(fmt.Sprintf("AT+USECDATA=%d\r\n", len(c.Data))), c.Data...)
}
func (SendSecurityDataImport) MaxTimeout() time.Duration { return 10 * time.Second }
func (SendSecurityDataImport) ExpectsResponse() bool     { return true }
func (SendSecurityDataImport) Parse(payload []byte) (any, error) {
	_, value, ok := strings.Cut(strings.TrimSpace(string(payload)), ":")
	if !ok {
		value = strings.TrimSpace(string(payload))
	}
	return SendSecurityDataImportResponse{MD5Hex: strings.Trim(value, `"`)}, nil
}
