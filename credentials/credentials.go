// Package credentials acquires and persists the WiFi credentials of the node.
//
// Credentials are entered on the serial console as a single line
//
//	<ssid>/<password>\n
//
// within a short window after boot, or loaded from a fixed-size record in
// flash. Console input always wins and is persisted immediately.
package credentials

import "errors"

const (
	MaxSSIDLen     = 32
	MaxPasswordLen = 63
)

var (
	ErrEmptySSID       = errors.New("credentials: empty SSID")
	ErrEmptyPassword   = errors.New("credentials: empty password")
	ErrSSIDTooLong     = errors.New("credentials: SSID is too long")
	ErrPasswordTooLong = errors.New("credentials: password is too long")
	ErrNoCredentials   = errors.New("credentials: no credentials available")
)

// Credentials identify the network the node joins.
type Credentials struct {
	SSID     string
	Password string
}

// Validate checks both fields are non-empty and within their maximum length.
// Oversized values are rejected, never truncated.
func (c Credentials) Validate() error {
	switch {
	case len(c.SSID) == 0:
		return ErrEmptySSID
	case len(c.SSID) > MaxSSIDLen:
		return ErrSSIDTooLong
	case len(c.Password) == 0:
		return ErrEmptyPassword
	case len(c.Password) > MaxPasswordLen:
		return ErrPasswordTooLong
	}
	return nil
}

// AppendLine appends the console line that submits c to dst.
func AppendLine(dst []byte, c Credentials) []byte {
	dst = append(dst, c.SSID...)
	dst = append(dst, '/')
	dst = append(dst, c.Password...)
	return append(dst, '\n')
}
