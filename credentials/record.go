package credentials

import (
	"bytes"
	"errors"
)

// Record layout: a NUL padded SSID field followed by a NUL padded password
// field. Each field reserves room for the terminator plus one spare byte, the
// layout written by earlier firmware revisions.
const (
	ssidFieldLen     = MaxSSIDLen + 2
	passwordFieldLen = MaxPasswordLen + 2
	// RecordSize is the exact size of a persisted credential record.
	RecordSize = ssidFieldLen + passwordFieldLen
)

var errRecordSize = errors.New("credentials: record has wrong size")

// MarshalRecord encodes c into dst, which must be RecordSize bytes long.
func MarshalRecord(dst []byte, c Credentials) error {
	if len(dst) != RecordSize {
		return errRecordSize
	}
	if err := c.Validate(); err != nil {
		return err
	}
	clear(dst)
	copy(dst[:ssidFieldLen], c.SSID)
	copy(dst[ssidFieldLen:], c.Password)
	return nil
}

// UnmarshalRecord decodes a record written by MarshalRecord.
func UnmarshalRecord(src []byte) (Credentials, error) {
	if len(src) != RecordSize {
		return Credentials{}, errRecordSize
	}
	c := Credentials{
		SSID:     cstring(src[:ssidFieldLen]),
		Password: cstring(src[ssidFieldLen:]),
	}
	return c, c.Validate()
}

func cstring(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}
