package credentials

import (
	"context"
	"log/slog"
	"time"

	"github.com/teamrocket/dhtnode"
)

// Console is the byte source credentials are typed into. TinyGo's
// machine.Serial and machine.UART satisfy it.
type Console interface {
	// Buffered returns the number of bytes ready to be read.
	Buffered() int
	ReadByte() (byte, error)
}

// Prompt is printed on the console before reading credentials.
const Prompt = "Network auth format: SSID/passw\\n"

const consolePoll = 5 * time.Millisecond

// ReadConsole attempts to read one "<ssid>/<password>\n" line from c.
//
// No input within timeout is a valid skip and returns false. Every byte is
// awaited for at most timeout; a password may also end by timeout. Fields are
// read up to one byte past their maximum length so that overflow rejects the
// whole attempt instead of truncating. A carriage return is dropped only when
// it ends the line.
func ReadConsole(c Console, clk dhtnode.Clock, timeout time.Duration, logger *slog.Logger) (Credentials, bool) {
	if !waitByte(c, clk, timeout) {
		return Credentials{}, false
	}
	// Room for a full password, its carriage return and one overflow byte.
	var buf [MaxPasswordLen + 2]byte
	ssid, term := readField(c, clk, timeout, buf[:MaxSSIDLen+1], '/')
	var creds Credentials
	creds.SSID = ssid
	switch {
	case len(ssid) == 0:
		logwarn(logger, "console:empty-ssid")
		return Credentials{}, false
	case len(ssid) > MaxSSIDLen:
		logwarn(logger, "console:ssid-too-long")
		return Credentials{}, false
	case term != '/':
		// Line ended before the separator: no password field.
		logwarn(logger, "console:empty-password")
		return Credentials{}, false
	}
	pass, term := readField(c, clk, timeout, buf[:], '\n')
	full := term == 0 && len(pass) == len(buf)
	if n := len(pass); n > 0 && !full && pass[n-1] == '\r' {
		pass = pass[:n-1]
	}
	creds.Password = pass
	switch {
	case len(pass) == 0:
		logwarn(logger, "console:empty-password")
		return Credentials{}, false
	case len(pass) > MaxPasswordLen:
		logwarn(logger, "console:password-too-long")
		return Credentials{}, false
	}
	return creds, true
}

// readField reads into buf until delim, a newline, a full buffer or a
// timeout. The terminating byte is consumed and returned; it is zero when the
// field ended for any other reason.
func readField(c Console, clk dhtnode.Clock, timeout time.Duration, buf []byte, delim byte) (string, byte) {
	n := 0
	for n < len(buf) {
		if !waitByte(c, clk, timeout) {
			break
		}
		b, err := c.ReadByte()
		if err != nil {
			break
		}
		if b == delim || b == '\n' {
			return string(buf[:n]), b
		}
		buf[n] = b
		n++
	}
	return string(buf[:n]), 0
}

func waitByte(c Console, clk dhtnode.Clock, timeout time.Duration) bool {
	deadline := clk.Now().Add(timeout)
	for c.Buffered() == 0 {
		if !clk.Now().Before(deadline) {
			return false
		}
		clk.Sleep(consolePoll)
	}
	return true
}

func logwarn(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if logger != nil {
		logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
	}
}
