package credentials

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamrocket/dhtnode/internal/clocktest"
)

// fakeConsole delivers data once the clock passes arriveAt.
type fakeConsole struct {
	clk      *clocktest.Clock
	data     []byte
	arriveAt time.Time
}

func newConsole(clk *clocktest.Clock, data string, delay time.Duration) *fakeConsole {
	return &fakeConsole{clk: clk, data: []byte(data), arriveAt: clk.Now().Add(delay)}
}

func (c *fakeConsole) Buffered() int {
	if c.clk.Now().Before(c.arriveAt) {
		return 0
	}
	return len(c.data)
}

func (c *fakeConsole) ReadByte() (byte, error) {
	b := c.data[0]
	c.data = c.data[1:]
	return b, nil
}

func TestReadConsole(t *testing.T) {
	long := func(n int) string { return strings.Repeat("x", n) }
	tests := []struct {
		name   string
		input  string
		want   Credentials
		wantOK bool
	}{
		{name: "valid", input: "home/hunter22\n", want: Credentials{"home", "hunter22"}, wantOK: true},
		{name: "crlf", input: "home/hunter22\r\n", want: Credentials{"home", "hunter22"}, wantOK: true},
		{name: "password ends by timeout", input: "home/hunter22", want: Credentials{"home", "hunter22"}, wantOK: true},
		{name: "max lengths", input: long(32) + "/" + long(63) + "\n", want: Credentials{long(32), long(63)}, wantOK: true},
		{name: "max password crlf", input: "a/" + long(63) + "\r\n", want: Credentials{"a", long(63)}, wantOK: true},
		{name: "password with slash", input: "a/b/c\n", want: Credentials{"a", "b/c"}, wantOK: true},
		{name: "empty ssid", input: "/hunter22\n"},
		{name: "empty password", input: "home/\n"},
		{name: "no separator", input: "home\n"},
		{name: "ssid ends by timeout", input: "home"},
		{name: "ssid too long", input: long(33) + "/pass\n"},
		{name: "password too long", input: "home/" + long(64) + "\n"},
		{name: "password far too long", input: "home/" + long(200) + "\n"},
		{name: "password too long crlf", input: "home/" + long(64) + "\r\n"},
		{name: "carriage return inside overlong password", input: "home/" + long(63) + "\rTRAILING\n"},
		{name: "max password cr then timeout", input: "a/" + long(63) + "\r", want: Credentials{"a", long(63)}, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clocktest.New()
			con := newConsole(clk, tt.input, 0)
			got, ok := ReadConsole(con, clk, time.Second, nil)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.NoError(t, got.Validate())
			}
		})
	}
}

func TestReadConsoleNoInput(t *testing.T) {
	clk := clocktest.New()
	con := newConsole(clk, "", 0)
	_, ok := ReadConsole(con, clk, time.Second, nil)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, clk.Elapsed(), time.Second)
	assert.Less(t, clk.Elapsed(), time.Second+50*time.Millisecond, "wait is bounded by the timeout")
}

func TestReadConsoleLateInput(t *testing.T) {
	clk := clocktest.New()
	con := newConsole(clk, "home/hunter22\n", 600*time.Millisecond)
	got, ok := ReadConsole(con, clk, time.Second, nil)
	require.True(t, ok)
	assert.Equal(t, Credentials{"home", "hunter22"}, got)

	clk = clocktest.New()
	con = newConsole(clk, "home/hunter22\n", 2*time.Second)
	_, ok = ReadConsole(con, clk, time.Second, nil)
	assert.False(t, ok, "input after the window is ignored")
}

func TestAppendLineRoundTrip(t *testing.T) {
	c := Credentials{SSID: "Team Rocket", Password: "prepare-for-trouble"}
	line := AppendLine(nil, c)
	assert.Equal(t, "Team Rocket/prepare-for-trouble\n", string(line))
	clk := clocktest.New()
	got, ok := ReadConsole(newConsole(clk, string(line), 0), clk, time.Second, nil)
	require.True(t, ok)
	assert.Equal(t, c, got)
}
