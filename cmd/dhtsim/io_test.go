package main

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdinConsole(t *testing.T) {
	c := newStdinConsole(strings.NewReader("ab"))
	require.Eventually(t, func() bool { return c.Buffered() == 2 }, time.Second, time.Millisecond)
	b, err := c.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('a'), b)
	_, err = c.ReadByte()
	require.NoError(t, err)
	_, err = c.ReadByte()
	assert.ErrorIs(t, err, errNoInput)
}

func TestSimDHTFailures(t *testing.T) {
	d := newSimDHT(1)
	tmp, hum := d.Sample()
	assert.True(t, math32.IsNaN(tmp))
	assert.True(t, math32.IsNaN(hum))

	d = newSimDHT(0)
	tmp, hum = d.Sample()
	assert.InDelta(t, 22.5, tmp, 2)
	assert.InDelta(t, 48, hum, 5)
}

func TestTCPListenersReuse(t *testing.T) {
	var l tcpListeners
	a, err := l.listen(0)
	require.NoError(t, err)
	b, err := l.listen(0)
	require.NoError(t, err)
	assert.Same(t, a, b, "restart gets the bound socket back")

	conn, err := a.Accept()
	require.NoError(t, err)
	assert.Nil(t, conn, "nothing pending")
}

func TestTCPAcceptor(t *testing.T) {
	a, err := listenTCP(0)
	require.NoError(t, err)
	go func() {
		c, err := net.Dial("tcp", a.addr.String())
		if err == nil {
			io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
			c.Close()
		}
	}()
	var conn io.ReadWriteCloser
	require.Eventually(t, func() bool {
		conn, err = a.Accept()
		return conn != nil || err != nil
	}, time.Second, time.Millisecond)
	require.NoError(t, err)
	defer conn.Close()
	got, _ := io.ReadAll(conn)
	assert.Equal(t, "GET / HTTP/1.1\r\n\r\n", string(got))
}
