package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamrocket/dhtnode/credentials"
)

// chunkReader returns its data a few bytes per Read, like a serial port.
type chunkReader struct {
	data  []byte
	chunk int
}

func (c *chunkReader) Read(b []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, nil // Read timeout.
	}
	n := min(c.chunk, len(b), len(c.data))
	copy(b, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestWaitPrompt(t *testing.T) {
	boot := strings.Repeat("level=INFO msg=boot:countdown remaining=3\r\n", 20)
	r := &chunkReader{data: []byte(boot + credentials.Prompt + "\r\n"), chunk: 7}
	var echoed bytes.Buffer
	require.NoError(t, waitPrompt(r, &echoed, time.Now().Add(time.Second)))
	assert.Contains(t, echoed.String(), credentials.Prompt)
}

func TestWaitPromptTimeout(t *testing.T) {
	r := &chunkReader{data: []byte("level=INFO msg=boot:hello\r\n"), chunk: 64}
	err := waitPrompt(r, &bytes.Buffer{}, time.Now().Add(20*time.Millisecond))
	assert.ErrorIs(t, err, errNoPrompt)
}

func TestSend(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, send(&out, credentials.Credentials{SSID: "home", Password: "hunter22"}))
	assert.Equal(t, "home/hunter22\n", out.String())
}
