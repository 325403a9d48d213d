package gelf

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterSendsGELF(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	w, err := New(pc.LocalAddr().String(), "healthy-city")
	require.NoError(t, err)
	defer w.Close()

	n, err := w.Write([]byte(`{"level":"warn","ts":1700000000.5,"msg":"backup skipped","logger":"backup","id":"x"}` + "\n"))
	require.NoError(t, err)
	assert.Positive(t, n)

	buf := make([]byte, 4096)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	read, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf[:read], &got))
	assert.Equal(t, "1.1", got["version"])
	assert.Equal(t, "backup skipped", got["short_message"])
	assert.Equal(t, float64(4), got["level"])
	assert.Equal(t, 1700000000.5, got["timestamp"])
	assert.Equal(t, "backup", got["_logger"])
	assert.Equal(t, "x", got["_record_id"])
	assert.Equal(t, "healthy-city", got["_service"])
}

func TestConvertPlainText(t *testing.T) {
	w := &Writer{hostname: "h", service: "s"}
	got := w.convert([]byte("not json"))
	assert.Equal(t, "not json", got["short_message"])
	assert.Equal(t, 6, got["level"])
}
