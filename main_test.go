package main

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeozeozeo/gopm4/config"
	"github.com/zeozeozeo/gopm4/device"
	"github.com/zeozeozeo/gopm4/emulator"
	"github.com/zeozeozeo/gopm4/test"
)

const testConfig = `
memory:
  size: 0x200000
ring:
  base: 0x100000
  pages: 1
  page_words: 16
readback:
  address: 0xff000
  period: 2
producer:
  poll_interval: 50us
`

func writeStream(t *testing.T, cmd *emulator.CommandBuffer) string {
	t.Helper()

	data := make([]byte, 0, cmd.Len()*4)
	for _, w := range cmd.Words() {
		data = binary.BigEndian.AppendUint32(data, w)
	}

	path := filepath.Join(t.TempDir(), "stream.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRun(t *testing.T) {
	l := test.NewLogger()
	c := config.NewC(l)
	require.NoError(t, c.LoadString(testConfig))

	// more words than the ring holds, so the producer has to wait for readback
	cmd := emulator.NewCommandBuffer().Command(emulator.PM4_ME_INIT, 0)
	for i := uint32(0); i < 20; i++ {
		cmd.WriteRegisters(0x100+i, i, i+1)
	}
	cmd.Command(emulator.PM4_DRAW_INDX_2,
		3<<16|uint32(device.PRIM_TRIANGLE_LIST),
		0, 0xff, 10, 0xff, 10<<16, 0xff,
	)
	cmd.Command(emulator.PM4_XE_SWAP, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, run(ctx, l, c, writeStream(t, cmd), false, false))
}

func TestRun_BadStream(t *testing.T) {
	l := test.NewLogger()
	c := config.NewC(l)
	require.NoError(t, c.LoadString(testConfig))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// the device rejects a draw without its vertices
	cmd := emulator.NewCommandBuffer().Nop(2).Command(emulator.PM4_DRAW_INDX_2, 3<<16)
	err := run(ctx, l, c, writeStream(t, cmd), false, false)
	assert.ErrorIs(t, err, device.ErrShortPayload)

	// truncated packet
	cmd = emulator.NewCommandBuffer().WriteRegisters(0x10, 1, 2, 3)
	cmd.Buffer = cmd.Buffer[:2]
	err = run(ctx, l, c, writeStream(t, cmd), false, false)
	assert.ErrorIs(t, err, emulator.ErrOutOfRange)

	err = run(ctx, l, c, filepath.Join(t.TempDir(), "missing.bin"), false, false)
	assert.Error(t, err)
}

func TestRun_ConfigTest(t *testing.T) {
	l := test.NewLogger()
	c := config.NewC(l)

	require.NoError(t, c.LoadString(testConfig))
	assert.NoError(t, run(context.Background(), l, c, "", false, true))

	require.NoError(t, c.LoadString(testConfig, "ring:\n  pages: 3\n"))
	assert.ErrorIs(t, run(context.Background(), l, c, "", false, true), emulator.ErrInvalidConfiguration)

	require.NoError(t, c.LoadString(testConfig, "readback:\n  address: 0\n"))
	assert.ErrorIs(t, run(context.Background(), l, c, "", false, true), emulator.ErrInvalidConfiguration)

	require.NoError(t, c.LoadString(testConfig, "stats:\n  type: graphite\n"))
	assert.Error(t, run(context.Background(), l, c, "", false, true))
}

func TestConfigLogger(t *testing.T) {
	l := logrus.New()
	c := config.NewC(l)

	require.NoError(t, c.LoadString("logging:\n  level: debug\n  format: json\n"))
	require.NoError(t, configLogger(l, c))
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	require.NoError(t, c.LoadString("logging:\n  timestamp_format: 2006\n"))
	require.NoError(t, configLogger(l, c))
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	tf, ok := l.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, tf.FullTimestamp)

	require.NoError(t, c.LoadString("logging:\n  level: loud\n"))
	assert.Error(t, configLogger(l, c))

	require.NoError(t, c.LoadString("logging:\n  format: xml\n"))
	assert.Error(t, configLogger(l, c))
}

func TestStartStats(t *testing.T) {
	l := test.NewLogger()
	c := config.NewC(l)

	require.NoError(t, c.LoadString("stats:\n  type: none\n"))
	assert.NoError(t, startStats(l, c, "test", true))

	for _, raw := range []string{
		"stats:\n  type: carrier-pigeon\n  interval: 1s\n",
		"stats:\n  type: prometheus\n",
		"stats:\n  type: prometheus\n  interval: 1s\n",
		"stats:\n  type: prometheus\n  interval: 1s\n  listen: 127.0.0.1:0\n",
		"stats:\n  type: graphite\n  interval: 1s\n",
	} {
		require.NoError(t, c.LoadString(raw))
		assert.Error(t, startStats(l, c, "test", true), raw)
	}

	require.NoError(t, c.LoadString("stats:\n  type: prometheus\n  interval: 1s\n  listen: 127.0.0.1:0\n  path: /metrics\n"))
	assert.NoError(t, startStats(l, c, "test", true))
}
