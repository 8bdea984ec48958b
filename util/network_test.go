package util

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAddr(t *testing.T) {
	assert.Equal(t, "1.2.3.4:22", FormatAddr("1.2.3.4", 22))
	assert.Equal(t, "[::1]:4000", FormatAddr("::1", 4000))
	assert.Equal(t, ":4000", FormatAddr("", 4000))
}

func TestFreeAddr_TCP(t *testing.T) {
	addr, err := FreeAddr("tcp")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err, "address %s should be bindable", addr)
	ln.Close()
}

func TestFreeAddr_Unix(t *testing.T) {
	a, err := FreeAddr("unix")
	require.NoError(t, err)
	b, err := FreeAddr("unix")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = os.Stat(a)
	assert.True(t, os.IsNotExist(err))
}

func TestFreeAddr_UnknownNetwork(t *testing.T) {
	_, err := FreeAddr("udp")
	assert.Error(t, err)
}
