package main

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_WritesPair(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	require.NoError(t, run([]string{"-dir", dir, "-hosts", "panel.lan, 10.0.0.5"}, &out))
	assert.Contains(t, out.String(), "written")

	pair, err := tls.LoadX509KeyPair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key"))
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"panel.lan"}, cert.DNSNames)
	assert.Len(t, cert.IPAddresses, 1)
}

func TestRun_KeepsUnlessForced(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, run([]string{"-dir", dir}, &out))
	first, err := os.ReadFile(filepath.Join(dir, "server.crt"))
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, run([]string{"-dir", dir}, &out))
	assert.Contains(t, out.String(), "Keeping existing")
	same, err := os.ReadFile(filepath.Join(dir, "server.crt"))
	require.NoError(t, err)
	assert.Equal(t, first, same)

	require.NoError(t, run([]string{"-dir", dir, "-force"}, &out))
	replaced, err := os.ReadFile(filepath.Join(dir, "server.crt"))
	require.NoError(t, err)
	assert.NotEqual(t, first, replaced)
}
