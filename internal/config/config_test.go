package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
ca-path: /etc/espstream/ca.crt
cert-path: /etc/espstream/client.crt
key-path: /etc/espstream/client.key
download-dir: /data/downloads
discovery-timeout: 5s
device: esp-streamer01
from: log-0001.txt
to: log-0099.txt
`)
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/espstream/ca.crt", f.CAPath)
	assert.Equal(t, "/data/downloads", f.DownloadDir)
	assert.Equal(t, "esp-streamer01", f.Device)
	assert.Equal(t, "log-0001.txt", f.From)
	assert.Equal(t, "log-0099.txt", f.To)

	timeout, err := f.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)
}

func TestLoadPartial(t *testing.T) {
	f, err := Load(writeConfig(t, "download-dir: ./out\n"))
	require.NoError(t, err)
	assert.Equal(t, "./out", f.DownloadDir)
	assert.Empty(t, f.Device)

	timeout, err := f.Timeout()
	require.NoError(t, err)
	assert.Zero(t, timeout)
}

func TestLoadBadTimeout(t *testing.T) {
	_, err := Load(writeConfig(t, "discovery-timeout: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discovery-timeout")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, ":\n\t-"))
	require.Error(t, err)
}
