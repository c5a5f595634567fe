package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mcgravity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
name: mcgravity
version: 1.0.0
servers:
  weather:
    url: http://localhost:4000/sse
    name: weather
    version: 1.0.0
    tags: [weather, demo]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "mcgravity", cfg.Name)
	require.Len(t, cfg.Servers, 1)
	require.Equal(t, "http://localhost:4000/sse", cfg.Servers["weather"].URL)
}

func TestLoadRejectsMissingURL(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  broken:
    name: broken
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "url is required")
}

func TestLoadRejectsRelativeURL(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  broken:
    url: /not-absolute
    name: broken
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "must be absolute")
}

func TestDescriptorsFromURLs(t *testing.T) {
	descs := DescriptorsFromURLs([]string{"http://a/sse", "http://b/sse"})
	require.Len(t, descs, 2)
	require.Equal(t, "http://a/sse", descs[0].URL)
	require.Equal(t, "a", descs[0].Name)
	require.Equal(t, "1.0.0", descs[0].Version)
}

func TestDescriptorsDefaultsNameAndVersionFromURL(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  weather:
    url: http://weather.example:4000/sse
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	descs := cfg.Descriptors()
	require.Len(t, descs, 1)
	require.Equal(t, "weather.example:4000", descs[0].Name)
	require.Equal(t, "1.0.0", descs[0].Version)
}
