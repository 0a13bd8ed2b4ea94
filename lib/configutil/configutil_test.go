package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Library     string `json:"library"`
	DownloadDir string `json:"download_dir"`
	Headless    bool   `json:"headless"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "libby_config.json5")

	err := os.WriteFile(name, []byte(`{
	// comments are allowed
	library: "Boston Public Library",
	download_dir: "/tmp/books",
}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "Boston Public Library", cfg.Library)
	require.Equal(t, "/tmp/books", cfg.DownloadDir)
	require.False(t, cfg.Headless)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalOverride(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "libby_config.json5")

	err := os.WriteFile(name, []byte(`{
	library: "Boston Public Library",
	download_dir: "/tmp/books",
}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "libby_config.local.json5"), []byte(`{
	download_dir: "/mnt/audiobooks",
	headless: true,
}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "Boston Public Library", cfg.Library)
	require.Equal(t, "/mnt/audiobooks", cfg.DownloadDir)
	require.True(t, cfg.Headless)
}

func TestWriteConfigRoundtrip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "libby_config.json5")

	want := testConfig{
		Library:     "Seattle Public Library",
		DownloadDir: "/tmp/books",
		Headless:    true,
	}
	err := WriteConfig(name, want)
	require.NoError(t, err)

	got, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
