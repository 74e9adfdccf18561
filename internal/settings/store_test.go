package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-openclaw-scanner/internal/models"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), FileName), zerolog.Nop())

	got, err := s.Load()

	require.NoError(t, err)
	assert.Equal(t, models.DefaultScannerSettings(), got)
}

func TestLoad_OlderShapeMergedWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	// Written before useSound and inAppBrowsing existed.
	require.NoError(t, os.WriteFile(path, []byte(`{"cronRule":"*/30 * * * *","preventSleep":true}`), 0644))

	got, err := NewStore(path, zerolog.Nop()).Load()

	require.NoError(t, err)
	assert.Equal(t, "*/30 * * * *", got.ScheduleExpr())
	assert.True(t, got.PreventSleep)
	assert.True(t, got.Sound, "missing field keeps default")
	assert.True(t, got.InAppBrowsing, "missing field keeps default")
	assert.False(t, got.EmailAlerts)
}

func TestLoad_EmptyScheduleMeansDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"cronRule":"  "}`), 0644))

	got, err := NewStore(path, zerolog.Nop()).Load()

	require.NoError(t, err)
	assert.Nil(t, got.Schedule)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	got, err := NewStore(path, zerolog.Nop()).Load()

	assert.Error(t, err)
	assert.Equal(t, models.DefaultScannerSettings(), got)
}

func TestSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, zerolog.Nop())
	assert.Equal(t, filepath.Join(dir, FileName), s.Path())

	expr := "0 9 * * 1-5"
	want := models.ScannerSettings{Schedule: &expr, PreventSleep: true, EmailAlerts: true}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewStore_MissingDirectoryHoldsFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".cache")
	s := NewStore(dir, zerolog.Nop())
	assert.Equal(t, filepath.Join(dir, FileName), s.Path())

	require.NoError(t, s.Save(models.DefaultScannerSettings()))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(filepath.Join(dir, FileName))
	assert.NoError(t, err)
}

func TestNewStore_JSONPathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	assert.Equal(t, path, NewStore(path, zerolog.Nop()).Path())
}
