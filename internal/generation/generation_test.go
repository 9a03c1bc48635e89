package generation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mkGen(t *testing.T, target, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(target, name), 0o755))
}

func TestEnumerateSortsAndFiltersNonGenerationDirs(t *testing.T) {
	r := require.New(t)
	target := t.TempDir()
	mkGen(t, target, "@2024-03-02_10-00-00")
	mkGen(t, target, "@2024-01-01_00-00-00")
	mkGen(t, target, "@2024-02-15_12-30-00")
	mkGen(t, target, TempDirName)
	require.NoError(t, os.WriteFile(filepath.Join(target, "not-a-dir"), nil, 0o644))

	names, err := Enumerate(target)
	r.NoError(err)
	r.Equal([]string{"@2024-01-01_00-00-00", "@2024-02-15_12-30-00", "@2024-03-02_10-00-00"}, names)
}

func TestEnumerateMissingTargetReturnsEmpty(t *testing.T) {
	r := require.New(t)
	names, err := Enumerate(filepath.Join(t.TempDir(), "does-not-exist"))
	r.NoError(err)
	r.Nil(names)
}

func TestSelectPrevious(t *testing.T) {
	r := require.New(t)
	r.Equal("", SelectPrevious(nil))
	r.Equal("@B", SelectPrevious([]string{"@A", "@B"}))
}

func TestClampKeepCount(t *testing.T) {
	r := require.New(t)
	n, clamped := ClampKeepCount(5)
	r.Equal(5, n)
	r.False(clamped)

	n, clamped = ClampKeepCount(0)
	r.Equal(1, n)
	r.True(clamped)

	n, clamped = ClampKeepCount(-3)
	r.Equal(1, n)
	r.True(clamped)
}

func TestPruneRespectsCountAndDurationClamps(t *testing.T) {
	r := require.New(t)
	target := t.TempDir()
	names := []string{"@2024-01-01_00-00-00", "@2024-01-02_00-00-00", "@2024-01-03_00-00-00"}
	for _, n := range names {
		mkGen(t, target, n)
	}
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	// keep-count=2, keep-duration=0 (no age floor) => oldest pruned.
	kept, removed, err := Prune(target, names, 2, 0, now)
	r.NoError(err)
	r.Equal([]string{"@2024-01-02_00-00-00", "@2024-01-03_00-00-00"}, kept)
	r.Equal([]string{"@2024-01-01_00-00-00"}, removed)
	_, err = os.Stat(filepath.Join(target, "@2024-01-01_00-00-00"))
	r.True(os.IsNotExist(err))
}

func TestPruneNeverRemovesYoungerThanKeepDuration(t *testing.T) {
	r := require.New(t)
	target := t.TempDir()
	names := []string{"@2024-01-08_12-00-00", "@2024-01-09_00-00-00"}
	for _, n := range names {
		mkGen(t, target, n)
	}
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	// keep-count=1 would normally prune down to one, but keep-duration=2 days
	// protects everything newer than 2024-01-08, so the oldest survives too.
	kept, removed, err := Prune(target, names, 1, 2*24*time.Hour, now)
	r.NoError(err)
	r.Equal(names, kept)
	r.Empty(removed)
}

func TestPruneNeverRemovesLatestGeneration(t *testing.T) {
	r := require.New(t)
	target := t.TempDir()
	names := []string{"@2024-01-01_00-00-00"}
	mkGen(t, target, names[0])
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	kept, removed, err := Prune(target, names, 0, 0, now)
	r.NoError(err)
	r.Equal(names, kept)
	r.Empty(removed)
}

func TestCreateTempAndPublish(t *testing.T) {
	r := require.New(t)
	target := t.TempDir()

	tempPath, err := CreateTemp(target)
	r.NoError(err)
	r.DirExists(tempPath)

	r.NoError(os.WriteFile(filepath.Join(tempPath, "file.txt"), []byte("data"), 0o644))

	now := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)
	name, err := Publish(target, now)
	r.NoError(err)
	r.Equal("@2024-06-15_09-30-00", name)
	r.DirExists(filepath.Join(target, name))
	r.NoDirExists(tempPath)
	r.FileExists(filepath.Join(target, name, "file.txt"))
}

func TestPublishFailsWithoutTemp(t *testing.T) {
	target := t.TempDir()
	_, err := Publish(target, time.Now())
	require.Error(t, err)
}
