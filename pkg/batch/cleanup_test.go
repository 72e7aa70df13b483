package batch

import (
	"io/fs"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lesionfilter/internal/logger"
)

func TestRemoveStaleOutputs(t *testing.T) {
	base := t.TempDir()
	files := []string{
		filepath.Join("a", "liver.nii.gz"),
		filepath.Join("a", "liver_tumor.nii.gz"),
		filepath.Join("a", "liver_tumor_new.nii.gz"),
		filepath.Join("b", "c", "kidney_tumor_new77777.nii.gz"),
		filepath.Join("b", "notes_new.txt"),
	}
	for _, f := range files {
		touch(t, filepath.Join(base, f), "x")
	}

	removed, err := RemoveStaleOutputs(base, []string{"_new.nii.gz", "_new77777.nii.gz"}, logger.NewNop())
	require.NoError(t, err)

	sort.Strings(removed)
	assert.Equal(t, []string{
		filepath.Join(base, "a", "liver_tumor_new.nii.gz"),
		filepath.Join(base, "b", "c", "kidney_tumor_new77777.nii.gz"),
	}, removed)

	for _, f := range []string{files[0], files[1], files[4]} {
		assert.FileExists(t, filepath.Join(base, f))
	}
}

func TestRemoveStaleOutputsNoSuffixes(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "liver_tumor_new.nii.gz"), "x")

	removed, err := RemoveStaleOutputs(base, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.FileExists(t, filepath.Join(base, "liver_tumor_new.nii.gz"))
}

func TestRemoveStaleOutputsMissingDir(t *testing.T) {
	_, err := RemoveStaleOutputs(filepath.Join(t.TempDir(), "missing"), []string{"_new.nii.gz"}, nil)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
