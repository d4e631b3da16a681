package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceStore_CreatesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")
	store := NewPreferenceStore(dir, Preferences{ThumbnailPreview: true, AutoRefresh: true})

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Preferences{ThumbnailPreview: true, AutoRefresh: true}, p)

	_, err = os.Stat(filepath.Join(dir, "config.json"))
	assert.NoError(t, err)
}

func TestPreferenceStore_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewPreferenceStore(dir, Preferences{ThumbnailPreview: true, AutoRefresh: true})
	_, err := store.Load()
	require.NoError(t, err)

	require.NoError(t, store.Save(Preferences{ThumbnailPreview: false, AutoRefresh: true}))

	reopened := NewPreferenceStore(dir, Preferences{ThumbnailPreview: true, AutoRefresh: true})
	p, err := reopened.Load()
	require.NoError(t, err)
	assert.False(t, p.ThumbnailPreview)
	assert.True(t, p.AutoRefresh)
}

func TestPreferenceStore_InvalidFileResetsToDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json"), "not json")
	store := NewPreferenceStore(dir, Preferences{ThumbnailPreview: false, AutoRefresh: true})

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Preferences{ThumbnailPreview: false, AutoRefresh: true}, p)
}
