package metastore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

func TestPutGet(t *testing.T) {
	s := NewYAMLStore(t.TempDir())
	key := domain.NewFormKey("household", "3")

	_, ok, err := s.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	c := domain.NewCursor(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "uuid:9")
	require.NoError(t, s.Put(domain.FormMetadata{Key: key, Name: "Household", Cursor: c}))

	got, ok, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Household", got.Name)
	assert.True(t, got.Cursor.Equal(c))
}

func TestPutGet_AtSignInIDDoesNotShareAFile(t *testing.T) {
	s := NewYAMLStore(t.TempDir())
	atInID := domain.NewFormKey("a@b", "")
	versioned := domain.NewFormKey("a", "b")

	require.NoError(t, s.Put(domain.FormMetadata{Key: atInID, Name: "A"}))

	_, ok, err := s.Get(versioned)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(domain.FormMetadata{Key: versioned, Name: "B"}))
	got, ok, err := s.Get(atInID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, atInID, got.Key)
	assert.Equal(t, "A", got.Name)

	all, err := s.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPut_UnchangedRecordIsNotRewritten(t *testing.T) {
	root := t.TempDir()
	s := NewYAMLStore(root)
	meta := domain.FormMetadata{
		Key:    domain.NewFormKey("household", "3"),
		Name:   "Household",
		Cursor: domain.NewCursor(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "uuid:9"),
	}
	require.NoError(t, s.Put(meta))

	path := s.path(meta.Key)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, s.Put(meta))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))

	meta.Name = "Household survey"
	require.NoError(t, s.Put(meta))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.ModTime().Equal(old))
}

func TestPut_CursorNeverRegresses(t *testing.T) {
	s := NewYAMLStore(t.TempDir())
	key := domain.NewFormKey("household", "")

	later := domain.NewCursor(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "uuid:b")
	earlier := domain.NewCursor(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "uuid:a")

	require.NoError(t, s.Put(domain.FormMetadata{Key: key, Cursor: later}))
	require.NoError(t, s.Put(domain.FormMetadata{Key: key, Cursor: earlier, Name: "renamed"}))

	got, _, err := s.Get(key)
	require.NoError(t, err)
	assert.True(t, got.Cursor.Equal(later))
	assert.Equal(t, "renamed", got.Name)
}

func TestList_SortedAndNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s := NewYAMLStore(root)

	for _, k := range []domain.FormKey{
		domain.NewFormKey("b", ""),
		domain.NewFormKey("a", "2"),
		domain.NewFormKey("a", "1"),
	} {
		require.NoError(t, s.Put(domain.FormMetadata{Key: k}))
	}

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, domain.NewFormKey("a", "1"), list[0].Key)
	assert.Equal(t, domain.NewFormKey("b", ""), list[2].Key)

	entries, err := os.ReadDir(filepath.Join(root, ".metadata"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, ".yaml", filepath.Ext(e.Name()))
	}
}

func TestList_EmptyStore(t *testing.T) {
	list, err := NewYAMLStore(t.TempDir()).List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
