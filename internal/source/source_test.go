package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/webp2png/internal/testutil"
)

var exts = []string{".webp", ".png", ".jpg"}

func names(set *Set) []string {
	out := make([]string, len(set.Entries))
	for i, e := range set.Entries {
		out[i] = e.Path
	}
	return out
}

func TestOpen_Dir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{
		"b.webp":       []byte("b"),
		"a.PNG":        []byte("a"),
		"c.jpg":        []byte("c"),
		"notes.txt":    []byte("x"),
		".hidden.webp": []byte("h"),
		"sub/d.webp":   []byte("d"),
	})

	set, err := Open(dir, exts)
	require.NoError(t, err)
	defer set.Close()

	assert.False(t, set.Archive)
	require.Len(t, set.Entries, 3)
	assert.Equal(t, []string{"a.PNG", "b.webp", "c.jpg"},
		[]string{set.Entries[0].Name, set.Entries[1].Name, set.Entries[2].Name})

	data, err := set.Entries[1].ReadAll(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)
	assert.Equal(t, "b", set.Entries[1].Stem())
	assert.Equal(t, int64(1), set.Entries[1].Size)
}

func TestOpen_Zip(t *testing.T) {
	zp := testutil.Zip(t, filepath.Join(t.TempDir(), "pages.ZIP"), map[string][]byte{
		"vol/02.webp":            []byte("two"),
		"01.webp":                []byte("one"),
		"vol/":                   nil,
		"__MACOSX/vol/._02.webp": []byte("fork"),
		"readme.md":              []byte("x"),
	})

	set, err := Open(zp, exts)
	require.NoError(t, err)
	defer set.Close()

	assert.True(t, set.Archive)
	assert.Equal(t, []string{"01.webp", "vol/02.webp"}, names(set))
	assert.Equal(t, "02.webp", set.Entries[1].Name)

	data, err := set.Entries[1].ReadAll(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
	require.NoError(t, set.Close())
	require.NoError(t, set.Close())
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "image.webp")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))

	_, err := Open(plain, exts)
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = Open(filepath.Join(dir, "missing"), exts)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bogus := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(bogus, []byte("not a zip"), 0o644))
	_, err = Open(bogus, exts)
	assert.Error(t, err)
}

func TestReadAll_Limit(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{"big.webp": make([]byte, 100)})

	set, err := Open(dir, exts)
	require.NoError(t, err)
	require.Len(t, set.Entries, 1)

	_, err = set.Entries[0].ReadAll(99)
	assert.True(t, errors.Is(err, ErrEntryTooLarge))

	data, err := set.Entries[0].ReadAll(100)
	require.NoError(t, err)
	assert.Len(t, data, 100)
}
