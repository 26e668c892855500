package tempfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSections(t *testing.T, w Writer, sections [][]string) {
	t.Helper()
	for i, section := range sections {
		for _, line := range section {
			_, err := w.Write([]byte(line))
			require.NoError(t, err)
		}
		if i < len(sections)-1 {
			_, err := w.Next()
			require.NoError(t, err)
		}
	}
}

func readSection(t *testing.T, r Reader, i int) string {
	t.Helper()
	data, err := io.ReadAll(r.Section(i))
	require.NoError(t, err)
	return string(data)
}

func TestArenaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArena(dir)
	require.NoError(t, err)

	writeSections(t, a, [][]string{
		{"alpha", "beta"},
		{"gamma"},
		{"delta", "epsilon", "zeta"},
	})

	r, err := a.Save()
	require.NoError(t, err)
	require.Equal(t, 3, r.Size())

	assert.Equal(t, "alphabeta", readSection(t, r, 0))
	assert.Equal(t, "gamma", readSection(t, r, 1))
	assert.Equal(t, "deltaepsilonzeta", readSection(t, r, 2))

	require.NoError(t, r.Close())
}

func TestArenaReaderCloseRemovesFile(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArena(dir)
	require.NoError(t, err)

	_, err = a.Write([]byte("payload"))
	require.NoError(t, err)

	r, err := a.Save()
	require.NoError(t, err)

	name := a.Name()
	_, err = os.Stat(name)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	_, err = os.Stat(name)
	assert.True(t, os.IsNotExist(err))
}

func TestArenaCloseAbortsAndRemovesFile(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArena(dir)
	require.NoError(t, err)

	_, err = a.Write([]byte("partial"))
	require.NoError(t, err)

	name := a.Name()
	require.NoError(t, a.Close())

	_, err = os.Stat(name)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArenaConcurrentInvocationsDoNotCollide(t *testing.T) {
	dir := t.TempDir()

	arenas := make([]*Arena, 4)
	for i := range arenas {
		a, err := NewArena(dir)
		require.NoError(t, err)
		arenas[i] = a
		_, err = a.Write([]byte(fmt.Sprintf("owner-%d", i)))
		require.NoError(t, err)
	}

	names := make(map[string]bool)
	for _, a := range arenas {
		names[a.Name()] = true
	}
	assert.Len(t, names, 4)

	for i, a := range arenas {
		r, err := a.Save()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("owner-%d", i), readSection(t, r, 0))
		require.NoError(t, r.Close())
	}
}

func TestArenaEmptySections(t *testing.T) {
	a, err := NewArena(t.TempDir())
	require.NoError(t, err)

	// seal two empty sections followed by one with data
	_, err = a.Next()
	require.NoError(t, err)
	_, err = a.Next()
	require.NoError(t, err)
	_, err = a.Write([]byte("tail"))
	require.NoError(t, err)

	r, err := a.Save()
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 3, r.Size())
	assert.Empty(t, readSection(t, r, 0))
	assert.Empty(t, readSection(t, r, 1))
	assert.Equal(t, "tail", readSection(t, r, 2))
}

func TestArenaUsesProvidedDir(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArena(dir)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, dir, filepath.Dir(a.Name()))
}

func TestMemArenaRoundTrip(t *testing.T) {
	m := NewMemArena(64)

	writeSections(t, m, [][]string{
		{"one"},
		{"two", "three"},
	})

	r, err := m.Save()
	require.NoError(t, err)
	require.Equal(t, 2, r.Size())

	assert.Equal(t, "one", readSection(t, r, 0))
	assert.Equal(t, "twothree", readSection(t, r, 1))
	require.NoError(t, r.Close())
}

func TestSectionOutOfRangePanics(t *testing.T) {
	m := NewMemArena(0)
	r, err := m.Save()
	require.NoError(t, err)

	assert.Panics(t, func() { r.Section(-1) })
	assert.Panics(t, func() { r.Section(r.Size()) })
}
