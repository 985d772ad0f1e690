package embedstore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gamesearch-mcp/internal/similarity"
)

func sampleVectors() [][]float32 {
	return [][]float32{
		{0.1, -0.2, 0.3, 0.4},
		{1, 0, 0, 0},
		{-1.5, 2.25, 3.125, -0.0625},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	want := sampleVectors()

	require.NoError(t, Save(path, want, 4))

	got, dim, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)
	assert.Equal(t, want, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(HeaderSize+3*4*4), info.Size())
}

func TestSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, nil, 384))

	got, dim, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 384, dim)
	assert.Empty(t, got)
}

func TestEncodeHeaderLayout(t *testing.T) {
	buf, err := Encode([][]float32{{1, 2}}, 2)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x44, 0x42, 0x4D, 0x45}, buf[0:4])
	assert.Equal(t, Version, binary.LittleEndian.Uint16(buf[4:6]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(buf[6:8]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[8:12]))
}

func TestEncodeRejectsRaggedVectors(t *testing.T) {
	_, err := Encode([][]float32{{1, 2, 3}, {1, 2}}, 3)
	require.ErrorIs(t, err, similarity.ErrDimensionMismatch)

	_, err = Encode(nil, 70000)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.bin"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSizeMismatch(t *testing.T) {
	valid, err := Encode(sampleVectors(), 4)
	require.NoError(t, err)

	for _, n := range []int{1, 3, 4, 17, len(valid) - HeaderSize, len(valid) - 4, len(valid) - 1} {
		t.Run("truncated", func(t *testing.T) {
			_, _, err := Decode(valid[:len(valid)-n])
			require.ErrorIs(t, err, ErrCorrupted, "truncated by %d bytes", n)
		})
	}

	for _, n := range []int{1, 4, 100} {
		t.Run("extended", func(t *testing.T) {
			extended := append(append([]byte{}, valid...), make([]byte, n)...)
			_, _, err := Decode(extended)
			require.ErrorIs(t, err, ErrCorrupted, "extended by %d bytes", n)
		})
	}
}

func TestLoadBadMagic(t *testing.T) {
	buf, err := Encode(sampleVectors(), 4)
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(buf[0:4], 0xDEADBEEF)

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, _, err = Load(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestLoadUnsupportedVersion(t *testing.T) {
	buf, err := Encode(sampleVectors(), 4)
	require.NoError(t, err)
	binary.LittleEndian.PutUint16(buf[4:6], 2)

	_, _, err = Decode(buf)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	require.NoError(t, Save(path, sampleVectors(), 4))
	require.NoError(t, Save(path, [][]float32{{9, 9}}, 2))

	got, dim, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
	assert.Equal(t, [][]float32{{9, 9}}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should remain")
}

func TestIndexRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFileName)
	ids := []string{"glow-stick", "bandage", "rusted-gear"}

	require.NoError(t, SaveIndex(path, ids))
	got, err := LoadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	_, err = LoadIndex(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadIndexInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadIndex(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
}
