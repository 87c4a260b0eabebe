package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetSize(t *testing.T) {
	for _, tc := range []struct {
		srcW, srcH, w, h int
		wantW, wantH     int
	}{
		{srcW: 4000, srcH: 3000, w: 800, wantW: 800, wantH: 600},
		{srcW: 4000, srcH: 3000, h: 301, wantW: 400, wantH: 300},
		{srcW: 1000, srcH: 3, w: 100, wantW: 100, wantH: 2},
		{srcW: 640, srcH: 480, w: 33, h: 17, wantW: 32, wantH: 16},
	} {
		w, h, err := targetSize(tc.srcW, tc.srcH, tc.w, tc.h)
		require.NoError(t, err)
		assert.Equal(t, [2]int{tc.wantW, tc.wantH}, [2]int{w, h}, "%+v", tc)
	}

	_, _, err := targetSize(10, 10, 0, 0)
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, 7, intOr(-1, 7))
	assert.Equal(t, 0, intOr(0, 7))
	assert.Equal(t, "hlg", stringOr("", "hlg"))
	assert.Equal(t, "pq", stringOr("pq", "hlg"))
}

func TestDigest(t *testing.T) {
	assert.Empty(t, digest(nil))
	assert.Len(t, digest([]byte("gain map")), 16)
	assert.Equal(t, digest([]byte("a")), digest([]byte("a")))
}

func TestCheckEncodeInputs(t *testing.T) {
	assert.NoError(t, checkEncodeInputs("", "exif.bin", "profile.icc"))
	assert.NoError(t, checkEncodeInputs("base.jpg", "", ""))
	assert.Error(t, checkEncodeInputs("base.jpg", "exif.bin", ""))
	assert.Error(t, checkEncodeInputs("base.jpg", "", "profile.icc"))
}

func TestReadOptional(t *testing.T) {
	dir := t.TempDir()

	b, err := readOptional(filepath.Join(dir, "exif.bin"))
	require.NoError(t, err)
	assert.Nil(t, b)

	path := filepath.Join(dir, "profile.icc")
	require.NoError(t, os.WriteFile(path, []byte("icc"), 0o600))
	b, err = readOptional(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("icc"), b)

	_, err = readOptional(dir)
	assert.Error(t, err)
}

func TestDetectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o600))

	ok, err := detectFile(path)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = detectFile(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}
