package files

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keemdrivingschool/keem/core"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 220, G: 38, B: 38, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newStore(t *testing.T) *PhotoStore {
	t.Helper()
	s, err := NewPhotoStore(core.UploadConfig{Dir: t.TempDir(), MaxSize: 1 << 20, MaxDimension: 100})
	require.NoError(t, err)
	return s
}

func TestPhotoStore_Save(t *testing.T) {
	s := newStore(t)

	name, err := s.Save(bytes.NewReader(pngImage(t, 400, 200)))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".jpg"))

	rc, err := s.Open(name)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	require.NoError(t, s.Delete(name))
	_, err = s.Open(name)
	assert.True(t, core.IsNotFound(err))
	assert.NoError(t, s.Delete(name), "deleting twice")
}

func TestPhotoStore_SaveInvalid(t *testing.T) {
	s := newStore(t)

	_, err := s.Save(strings.NewReader("definitely not an image"))
	require.Error(t, err)
	assert.IsType(t, &core.ValidationError{}, err)

	s.maxSize = 10
	_, err = s.Save(bytes.NewReader(pngImage(t, 20, 20)))
	require.Error(t, err)
	assert.IsType(t, &core.ValidationError{}, err)
}

func TestPhotoStore_Path(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"", "../etc/passwd", "a/b.jpg", ".hidden"} {
		_, err := s.Open(name)
		assert.Equal(t, errInvalidName, err, name)
	}
}
