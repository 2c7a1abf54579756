package filestore

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestLocalStore_SaveAndOpen(t *testing.T) {
	req := require.New(t)
	store, err := NewLocalStore(t.TempDir())
	req.NoError(err)

	original := pngBytes(t)
	filename, err := store.Save(bytes.NewReader(original))
	req.NoError(err)
	req.True(strings.HasSuffix(filename, ".png"))

	f, err := store.Open(filename)
	req.NoError(err)
	defer f.Close()

	stored, err := io.ReadAll(f)
	req.NoError(err)
	req.Equal(original, stored)
}

func TestLocalStore_RejectsUnsupportedContent(t *testing.T) {
	req := require.New(t)
	store, err := NewLocalStore(t.TempDir())
	req.NoError(err)

	// Plain text disguised as nothing in particular
	_, err = store.Save(strings.NewReader("definitely not an image"))
	req.ErrorIs(err, errors.ErrUnsupportedFileType)
}

func TestLocalStore_OpenStaysInsideRoot(t *testing.T) {
	req := require.New(t)
	store, err := NewLocalStore(t.TempDir())
	req.NoError(err)

	_, err = store.Open("../../etc/passwd")
	req.Error(err)
}
