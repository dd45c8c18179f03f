// Package files stores the uploaded files on the local disk.
package files

import (
	"bytes"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
)

const photoField = "profile_photo"

var errInvalidName = errors.New("invalid file name")

// PhotoStore normalizes the profile photos and keeps them as JPEG files in a directory.
type PhotoStore struct {
	dir          string
	maxSize      int64
	maxDimension int
}

func NewPhotoStore(conf core.UploadConfig) (*PhotoStore, error) {
	if err := os.MkdirAll(conf.Dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating upload directory")
	}
	return &PhotoStore{dir: conf.Dir, maxSize: conf.MaxSize, maxDimension: conf.MaxDimension}, nil
}

// Save decodes the image read from r, bounds it to the max dimension and writes it under a random name.
// Unreadable or oversized images are a validation error on the photo field.
func (s *PhotoStore) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", errors.Wrap(err, "reading photo")
	}
	if int64(len(data)) > s.maxSize {
		return "", core.NewFieldError(photoField, "the photo is too large")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", core.NewFieldError(photoField, "upload a valid JPEG, PNG or GIF image")
	}
	if b := img.Bounds(); b.Dx() > s.maxDimension || b.Dy() > s.maxDimension {
		img = imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
	}

	name := uuid.New().String() + ".jpg"
	if err = s.write(name, img); err != nil {
		return "", err
	}
	return name, nil
}

func (s *PhotoStore) write(name string, img image.Image) error {
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return errors.Wrap(err, "creating photo file")
	}
	if err = imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return errors.Wrap(err, "encoding photo")
	}
	return errors.Wrap(f.Close(), "closing photo file")
}

// Open returns the content of a stored photo.
func (s *PhotoStore) Open(name string) (io.ReadCloser, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, core.NewNotFoundError("photo")
	} else if err != nil {
		return nil, errors.Wrap(err, "opening photo")
	}
	return f, nil
}

func (s *PhotoStore) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting photo")
	}
	return nil
}

// path rejects names that are not plain file names.
func (s *PhotoStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", errInvalidName
	}
	return filepath.Join(s.dir, name), nil
}
