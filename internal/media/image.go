package media

import (
	"bytes"
	"errors"

	"github.com/disintegration/imaging"
)

var ErrNotImage = errors.New("not a decodable image")

type Options struct {
	MaxWidth int
	Quality  int
}

type Image struct {
	Data        []byte
	Width       int
	Height      int
	ContentType string
}

// Normalize decodes any supported image, applies EXIF orientation, caps the
// width at MaxWidth and re-encodes it as JPEG.
func Normalize(data []byte, opt Options) (*Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrNotImage
	}
	if opt.MaxWidth > 0 && img.Bounds().Dx() > opt.MaxWidth {
		img = imaging.Resize(img, opt.MaxWidth, 0, imaging.Lanczos)
	}
	q := opt.Quality
	if q <= 0 {
		q = 85
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Image{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy(), ContentType: "image/jpeg"}, nil
}
