package image

import (
	"bytes"
	"errors"
	"fmt"
	stdimage "image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const DefaultFormat = "png"

var ErrFormat = errors.New("unsupported output format")

type encoding struct {
	mime   string
	encode func(io.Writer, stdimage.Image) error
}

var encodings = map[string]encoding{
	"png": {"image/png", png.Encode},
	"jpeg": {"image/jpeg", func(w io.Writer, m stdimage.Image) error {
		return jpeg.Encode(w, m, &jpeg.Options{Quality: 95})
	}},
	"gif": {"image/gif", func(w io.Writer, m stdimage.Image) error {
		return gif.Encode(w, m, nil)
	}},
	"bmp": {"image/bmp", bmp.Encode},
	"tiff": {"image/tiff", func(w io.Writer, m stdimage.Image) error {
		return tiff.Encode(w, m, nil)
	}},
}

var aliases = map[string]string{"jpg": "jpeg", "tif": "tiff"}

func canonical(format string) string {
	format = strings.ToLower(format)
	if alias, ok := aliases[format]; ok {
		return alias
	}
	return format
}

func Supported(format string) bool {
	_, ok := encodings[canonical(format)]
	return ok
}

func ContentType(format string) string {
	return encodings[canonical(format)].mime
}

// Encode returns img in the given format. Data already in that format is
// returned untouched so pipeline output stays byte for byte identical.
func Encode(img Image, format string) ([]byte, error) {
	target := canonical(format)
	enc, ok := encodings[target]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFormat, format)
	}

	_, source, err := stdimage.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s image: %w", lo.Ternary(img.MIMEType != "", img.MIMEType, "unknown"), err)
	}
	if source == target {
		return img.Data, nil
	}

	m, _, err := stdimage.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := enc.encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
