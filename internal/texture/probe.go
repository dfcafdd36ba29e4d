// Package texture reads image dimensions for material textures. Texture
// payloads are sent to clients as the original file bytes, so only the
// header is ever decoded.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Errors returned by Probe.
var (
	ErrUnsupported = errors.New("unsupported image format")
	ErrTruncated   = errors.New("image header truncated")
)

// TGA image types.
const (
	TGATypeUncompressed = 2
	TGATypeRLE          = 10
)

const tgaHeaderSize = 18

// Info describes an image file.
type Info struct {
	Width  int
	Height int
	Format string
}

// Probe reads the dimensions of an encoded image. name is used only to
// recognize formats without a magic number.
func Probe(name string, data []byte) (Info, error) {
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		return probeTGA(data)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
		}
		return Info{}, fmt.Errorf("probe %s: %w", name, err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// ProbeFile reads path and probes it.
func ProbeFile(path string) (Info, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, nil, err
	}
	info, err := Probe(path, data)
	return info, data, err
}

// probeTGA validates a true-color TGA header.
func probeTGA(data []byte) (Info, error) {
	if len(data) < tgaHeaderSize {
		return Info{}, ErrTruncated
	}
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])

	if colorMapType != 0 {
		return Info{}, fmt.Errorf("%w: color-mapped TGA", ErrUnsupported)
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return Info{}, fmt.Errorf("%w: TGA type %d", ErrUnsupported, imageType)
	}
	if bpp != 24 && bpp != 32 {
		return Info{}, fmt.Errorf("%w: TGA depth %d", ErrUnsupported, bpp)
	}
	if tgaHeaderSize+int(data[0]) > len(data) {
		return Info{}, ErrTruncated
	}
	if imageType == TGATypeUncompressed && len(data)-tgaHeaderSize-int(data[0]) < width*height*bpp/8 {
		return Info{}, ErrTruncated
	}
	return Info{Width: width, Height: height, Format: "tga"}, nil
}
