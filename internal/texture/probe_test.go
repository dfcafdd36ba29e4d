package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func tgaHeader(imageType byte, w, h int, bpp byte) []byte {
	hdr := make([]byte, tgaHeaderSize)
	hdr[2] = imageType
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = bpp
	return hdr
}

func TestProbeTGA(t *testing.T) {
	data := append(tgaHeader(TGATypeUncompressed, 2, 3, 24), make([]byte, 2*3*3)...)
	info, err := Probe("wall.TGA", data)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Width != 2 || info.Height != 3 || info.Format != "tga" {
		t.Errorf("got %+v, want 2x3 tga", info)
	}
}

func TestProbeTGAErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", []byte{0, 0, 2}, ErrTruncated},
		{"pixels missing", tgaHeader(TGATypeUncompressed, 4, 4, 32), ErrTruncated},
		{"grayscale", tgaHeader(3, 1, 1, 8), ErrUnsupported},
		{"16 bit", tgaHeader(TGATypeRLE, 1, 1, 16), ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Probe("x.tga", tt.data); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProbeRLEHeaderOnly(t *testing.T) {
	if _, err := Probe("x.tga", tgaHeader(TGATypeRLE, 64, 64, 32)); err != nil {
		t.Errorf("RLE header should probe without pixel data: %v", err)
	}
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img
}

func TestProbePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(5, 7)); err != nil {
		t.Fatal(err)
	}
	info, err := Probe("albedo.png", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 5 || info.Height != 7 || info.Format != "png" {
		t.Errorf("got %+v", info)
	}
}

func TestProbeBMP(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, testImage(3, 2)); err != nil {
		t.Fatal(err)
	}
	info, err := Probe("albedo.bmp", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 3 || info.Height != 2 || info.Format != "bmp" {
		t.Errorf("got %+v", info)
	}
}

func TestProbeUnknown(t *testing.T) {
	if _, err := Probe("notes.txt", []byte("hello world")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestProbeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	var buf bytes.Buffer
	png.Encode(&buf, testImage(4, 4))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	info, data, err := ProbeFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 4 || len(data) != buf.Len() {
		t.Errorf("got %+v with %d bytes", info, len(data))
	}
	if _, _, err := ProbeFile(filepath.Join(t.TempDir(), "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
