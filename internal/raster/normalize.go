/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package raster prepares input renders for tracing: grayscale conversion
// and a cap on the larger dimension. Normalize rewrites the file in place;
// no backup of the original pixels is kept.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"noirinator/internal/domain"
	applog "noirinator/internal/log"
	"noirinator/internal/storage"
)

// JPEGQuality is used when re-encoding JPEG inputs.
const JPEGQuality = 95

// Normalize decodes the image at path, converts it to 8-bit grayscale,
// downsamples it so that its larger side is at most maxDimension, and
// overwrites the file in its original format. Callers must not keep
// assumptions about the pixel size across the call.
//
// A file that is already grayscale and within the cap is left untouched.
func Normalize(path string, maxDimension int) error {
	l := applog.WithOperation(applog.WithComponent("raster"), "normalize").With(slog.String("file", filepath.Base(path)))
	if maxDimension < 1 {
		return fmt.Errorf("%w: max dimension %d", domain.ErrInvalidParameters, maxDimension)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w: %w", path, domain.ErrIO, err)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return fmt.Errorf("decode %s: %w: %w", path, domain.ErrUnsupportedFormat, err)
		}
		return fmt.Errorf("decode %s: %w: %w", path, domain.ErrIO, err)
	}

	b := src.Bounds()
	if IsGray(src) && max(b.Dx(), b.Dy()) <= maxDimension {
		l.Debug("already normalized", slog.Int("w", b.Dx()), slog.Int("h", b.Dy()))
		return nil
	}

	out := NormalizeImage(src, maxDimension)
	var buf bytes.Buffer
	if err := encode(&buf, out, format); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w: %w", path, domain.ErrIO, err)
	}
	ob := out.Bounds()
	l.Debug("normalized", slog.String("format", format),
		slog.Int("w", b.Dx()), slog.Int("h", b.Dy()), slog.Int("out_w", ob.Dx()), slog.Int("out_h", ob.Dy()))
	return nil
}

// NormalizeImage returns a grayscale copy of img whose larger side is at
// most maxDimension, with the aspect ratio preserved. Downsampling uses a
// Catmull-Rom filter; images within the cap keep their size.
func NormalizeImage(img image.Image, maxDimension int) *image.Gray {
	gray := ToGray(img)
	b := gray.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), maxDimension)
	if w == b.Dx() && h == b.Dy() {
		return gray
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), gray, b, draw.Src, nil)
	return dst
}

// ToGray converts img with color.GrayModel (ITU-R BT.601 luma). A
// *image.Gray already at the origin is returned as is.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetGray(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
	return dst
}

// IsGray reports whether img stores single-channel gray samples: an
// *image.Gray, or a paletted image whose palette holds only grays (as
// produced by decoding 8-bit BMP and GIF files).
func IsGray(img image.Image) bool {
	switch m := img.(type) {
	case *image.Gray:
		return true
	case *image.Paletted:
		for _, c := range m.Palette {
			r, g, b, _ := c.RGBA()
			if r != g || g != b {
				return false
			}
		}
		return true
	}
	return false
}

// FitWithin scales (w, h) so that the larger side equals maxDimension when it
// exceeds it. Sides never drop below one pixel.
func FitWithin(w, h, maxDimension int) (int, int) {
	long := max(w, h)
	if long <= maxDimension || long == 0 {
		return w, h
	}
	scale := float64(maxDimension) / float64(long)
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	if w >= h {
		nw = maxDimension
	} else {
		nh = maxDimension
	}
	return nw, nh
}

func encode(w io.Writer, img *image.Gray, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case "png":
		return png.Encode(w, img)
	case "gif":
		return gif.Encode(w, grayPaletted(img), nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: cannot write %s images", domain.ErrUnsupportedFormat, format)
	}
}

func grayPaletted(img *image.Gray) *image.Paletted {
	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.Gray{Y: uint8(i)}
	}
	out := image.NewPaletted(img.Bounds(), pal)
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], img.Pix[y*img.Stride:y*img.Stride+b.Dx()])
	}
	return out
}
