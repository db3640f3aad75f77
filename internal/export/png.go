/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"math"
	"os"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"noirinator/internal/domain"
	applog "noirinator/internal/log"
	"noirinator/internal/storage"
	"noirinator/internal/svgdoc"
)

// PNGOptions controls PNG preview export.
//   - Width: output width in pixels; 0 keeps the canvas width. Height follows the aspect ratio.
//   - Background: painted under the canvas; a zero value means white.
type PNGOptions struct {
	Width      int
	Background color.RGBA
}

// PreviewPNG rasterizes the master canvas at masterPath to a PNG at outPath
// and returns the pixel size written.
func PreviewPNG(masterPath, outPath string, opt PNGOptions) (image.Point, error) {
	l := applog.WithOperation(applog.WithComponent("export"), "png").With(slog.String("out", outPath))
	data, err := os.ReadFile(masterPath)
	if err != nil {
		return image.Point{}, fmt.Errorf("read %s: %w: %w", masterPath, domain.ErrIO, err)
	}
	// size comes from our own parser so both exporters agree on it
	doc, err := svgdoc.Parse(bytes.NewReader(data))
	if err != nil {
		return image.Point{}, fmt.Errorf("%s: %w", masterPath, err)
	}
	w, h, _, err := canvasSize(doc)
	if err != nil {
		return image.Point{}, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return image.Point{}, fmt.Errorf("%w: render %s: %w", domain.ErrMalformedDocument, masterPath, err)
	}

	pw := opt.Width
	if pw <= 0 {
		pw = int(math.Round(w))
	}
	ph := max(1, int(math.Round(float64(pw)*h/w)))
	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	bg := opt.Background
	if bg == (color.RGBA{}) {
		bg = color.RGBA{255, 255, 255, 255}
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	icon.SetTarget(0, 0, float64(pw), float64(ph))
	scanner := rasterx.NewScannerGV(pw, ph, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(pw, ph, scanner), 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return image.Point{}, fmt.Errorf("%w: encode png: %w", domain.ErrIO, err)
	}
	if err := storage.WriteFileAtomic(outPath, buf.Bytes()); err != nil {
		return image.Point{}, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	l.Info("preview written", slog.Int("w", pw), slog.Int("h", ph))
	return image.Pt(pw, ph), nil
}
