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
	"log/slog"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"noirinator/internal/domain"
	applog "noirinator/internal/log"
	"noirinator/internal/storage"
	"noirinator/internal/svgdoc"
	"noirinator/internal/vector"
)

// PDFOptions controls PDF export.
// The page is the canvas size in points; one user unit is one point.
type PDFOptions struct {
	Title    string
	Compress bool
}

// MasterPDF writes the filled regions of the master canvas at masterPath
// as vector paths to a single-page PDF at outPath. It returns the number
// of regions drawn.
func MasterPDF(masterPath, outPath string, opt PDFOptions) (int, error) {
	l := applog.WithOperation(applog.WithComponent("export"), "pdf").With(slog.String("out", outPath))
	doc, err := svgdoc.ParseFile(masterPath)
	if err != nil {
		return 0, err
	}
	w, h, m, err := canvasSize(doc)
	if err != nil {
		return 0, err
	}
	regs, err := regions(doc, m)
	if err != nil {
		return 0, err
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetCompression(opt.Compress)
	title := opt.Title
	if title == "" {
		title = filepath.Base(masterPath)
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("noirinator", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	for _, r := range regs {
		drawRegion(pdf, r)
	}
	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("%w: render pdf: %w", domain.ErrIO, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("%w: write pdf: %w", domain.ErrIO, err)
	}
	if err := storage.WriteFileAtomic(outPath, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	l.Info("pdf written", slog.Int("regions", len(regs)), slog.Float64("w", w), slog.Float64("h", h))
	return len(regs), nil
}

func drawRegion(pdf *gofpdf.Fpdf, r region) {
	if len(r.path.Cmds) == 0 {
		return
	}
	pdf.SetFillColor(int(r.fill.R), int(r.fill.G), int(r.fill.B))
	pdf.SetAlpha(float64(r.fill.A)/255, "Normal")
	for _, c := range r.path.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			pdf.MoveTo(d[0], d[1])
		case vector.LineTo:
			pdf.LineTo(d[0], d[1])
		case vector.QuadTo:
			pdf.CurveTo(d[0], d[1], d[2], d[3])
		case vector.CubicTo:
			pdf.CurveBezierCubicTo(d[0], d[1], d[2], d[3], d[4], d[5])
		case vector.Close:
			pdf.ClosePath()
		}
	}
	pdf.DrawPath("F")
}
