/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"noirinator/internal/domain"
	"noirinator/internal/svgdoc"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// WebWidth is the preview width of the web preset.
const WebWidth = 1200

// PrintDPI scales the print preset's PNG proof from points to pixels.
const PrintDPI = 300

// BatchOptions controls a preset export of one master canvas.
//
// Outputs are written to OutDir as <stem>.png and <stem>.pdf, where stem is
// the master file name without extension. An empty OutDir means the
// directory of the master file.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: png, pdf; empty means preset defaults
	OutDir  string
}

// Batch runs the exports of a preset and returns the written paths.
func Batch(masterPath string, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	outDir := opt.OutDir
	if outDir == "" {
		outDir = filepath.Dir(masterPath)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: ensure out dir: %w", domain.ErrIO, err)
	}
	stem := strings.TrimSuffix(filepath.Base(masterPath), filepath.Ext(masterPath))

	var written []string
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "png":
			width, err := presetWidth(masterPath, opt.Preset)
			if err != nil {
				return written, err
			}
			out := filepath.Join(outDir, stem+".png")
			if _, err := PreviewPNG(masterPath, out, PNGOptions{Width: width}); err != nil {
				return written, fmt.Errorf("png: %w", err)
			}
			written = append(written, out)
		case "pdf":
			out := filepath.Join(outDir, stem+".pdf")
			if _, err := MasterPDF(masterPath, out, PDFOptions{Compress: true}); err != nil {
				return written, fmt.Errorf("pdf: %w", err)
			}
			written = append(written, out)
		default:
			return written, fmt.Errorf("%w: unknown format %q", domain.ErrInvalidParameters, f)
		}
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"pdf"}
	}
}

// presetWidth is the PNG width for a preset; 0 keeps the canvas width.
func presetWidth(masterPath string, p PresetName) (int, error) {
	switch p {
	case PresetWeb:
		return WebWidth, nil
	case PresetPrint:
		doc, err := svgdoc.ParseFile(masterPath)
		if err != nil {
			return 0, err
		}
		w, _, _, err := canvasSize(doc)
		if err != nil {
			return 0, err
		}
		return int(math.Round(w * PrintDPI / 72)), nil
	default:
		return 0, nil
	}
}
