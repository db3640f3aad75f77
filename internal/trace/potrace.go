/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package trace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"noirinator/internal/domain"
	applog "noirinator/internal/log"
	"noirinator/internal/raster"
	"noirinator/internal/svgdoc"
	"noirinator/internal/vector"
)

// DefaultTurdSize is potrace's own default speckle filter.
const DefaultTurdSize = 2

// Runner executes bin with args, feeding stdin, and returns its stdout.
type Runner func(ctx context.Context, bin string, args []string, stdin []byte) ([]byte, error)

// Potrace traces each brightness band with the potrace binary.
type Potrace struct {
	Bin      string
	TurdSize int
	// Run defaults to ExecRunner.
	Run Runner
}

// NewPotrace returns a tracer using the given binary (or "potrace").
func NewPotrace(bin string, turdSize int) *Potrace {
	if strings.TrimSpace(bin) == "" {
		bin = "potrace"
	}
	if turdSize < 0 {
		turdSize = DefaultTurdSize
	}
	return &Potrace{Bin: bin, TurdSize: turdSize, Run: ExecRunner}
}

// ExecRunner runs the command with os/exec. Cancelling ctx kills the process.
func ExecRunner(ctx context.Context, bin string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, msg)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(bin), err)
	}
	return stdout.Bytes(), nil
}

// Trace implements Tracer.
func (p *Potrace) Trace(ctx context.Context, rasterPath string, steps int) (*svgdoc.Document, error) {
	name := strings.TrimSuffix(filepath.Base(rasterPath), filepath.Ext(rasterPath))
	l := applog.WithOperation(applog.WithComponent("trace"), "trace").With(
		slog.String("file", filepath.Base(rasterPath)), slog.Int("steps", steps))
	if steps < 1 {
		return nil, fmt.Errorf("%w: steps %d", domain.ErrInvalidParameters, steps)
	}
	img, err := readGray(rasterPath)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()

	doc := svgdoc.New(b.Dx(), b.Dy())
	layer := doc.Root().CreateElement("g")
	layer.CreateAttr("id", "layer1")
	svgdoc.SetAttr(layer, svgdoc.NSInkscape, "groupmode", "layer")
	svgdoc.SetAttr(layer, svgdoc.NSInkscape, "label", name)
	ref := layer.CreateElement("image")
	svgdoc.SetAttr(ref, svgdoc.NSXLink, "href", imageHref(rasterPath))
	ref.CreateAttr("x", "0")
	ref.CreateAttr("y", "0")
	ref.CreateAttr("width", strconv.Itoa(b.Dx()))
	ref.CreateAttr("height", strconv.Itoa(b.Dy()))
	group := layer.CreateElement("g")
	group.CreateAttr("id", "trace-"+name)

	for i, t := range Thresholds(steps) {
		path, err := p.band(ctx, img, t)
		if err != nil {
			return nil, fmt.Errorf("trace %s band %d: %w", name, i, err)
		}
		if len(path.Cmds) == 0 {
			l.Debug("empty band", slog.Int("band", i), slog.Int("threshold", int(t)))
			continue
		}
		region := group.CreateElement("path")
		region.CreateAttr("id", fmt.Sprintf("path-%s-%d", name, i))
		region.CreateAttr("style", vector.FillStyle(vector.Gray(t)))
		region.CreateAttr("d", path.Data(3))
	}
	n := len(group.ChildElements())
	if n == 0 {
		return nil, fmt.Errorf("trace %s: %w: no regions", name, domain.ErrTraceFailure)
	}
	l.Debug("traced", slog.Int("regions", n))
	return doc, nil
}

// band traces one threshold and returns the merged region in pixel space.
func (p *Potrace) band(ctx context.Context, img *image.Gray, threshold uint8) (vector.Path, error) {
	var pbm bytes.Buffer
	set, err := EncodePBM(&pbm, img, threshold)
	if err != nil {
		return vector.Path{}, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	if set == 0 {
		return vector.Path{}, nil
	}
	run := p.Run
	if run == nil {
		run = ExecRunner
	}
	args := []string{"-s", "-o", "-", "-t", strconv.Itoa(p.TurdSize)}
	out, err := run(ctx, p.Bin, args, pbm.Bytes())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return vector.Path{}, fmt.Errorf("%w: %w", domain.ErrTraceFailure, ctxErr)
		}
		return vector.Path{}, fmt.Errorf("%w: %w", domain.ErrTraceFailure, err)
	}
	path, err := PathsFromSVG(out, img.Bounds().Dx(), img.Bounds().Dy())
	if err != nil {
		return vector.Path{}, fmt.Errorf("%w: %w", domain.ErrTraceFailure, err)
	}
	return path, nil
}

// PathsFromSVG collects every path of an SVG document into one path in the
// coordinate space of a width x height pixel grid. Group transforms are
// applied, and the viewBox is scaled onto the grid when it differs.
func PathsFromSVG(data []byte, width, height int) (vector.Path, error) {
	doc, err := svgdoc.Parse(bytes.NewReader(data))
	if err != nil {
		return vector.Path{}, err
	}
	m := vector.Identity
	if vb := strings.Fields(strings.ReplaceAll(doc.Root().SelectAttrValue("viewBox", ""), ",", " ")); len(vb) == 4 {
		vx, _ := strconv.ParseFloat(vb[0], 64)
		vy, _ := strconv.ParseFloat(vb[1], 64)
		vw, errW := strconv.ParseFloat(vb[2], 64)
		vh, errH := strconv.ParseFloat(vb[3], 64)
		if errW == nil && errH == nil && vw > 0 && vh > 0 {
			m = vector.Scale(float64(width)/vw, float64(height)/vh).Mul(vector.Translate(-vx, -vy))
		}
	}
	var out vector.Path
	if err := collect(doc.Root(), m, &out); err != nil {
		return vector.Path{}, err
	}
	return out, nil
}

func collect(e *etree.Element, m vector.Affine2D, into *vector.Path) error {
	if tf := e.SelectAttrValue("transform", ""); tf != "" {
		t, err := vector.ParseTransform(tf)
		if err != nil {
			return err
		}
		m = m.Mul(t)
	}
	if svgdoc.Is(e, svgdoc.NSSVG, "path") {
		p, err := vector.ParsePathData(e.SelectAttrValue("d", ""))
		if err != nil {
			return err
		}
		into.Append(p.Transform(m))
	}
	for _, c := range e.ChildElements() {
		if err := collect(c, m, into); err != nil {
			return err
		}
	}
	return nil
}

func readGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, domain.ErrIO, err)
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("decode %s: %w: %w", path, domain.ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("decode %s: %w: %w", path, domain.ErrIO, err)
	}
	return raster.ToGray(img), nil
}

func imageHref(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.ToSlash(path)
}
