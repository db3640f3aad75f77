/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package trace

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"

	"noirinator/internal/domain"
	"noirinator/internal/svgdoc"
	"noirinator/internal/vector"
)

// gradient returns a left-to-right ramp: column x has brightness 4*x.
func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(min(255, 4*x))})
		}
	}
	return img
}

func uniform(w, h int, y uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = y
	}
	return img
}

func writeRaster(t *testing.T, img image.Image) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "shot.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// fakePotrace reads the PBM, finds how many leading columns of the first row
// are set, and answers with a potrace-style document holding that rectangle.
func fakePotrace(calls *int) Runner {
	return func(_ context.Context, bin string, args []string, stdin []byte) ([]byte, error) {
		*calls++
		r := bufio.NewReader(bytes.NewReader(stdin))
		var w, h int
		if _, err := fmt.Fscanf(r, "P4\n%d %d\n", &w, &h); err != nil {
			return nil, fmt.Errorf("bad pbm header: %v", err)
		}
		row := make([]byte, (w+7)/8)
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, err
		}
		n := 0
		for n < w && row[n/8]&(0x80>>(n%8)) != 0 {
			n++
		}
		return []byte(fmt.Sprintf(`<?xml version="1.0" standalone="no"?>
<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 20010904//EN"
 "http://www.w3.org/TR/2001/REC-SVG-20010904/DTD/svg10.dtd">
<svg version="1.0" xmlns="http://www.w3.org/2000/svg"
 width="%[1]d.000000pt" height="%[2]d.000000pt" viewBox="0 0 %[1]d.000000 %[2]d.000000"
 preserveAspectRatio="xMidYMid meet">
<metadata>
Created by potrace 1.16, written by Peter Selinger 2001-2019
</metadata>
<g transform="translate(0.000000,%[2]d.000000) scale(0.100000,-0.100000)"
fill="#000000" stroke="none">
<path d="M0 0 l%[3]d 0 0 %[4]d -%[3]d 0 z"/>
</g>
</svg>
`, w, h, 10*n, 10*h)), nil
	}
}

func regions(t *testing.T, doc *svgdoc.Document) []*etree.Element {
	t.Helper()
	layer := svgdoc.Find(doc.Root(), svgdoc.NSSVG, "g")
	if layer == nil {
		t.Fatalf("no layer group")
	}
	group := svgdoc.Find(layer, svgdoc.NSSVG, "g")
	if group == nil {
		t.Fatalf("no region group")
	}
	return svgdoc.FindAll(group, svgdoc.NSSVG, "path")
}

func bounds(t *testing.T, e *etree.Element) vector.Rect {
	t.Helper()
	p, err := vector.ParsePathData(e.SelectAttrValue("d", ""))
	if err != nil {
		t.Fatalf("parse d: %v", err)
	}
	return p.Bounds()
}

func TestThresholds(t *testing.T) {
	got := Thresholds(8)
	want := []uint8{226, 198, 170, 141, 113, 85, 56, 28}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Thresholds(8) = %v, want %v", got, want)
	}
	if got := Thresholds(1); len(got) != 1 || got[0] != 127 {
		t.Fatalf("Thresholds(1) = %v, want [127]", got)
	}
	if Thresholds(0) != nil {
		t.Fatalf("Thresholds(0) should be nil")
	}
}

func TestEncodePBM(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 2))
	for x := 0; x < 10; x++ {
		img.SetGray(x, 0, color.Gray{Y: 255})
		img.SetGray(x, 1, color.Gray{Y: 255})
	}
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(9, 1, color.Gray{Y: 10})
	var buf bytes.Buffer
	n, err := EncodePBM(&buf, img, 128)
	if err != nil {
		t.Fatalf("EncodePBM error: %v", err)
	}
	if n != 2 {
		t.Fatalf("set = %d, want 2", n)
	}
	want := append([]byte("P4\n10 2\n"), 0x80, 0x00, 0x00, 0x40)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("pbm = %v, want %v", buf.Bytes(), want)
	}
}

func TestTraceStructure(t *testing.T) {
	p := writeRaster(t, gradient(64, 8))
	calls := 0
	tr := &Potrace{Bin: "potrace", TurdSize: 2, Run: fakePotrace(&calls)}
	doc, err := tr.Trace(context.Background(), p, 3)
	if err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("runner calls = %d, want 3", calls)
	}
	root := doc.Root()
	if root.SelectAttrValue("width", "") != "64" || root.SelectAttrValue("height", "") != "8" {
		t.Fatalf("root size = %s x %s", root.SelectAttrValue("width", ""), root.SelectAttrValue("height", ""))
	}
	layer := svgdoc.Find(root, svgdoc.NSSVG, "g")
	if v, _ := svgdoc.AttrValue(layer, svgdoc.NSInkscape, "groupmode"); v != "layer" {
		t.Fatalf("groupmode = %q, want layer", v)
	}
	if v, _ := svgdoc.AttrValue(layer, svgdoc.NSInkscape, "label"); v != "shot" {
		t.Fatalf("label = %q, want shot", v)
	}
	ref := svgdoc.Find(layer, svgdoc.NSSVG, "image")
	if ref == nil {
		t.Fatalf("no image reference")
	}
	if href, _ := svgdoc.AttrValue(ref, svgdoc.NSXLink, "href"); !strings.HasSuffix(href, "/shot.png") {
		t.Fatalf("href = %q", href)
	}

	regs := regions(t, doc)
	if len(regs) != 3 {
		t.Fatalf("regions = %d, want 3", len(regs))
	}
	wantW := []float64{48, 32, 16}
	for i, r := range regs {
		b := bounds(t, r)
		if b.X != 0 || b.Y != 0 || b.W != wantW[i] || b.H != 8 {
			t.Fatalf("region %d bounds = %+v, want width %v height 8", i, b, wantW[i])
		}
	}
	if got, want := regs[0].SelectAttrValue("style", ""), vector.FillStyle(vector.Gray(191)); got != want {
		t.Fatalf("style = %q, want %q", got, want)
	}
}

func TestTraceSkipsEmptyBands(t *testing.T) {
	p := writeRaster(t, uniform(16, 16, 100))
	calls := 0
	tr := &Potrace{Bin: "potrace", Run: fakePotrace(&calls)}
	doc, err := tr.Trace(context.Background(), p, 4)
	if err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	// thresholds 204 153 102 51: only the last band is empty
	if n := len(regions(t, doc)); n != 3 {
		t.Fatalf("regions = %d, want 3", n)
	}
	if calls != 3 {
		t.Fatalf("runner calls = %d, want 3", calls)
	}
}

func TestTraceErrors(t *testing.T) {
	white := writeRaster(t, uniform(8, 8, 255))
	gray := writeRaster(t, uniform(8, 8, 10))
	failing := func(context.Context, string, []string, []byte) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	garbage := func(context.Context, string, []string, []byte) ([]byte, error) {
		return []byte("not svg <"), nil
	}
	calls := 0
	cases := []struct {
		name  string
		path  string
		steps int
		run   Runner
		want  error
	}{
		{"no regions", white, 3, fakePotrace(&calls), domain.ErrTraceFailure},
		{"potrace fails", gray, 2, failing, domain.ErrTraceFailure},
		{"bad output", gray, 2, garbage, domain.ErrTraceFailure},
		{"zero steps", gray, 0, fakePotrace(&calls), domain.ErrInvalidParameters},
		{"missing raster", filepath.Join(t.TempDir(), "none.png"), 2, fakePotrace(&calls), domain.ErrIO},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := (&Potrace{Bin: "potrace", Run: tc.run}).Trace(context.Background(), tc.path, tc.steps)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if calls != 0 {
		t.Fatalf("runner called %d times for inputs without dark pixels", calls)
	}
}

func TestPathsFromSVGScalesViewBox(t *testing.T) {
	src := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 20 10"><g transform="translate(2,0)"><path d="M0 0 L10 10"/></g></svg>`
	p, err := PathsFromSVG([]byte(src), 40, 20)
	if err != nil {
		t.Fatalf("PathsFromSVG error: %v", err)
	}
	if got := p.Data(2); got != "M4 0 L24 20" {
		t.Fatalf("data = %q, want %q", got, "M4 0 L24 20")
	}
}

func TestPotraceBinary(t *testing.T) {
	bin, err := exec.LookPath("potrace")
	if err != nil {
		t.Skip("potrace not installed")
	}
	p := writeRaster(t, gradient(64, 32))
	tr := NewPotrace(bin, 0)
	for _, steps := range []int{1, 3} {
		doc, err := tr.Trace(context.Background(), p, steps)
		if err != nil {
			t.Fatalf("Trace(steps=%d) error: %v", steps, err)
		}
		regs := regions(t, doc)
		if len(regs) != steps {
			t.Fatalf("steps=%d: regions = %d", steps, len(regs))
		}
		for i := 1; i < len(regs); i++ {
			if bounds(t, regs[i]).W >= bounds(t, regs[i-1]).W {
				t.Fatalf("region %d not inside region %d", i, i-1)
			}
		}
	}
}
