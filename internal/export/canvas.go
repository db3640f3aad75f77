/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a finished master canvas for review and print:
// a PNG preview and a vector PDF.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"noirinator/internal/domain"
	"noirinator/internal/svgdoc"
	"noirinator/internal/vector"
)

// region is one filled path in page space.
type region struct {
	path vector.Path
	fill vector.Color
}

// canvasSize returns the user-space size of doc from its viewBox, falling
// back to width and height, and the transform from user space to a page
// of that size.
func canvasSize(doc *svgdoc.Document) (w, h float64, m vector.Affine2D, err error) {
	m = vector.Identity
	root := doc.Root()
	if vb := strings.Fields(strings.ReplaceAll(root.SelectAttrValue("viewBox", ""), ",", " ")); len(vb) == 4 {
		nums := make([]float64, 4)
		for i, s := range vb {
			if nums[i], err = strconv.ParseFloat(s, 64); err != nil {
				return 0, 0, m, fmt.Errorf("%w: viewBox: %w", domain.ErrMalformedDocument, err)
			}
		}
		if nums[2] > 0 && nums[3] > 0 {
			return nums[2], nums[3], vector.Translate(-nums[0], -nums[1]), nil
		}
	}
	w, _ = strconv.ParseFloat(strings.TrimSuffix(root.SelectAttrValue("width", ""), "px"), 64)
	h, _ = strconv.ParseFloat(strings.TrimSuffix(root.SelectAttrValue("height", ""), "px"), 64)
	if w <= 0 || h <= 0 {
		return 0, 0, m, fmt.Errorf("%w: canvas has no size", domain.ErrMalformedDocument)
	}
	return w, h, m, nil
}

// regions flattens every filled path of doc in document order.
func regions(doc *svgdoc.Document, m vector.Affine2D) ([]region, error) {
	var out []region
	err := walk(doc.Root(), m, "", &out)
	return out, err
}

func walk(e *etree.Element, m vector.Affine2D, inherited string, out *[]region) error {
	if tf := e.SelectAttrValue("transform", ""); tf != "" {
		t, err := vector.ParseTransform(tf)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
		}
		m = m.Mul(t)
	}
	paint := inherited
	if f := e.SelectAttrValue("fill", ""); f != "" {
		paint = f
	}
	if _, v, ok := strings.Cut(strings.ReplaceAll(e.SelectAttrValue("style", ""), " ", ""), "fill:"); ok {
		paint, _, _ = strings.Cut(v, ";")
	}
	if svgdoc.Is(e, svgdoc.NSSVG, "path") && paint != "none" {
		p, err := vector.ParsePathData(e.SelectAttrValue("d", ""))
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
		}
		c, ok := vector.ParseFill(e.SelectAttrValue("style", ""), paint)
		if !ok {
			c = vector.Black // SVG initial fill
		}
		*out = append(*out, region{path: p.Transform(m), fill: c})
	}
	for _, c := range e.ChildElements() {
		if err := walk(c, m, paint, out); err != nil {
			return err
		}
	}
	return nil
}
