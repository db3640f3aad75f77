/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package compose turns a raw trace into a two-tone region group.
package compose

import (
	"fmt"

	"github.com/beevik/etree"

	"noirinator/internal/domain"
	"noirinator/internal/svgdoc"
	"noirinator/internal/vector"
)

// Stats summarizes one composite.
type Stats struct {
	Traced  int // regions in the trace
	Removed int // leading background regions dropped
	White   int
	Black   int
}

// Composite strips the raster reference from the trace's layer group,
// removes the first backgroundCount regions of its region group and
// recolors the rest: the regions at positions 0..whiteLevels (inclusive)
// become white, later ones black. Only the style attribute changes.
// The region group is returned; doc is modified in place.
func Composite(doc *svgdoc.Document, ns string, backgroundCount, whiteLevels int) (*etree.Element, error) {
	g, _, err := CompositeStats(doc, ns, backgroundCount, whiteLevels)
	return g, err
}

// CompositeStats is Composite that also reports counts.
// On error doc is left unchanged.
func CompositeStats(doc *svgdoc.Document, ns string, backgroundCount, whiteLevels int) (*etree.Element, Stats, error) {
	if doc == nil || doc.Document == nil || doc.Root() == nil {
		return nil, Stats{}, fmt.Errorf("%w: empty document", domain.ErrMalformedDocument)
	}
	layer := svgdoc.Find(doc.Root(), ns, "g")
	if layer == nil {
		return nil, Stats{}, fmt.Errorf("%w: no layer group", domain.ErrMalformedDocument)
	}
	ref := svgdoc.Find(layer, ns, "image")
	if ref == nil {
		return nil, Stats{}, fmt.Errorf("%w: no raster reference in layer", domain.ErrMalformedDocument)
	}
	group := svgdoc.Find(layer, ns, "g")
	if group == nil {
		return nil, Stats{}, fmt.Errorf("%w: no region group in layer", domain.ErrMalformedDocument)
	}
	regions := svgdoc.FindAll(group, ns, "path")
	st := Stats{Traced: len(regions), Removed: backgroundCount}
	if backgroundCount < 0 || backgroundCount+1 > len(regions) {
		return nil, Stats{}, fmt.Errorf("%w: cannot drop %d background regions of %d",
			domain.ErrInvalidParameters, backgroundCount, len(regions))
	}

	svgdoc.Remove(layer, ref)
	for _, r := range regions[:backgroundCount] {
		svgdoc.Remove(group, r)
	}
	white, black := vector.FillStyle(vector.White), vector.FillStyle(vector.Black)
	for p, r := range regions[backgroundCount:] {
		if p <= whiteLevels {
			r.CreateAttr("style", white)
			st.White++
		} else {
			r.CreateAttr("style", black)
			st.Black++
		}
	}
	return group, st, nil
}
