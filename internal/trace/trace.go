/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package trace turns a grayscale raster into stacked filled regions, one
// per brightness step, in the way Inkscape's "brightness steps" trace does.
package trace

import (
	"context"

	"noirinator/internal/svgdoc"
)

// Tracer produces a trace document for a normalized raster. The document
// has a root layer group holding an image reference to the raster and a
// nested group with the regions, outermost (lightest threshold) first.
type Tracer interface {
	Trace(ctx context.Context, rasterPath string, steps int) (*svgdoc.Document, error)
}

// Thresholds returns the brightness cut for each band. Band i collects
// pixels darker than 255*(steps-i)/(steps+1), so thresholds decrease and
// each band is contained in the previous one.
func Thresholds(steps int) []uint8 {
	if steps < 1 {
		return nil
	}
	out := make([]uint8, steps)
	for i := range out {
		out[i] = uint8(255 * (steps - i) / (steps + 1))
	}
	return out
}
