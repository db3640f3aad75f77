/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Styles and paint definitions.

import (
	"fmt"
	"strconv"
	"strings"
)

type Color struct{ R, G, B, A uint8 }

var (
	Black = Color{0, 0, 0, 255}
	White = Color{255, 255, 255, 255}
)

// Gray returns an opaque gray with the given intensity.
func Gray(y uint8) Color { return Color{y, y, y, 255} }

// Hex formats the RGB part as #rrggbb.
func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// FillStyle renders c as an SVG style attribute value, e.g. "fill:#ffffff;fill-opacity:1".
func FillStyle(c Color) string {
	op := strconv.FormatFloat(FloatRound(float64(c.A)/255, 3), 'f', -1, 64)
	return "fill:" + c.Hex() + ";fill-opacity:" + op
}

// ParseFill extracts the fill paint from a style attribute and/or a fill
// presentation attribute; the style declaration wins, as in CSS. Only
// #rgb/#rrggbb colors are understood. ok is false for "none" or when no fill is set.
func ParseFill(style, fillAttr string) (c Color, ok bool) {
	paint, opacity := strings.TrimSpace(fillAttr), 1.0
	for _, decl := range strings.Split(style, ";") {
		k, v, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		switch strings.TrimSpace(k) {
		case "fill":
			paint = strings.TrimSpace(v)
		case "fill-opacity":
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				opacity = f
			}
		}
	}
	c, ok = parseHexColor(paint)
	if !ok {
		return Color{}, false
	}
	opacity = max(0, min(1, opacity))
	c.A = uint8(opacity*255 + 0.5)
	return c, true
}

func parseHexColor(s string) (Color, bool) {
	s = strings.TrimPrefix(strings.ToLower(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return Color{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, false
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}
