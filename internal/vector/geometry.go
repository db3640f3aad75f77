/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Basic 2D geometry and affine transforms for SVG coordinates.

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) Max() Pt { return Pt{r.X + r.W, r.Y + r.H} }

// Union returns the minimal rect containing both. An empty operand is ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
type Affine2D struct{ A, B, C, D, E, F float64 }

var Identity = Affine2D{A: 1, D: 1}

// Mul returns m*n, i.e. n is applied first.
func (m Affine2D) Mul(n Affine2D) Affine2D {
	return Affine2D{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine2D) Apply(p Pt) Pt {
	return Pt{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }
func Rotate(rad float64) Affine2D {
	c, s := math.Cos(rad), math.Sin(rad)
	return Affine2D{A: c, B: s, C: -s, D: c}
}

// ParseTransform parses an SVG transform attribute such as
// "translate(0,600) scale(0.1,-0.1)". Functions compose left to right, so the
// rightmost one is applied to points first. An empty string is the identity.
func ParseTransform(s string) (Affine2D, error) {
	m := Identity
	rest := strings.TrimSpace(s)
	for rest != "" {
		open := strings.IndexByte(rest, '(')
		closing := strings.IndexByte(rest, ')')
		if open < 0 || closing < open {
			return Identity, fmt.Errorf("transform %q: unbalanced parenthesis", s)
		}
		name := strings.ToLower(strings.TrimSpace(rest[:open]))
		args, err := parseNumberList(rest[open+1 : closing])
		if err != nil {
			return Identity, fmt.Errorf("transform %q: %w", s, err)
		}
		var f Affine2D
		switch {
		case name == "translate" && len(args) == 1:
			f = Translate(args[0], 0)
		case name == "translate" && len(args) == 2:
			f = Translate(args[0], args[1])
		case name == "scale" && len(args) == 1:
			f = Scale(args[0], args[0])
		case name == "scale" && len(args) == 2:
			f = Scale(args[0], args[1])
		case name == "rotate" && len(args) == 1:
			f = Rotate(args[0] * math.Pi / 180)
		case name == "rotate" && len(args) == 3:
			f = Translate(args[1], args[2]).Mul(Rotate(args[0] * math.Pi / 180)).Mul(Translate(-args[1], -args[2]))
		case name == "matrix" && len(args) == 6:
			f = Affine2D{A: args[0], B: args[1], C: args[2], D: args[3], E: args[4], F: args[5]}
		default:
			return Identity, fmt.Errorf("transform %q: unsupported %s with %d arguments", s, name, len(args))
		}
		m = m.Mul(f)
		rest = strings.TrimLeft(rest[closing+1:], " \t\r\n,")
	}
	return m, nil
}

func parseNumberList(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' })
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
