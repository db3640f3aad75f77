/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Path commands and shapes.

import (
	"strconv"
	"strings"
)

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	QuadTo  // quadratic bezier (cx, cy, x, y)
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

// points returns how many coordinate pairs an op carries.
func (op PathOp) points() int {
	switch op {
	case MoveTo, LineTo:
		return 1
	case QuadTo:
		return 2
	case CubicTo:
		return 3
	default:
		return 0
	}
}

type PathCmd struct {
	Op   PathOp
	Data [6]float64 // enough for cubic; unused slots are zero
}

// Path is a sequence of absolute drawing commands.
type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float64{x, y}})
}
func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: QuadTo, Data: [6]float64{cx, cy, x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float64{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// Append adds all commands of q, keeping q's subpaths separate.
func (p *Path) Append(q Path) { p.Cmds = append(p.Cmds, q.Cmds...) }

// Subpaths counts MoveTo commands.
func (p Path) Subpaths() int {
	n := 0
	for _, c := range p.Cmds {
		if c.Op == MoveTo {
			n++
		}
	}
	return n
}

// Transform returns a copy of p with m applied to every point.
func (p Path) Transform(m Affine2D) Path {
	out := Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		for k := 0; k < c.Op.points(); k++ {
			q := m.Apply(Pt{c.Data[2*k], c.Data[2*k+1]})
			c.Data[2*k], c.Data[2*k+1] = q.X, q.Y
		}
		out.Cmds[i] = c
	}
	return out
}

// Bounds returns an axis-aligned bounding box of the path using the control
// points, which is a superset of the tight curve bounds.
func (p Path) Bounds() Rect {
	minX, minY := 1e18, 1e18
	maxX, maxY := -1e18, -1e18
	for _, c := range p.Cmds {
		for k := 0; k < c.Op.points(); k++ {
			x, y := c.Data[2*k], c.Data[2*k+1]
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if minX > maxX || minY > maxY {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Data renders the path as SVG path data with absolute commands, numbers
// rounded to the given number of decimal places.
func (p Path) Data(places int) string {
	var b strings.Builder
	b.Grow(len(p.Cmds) * 24)
	for i, c := range p.Cmds {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch c.Op {
		case MoveTo:
			b.WriteByte('M')
		case LineTo:
			b.WriteByte('L')
		case QuadTo:
			b.WriteByte('Q')
		case CubicTo:
			b.WriteByte('C')
		case Close:
			b.WriteByte('Z')
			continue
		}
		for k := 0; k < 2*c.Op.points(); k++ {
			if k > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(FloatRound(c.Data[k], places), 'f', -1, 64))
		}
	}
	return b.String()
}
