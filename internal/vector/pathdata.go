/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"fmt"
	"strconv"
)

// ParsePathData parses SVG path data into absolute commands. Relative
// commands, implicit repeats, H/V and the smooth S/T forms are resolved;
// elliptical arcs are not supported.
func ParsePathData(d string) (Path, error) {
	s := &pathScanner{src: d}
	var (
		p            Path
		cur, start   Pt
		lastCtrl     Pt
		lastOp       byte
		cmd          byte
		haveCommand  bool
		firstInGroup bool
	)
	for {
		s.skipSeparators()
		if s.done() {
			break
		}
		if c := s.peek(); isCommand(c) {
			cmd = c
			s.pos++
			haveCommand = true
			firstInGroup = true
			if cmd == 'Z' || cmd == 'z' {
				p.Close()
				cur = start
				lastOp = 'Z'
				continue
			}
		} else if !haveCommand || cmd == 'Z' || cmd == 'z' {
			return Path{}, fmt.Errorf("path data: number without command at offset %d", s.pos)
		}

		rel := cmd >= 'a'
		var base Pt
		if rel {
			base = cur
		}
		switch cmd {
		case 'M', 'm':
			v, err := s.numbers(2)
			if err != nil {
				return Path{}, err
			}
			pt := Pt{base.X + v[0], base.Y + v[1]}
			if firstInGroup {
				p.MoveTo(pt.X, pt.Y)
				start = pt
			} else {
				// implicit lineto after the first pair
				p.LineTo(pt.X, pt.Y)
			}
			cur = pt
		case 'L', 'l':
			v, err := s.numbers(2)
			if err != nil {
				return Path{}, err
			}
			cur = Pt{base.X + v[0], base.Y + v[1]}
			p.LineTo(cur.X, cur.Y)
		case 'H', 'h':
			v, err := s.numbers(1)
			if err != nil {
				return Path{}, err
			}
			cur = Pt{base.X + v[0], cur.Y}
			p.LineTo(cur.X, cur.Y)
		case 'V', 'v':
			v, err := s.numbers(1)
			if err != nil {
				return Path{}, err
			}
			cur = Pt{cur.X, base.Y + v[0]}
			p.LineTo(cur.X, cur.Y)
		case 'C', 'c':
			v, err := s.numbers(6)
			if err != nil {
				return Path{}, err
			}
			c1 := Pt{base.X + v[0], base.Y + v[1]}
			c2 := Pt{base.X + v[2], base.Y + v[3]}
			cur = Pt{base.X + v[4], base.Y + v[5]}
			p.CubicTo(c1.X, c1.Y, c2.X, c2.Y, cur.X, cur.Y)
			lastCtrl = c2
		case 'S', 's':
			v, err := s.numbers(4)
			if err != nil {
				return Path{}, err
			}
			c1 := cur
			if lastOp == 'C' || lastOp == 'S' {
				c1 = Pt{2*cur.X - lastCtrl.X, 2*cur.Y - lastCtrl.Y}
			}
			c2 := Pt{base.X + v[0], base.Y + v[1]}
			cur = Pt{base.X + v[2], base.Y + v[3]}
			p.CubicTo(c1.X, c1.Y, c2.X, c2.Y, cur.X, cur.Y)
			lastCtrl = c2
		case 'Q', 'q':
			v, err := s.numbers(4)
			if err != nil {
				return Path{}, err
			}
			c := Pt{base.X + v[0], base.Y + v[1]}
			cur = Pt{base.X + v[2], base.Y + v[3]}
			p.QuadTo(c.X, c.Y, cur.X, cur.Y)
			lastCtrl = c
		case 'T', 't':
			v, err := s.numbers(2)
			if err != nil {
				return Path{}, err
			}
			c := cur
			if lastOp == 'Q' || lastOp == 'T' {
				c = Pt{2*cur.X - lastCtrl.X, 2*cur.Y - lastCtrl.Y}
			}
			cur = Pt{base.X + v[0], base.Y + v[1]}
			p.QuadTo(c.X, c.Y, cur.X, cur.Y)
			lastCtrl = c
		default:
			return Path{}, fmt.Errorf("path data: unsupported command %q", cmd)
		}
		lastOp = cmd &^ 0x20 // upper case
		firstInGroup = false
	}
	return p, nil
}

func isCommand(c byte) bool {
	switch c {
	case 'M', 'm', 'L', 'l', 'H', 'h', 'V', 'v', 'C', 'c', 'S', 's', 'Q', 'q', 'T', 't', 'Z', 'z', 'A', 'a':
		return true
	}
	return false
}

type pathScanner struct {
	src string
	pos int
}

func (s *pathScanner) done() bool { return s.pos >= len(s.src) }
func (s *pathScanner) peek() byte { return s.src[s.pos] }

func (s *pathScanner) skipSeparators() {
	for !s.done() {
		switch s.peek() {
		case ' ', '\t', '\n', '\r', ',':
			s.pos++
		default:
			return
		}
	}
}

func (s *pathScanner) numbers(n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		s.skipSeparators()
		v, err := s.number()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// number reads one float; "1.5.5" yields 1.5 and leaves ".5" for the next call.
func (s *pathScanner) number() (float64, error) {
	begin := s.pos
	if !s.done() && (s.peek() == '+' || s.peek() == '-') {
		s.pos++
	}
	digits, dot := 0, false
	for !s.done() {
		c := s.peek()
		if c >= '0' && c <= '9' {
			digits++
		} else if c == '.' && !dot {
			dot = true
		} else {
			break
		}
		s.pos++
	}
	if digits == 0 {
		return 0, fmt.Errorf("path data: expected number at offset %d", begin)
	}
	if !s.done() && (s.peek() == 'e' || s.peek() == 'E') {
		mark := s.pos
		s.pos++
		if !s.done() && (s.peek() == '+' || s.peek() == '-') {
			s.pos++
		}
		expDigits := 0
		for !s.done() && s.peek() >= '0' && s.peek() <= '9' {
			s.pos++
			expDigits++
		}
		if expDigits == 0 {
			s.pos = mark
		}
	}
	return strconv.ParseFloat(s.src[begin:s.pos], 64)
}
