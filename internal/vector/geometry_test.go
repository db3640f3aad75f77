/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

func TestParseTransform(t *testing.T) {
	cases := []struct {
		in   string
		pt   Pt
		want Pt
	}{
		{"", Pt{1, 2}, Pt{1, 2}},
		{"translate(5)", Pt{1, 2}, Pt{6, 2}},
		{"translate(5, -3) scale(2)", Pt{1, 2}, Pt{7, 1}},
		{"scale(2,3)", Pt{1, 2}, Pt{2, 6}},
		{"matrix(1 0 0 1 10 20)", Pt{1, 2}, Pt{11, 22}},
		{"rotate(90)", Pt{1, 0}, Pt{0, 1}},
		{"rotate(180 5 5)", Pt{0, 0}, Pt{10, 10}},
	}
	for _, c := range cases {
		m, err := ParseTransform(c.in)
		if err != nil {
			t.Fatalf("ParseTransform(%q): %v", c.in, err)
		}
		got := m.Apply(c.pt)
		if !near(FloatRound(got.X, 9), c.want.X) || !near(FloatRound(got.Y, 9), c.want.Y) {
			t.Fatalf("ParseTransform(%q).Apply(%v) = %v, want %v", c.in, c.pt, got, c.want)
		}
	}
}

func TestParseTransformErrors(t *testing.T) {
	for _, in := range []string{"skewX(10)", "translate(1", "scale(a)", "matrix(1 2 3)"} {
		if _, err := ParseTransform(in); err == nil {
			t.Fatalf("ParseTransform(%q) expected error", in)
		}
	}
}

func TestRectUnion(t *testing.T) {
	a := R(0, 0, 10, 10)
	b := R(5, -5, 10, 10)
	u := a.Union(b)
	if u != R(0, -5, 15, 15) {
		t.Fatalf("Union = %+v", u)
	}
	if got := (Rect{}).Union(a); got != a {
		t.Fatalf("empty Union = %+v", got)
	}
}

func TestFloatRound(t *testing.T) {
	if got := FloatRound(1.23456, 2); got != 1.23 {
		t.Fatalf("FloatRound = %v", got)
	}
	if got := FloatRound(1.5, -1); got != 1.5 {
		t.Fatalf("FloatRound negative places = %v", got)
	}
}
