/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

func TestFillStyle(t *testing.T) {
	if got, want := FillStyle(White), "fill:#ffffff;fill-opacity:1"; got != want {
		t.Fatalf("FillStyle(White) = %q, want %q", got, want)
	}
	if got, want := FillStyle(Black), "fill:#000000;fill-opacity:1"; got != want {
		t.Fatalf("FillStyle(Black) = %q, want %q", got, want)
	}
	if got, want := FillStyle(Gray(0x80)), "fill:#808080;fill-opacity:1"; got != want {
		t.Fatalf("FillStyle(Gray) = %q, want %q", got, want)
	}
}

func TestParseFill(t *testing.T) {
	cases := []struct {
		style, attr string
		want        Color
		ok          bool
	}{
		{"fill:#ffffff;fill-opacity:1", "", White, true},
		{"stroke:none; fill: #000", "", Black, true},
		{"", "#808080", Gray(0x80), true},
		{"fill:#102030", "#ffffff", Color{0x10, 0x20, 0x30, 255}, true},
		{"fill:#ffffff;fill-opacity:0", "", Color{255, 255, 255, 0}, true},
		{"fill:none", "", Color{}, false},
		{"", "", Color{}, false},
		{"fill:url(#grad)", "", Color{}, false},
	}
	for _, c := range cases {
		got, ok := ParseFill(c.style, c.attr)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseFill(%q, %q) = %v, %v; want %v, %v", c.style, c.attr, got, ok, c.want, c.ok)
		}
	}
}
