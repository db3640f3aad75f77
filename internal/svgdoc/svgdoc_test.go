/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package svgdoc

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"noirinator/internal/domain"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"
     xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape" width="10" height="10">
  <title>scene &amp; shot</title>
  <g id="layer1" inkscape:groupmode="layer">
    <image xlink:href="a.jpg" width="10" height="10"/>
    <g id="trace">
      <path d="M0 0 L1 1 Z" style="fill:#111111"/>
      <path d="M0 0 L2 2 Z" style="fill:#222222"/>
    </g>
  </g>
</svg>`

// inkscapeMaster is written the way the encoder writes tokens, so an
// untouched round trip must reproduce it byte for byte.
const inkscapeMaster = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<!-- Created with Inkscape (http://www.inkscape.org/) -->
<svg xmlns="http://www.w3.org/2000/svg" xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape" xmlns:sodipodi="http://sodipodi.sourceforge.net/DTD/sodipodi-0.dtd" width="200" height="100" viewBox="0 0 200 100">
  <sodipodi:namedview id="base" inkscape:zoom="1.5"/>
  <g id="layer1" inkscape:groupmode="layer" inkscape:label="noir">
    <!-- lettering -->
    <text xml:space="preserve" x="10" y="20">Hello <tspan>world</tspan> again</text>
    <g id="trace-a">
      <path d="M0 0 L1 1 Z" style="fill:#ffffff"/>
    </g>
  </g>
</svg>
`

func TestParseAndQuery(t *testing.T) {
	doc, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Root()
	if !Is(root, NSSVG, "svg") {
		t.Fatalf("root = %s", root.FullTag())
	}
	if got := Find(root, NSSVG, "title").Text(); got != "scene & shot" {
		t.Fatalf("title text = %q", got)
	}
	layer := Find(root, NSSVG, "g")
	if layer == nil || layer.SelectAttrValue("id", "") != "layer1" {
		t.Fatalf("layer not found")
	}
	if v, _ := AttrValue(layer, NSInkscape, "groupmode"); v != "layer" {
		t.Fatalf("inkscape:groupmode = %q", v)
	}
	img := Find(layer, NSSVG, "image")
	if v, _ := AttrValue(img, NSXLink, "href"); v != "a.jpg" {
		t.Fatalf("xlink:href = %q", v)
	}
	if _, ok := AttrValue(img, "", "href"); ok {
		t.Fatalf("prefixed attribute matched without namespace")
	}
	paths := FindAll(Find(layer, NSSVG, "g"), NSSVG, "path")
	if len(paths) != 2 || paths[1].SelectAttrValue("d", "") != "M0 0 L2 2 Z" {
		t.Fatalf("paths = %d", len(paths))
	}
	if Find(layer, "http://example.com/other", "image") != nil {
		t.Fatalf("namespace mismatch should not match")
	}
	if Find(layer, "", "image") == nil {
		t.Fatalf("empty namespace should match any")
	}
}

func TestRoundTripKeepsInkscapeContent(t *testing.T) {
	doc, err := Parse(strings.NewReader(inkscapeMaster))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if string(out) != inkscapeMaster {
		t.Fatalf("round trip changed the document:\n%s", out)
	}

	layer := Find(doc.Root(), NSSVG, "g")
	g := layer.CreateElement("g")
	g.CreateAttr("id", "trace-b")
	out, err = doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	s := string(out)
	for _, want := range []string{
		"<!-- Created with Inkscape (http://www.inkscape.org/) -->",
		"<!-- lettering -->",
		`<text xml:space="preserve" x="10" y="20">Hello <tspan>world</tspan> again</text>`,
		`<sodipodi:namedview id="base" inkscape:zoom="1.5"/>`,
		`<g id="trace-b"/>`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("output missing %q:\n%s", want, s)
		}
	}
	if strings.Index(s, `id="trace-a"`) > strings.Index(s, `id="trace-b"`) {
		t.Fatalf("appended group not last:\n%s", s)
	}
}

func TestNewIsIndentedAndDeclaresNamespaces(t *testing.T) {
	doc := New(4, 3)
	g := doc.Root().CreateElement("g")
	SetAttr(g, NSInkscape, "label", "noir")
	SetAttr(g, NSSodipodi, "nodetypes", "cc")
	SetAttr(g, "http://example.com/ns", "tag", "x")
	g.CreateElement("path").CreateAttr("d", "M0 0")

	out, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	s := string(out)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8" standalone="no"?>`,
		`viewBox="0 0 4 3"`,
		`inkscape:label="noir"`,
		`xmlns:sodipodi="http://sodipodi.sourceforge.net/DTD/sodipodi-0.dtd"`,
		`sodipodi:nodetypes="cc"`,
		`xmlns:ns1="http://example.com/ns"`,
		`ns1:tag="x"`,
		"\n    <path d=\"M0 0\"/>",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("output missing %q:\n%s", want, s)
		}
	}
	if strings.Count(s, "xmlns:inkscape=") != 1 {
		t.Fatalf("inkscape namespace declared twice:\n%s", s)
	}
	again, err := Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	if v, _ := AttrValue(Find(again.Root(), NSSVG, "g"), "http://example.com/ns", "tag"); v != "x" {
		t.Fatalf("ns1:tag = %q", v)
	}
}

func TestRemoveDropsLeadingIndent(t *testing.T) {
	src := "<svg xmlns=\"http://www.w3.org/2000/svg\">\n  <image/>\n  <g/>\n</svg>"
	doc, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	Remove(doc.Root(), Find(doc.Root(), NSSVG, "image"))
	out, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if want := "<svg xmlns=\"http://www.w3.org/2000/svg\">\n  <g/>\n</svg>"; string(out) != want {
		t.Fatalf("Remove left %q, want %q", out, want)
	}
}

func TestMoveDeclaresPrefixesOnTarget(t *testing.T) {
	src, err := Parse(strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape">` +
		`<g id="layer"><g id="trace" inkscape:label="shot"><path d="M0 0"/></g></g></svg>`))
	if err != nil {
		t.Fatal(err)
	}
	dst, err := Parse(strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg"><g id="layer1"/></svg>`))
	if err != nil {
		t.Fatal(err)
	}
	group := Find(Find(src.Root(), NSSVG, "g"), NSSVG, "g")
	layer := Find(dst.Root(), NSSVG, "g")
	Move(layer, group)

	if Find(Find(src.Root(), NSSVG, "g"), "", "g") != nil {
		t.Fatalf("group still attached to its source")
	}
	if v, _ := AttrValue(group, NSInkscape, "label"); v != "shot" {
		t.Fatalf("inkscape:label after move = %q", v)
	}
	if !Is(Find(group, "", "path"), NSSVG, "path") {
		t.Fatalf("moved path lost the svg namespace")
	}
	out, err := dst.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `<svg xmlns="http://www.w3.org/2000/svg" xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape">`) {
		t.Fatalf("prefix not declared on target root:\n%s", out)
	}
}

func TestParseLatin1(t *testing.T) {
	src := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><svg xmlns=\"http://www.w3.org/2000/svg\"><title>caf\xe9</title></svg>")
	doc, err := Parse(bytes.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := Find(doc.Root(), NSSVG, "title").Text(); got != "café" {
		t.Fatalf("title = %q, want café", got)
	}
	out, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `encoding="UTF-8"`) || !strings.Contains(string(out), "café") {
		t.Fatalf("output not re-declared as UTF-8: %q", out)
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"", "<svg>", "not xml at all <"} {
		_, err := Parse(strings.NewReader(src))
		if !errors.Is(err, domain.ErrMalformedDocument) {
			t.Fatalf("Parse(%q) err = %v, want ErrMalformedDocument", src, err)
		}
	}
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.svg"))
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("ParseFile missing err = %v, want ErrIO", err)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.svg")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if Find(doc.Root(), NSSVG, "g") == nil {
		t.Fatalf("layer missing")
	}
}

func TestNamespace(t *testing.T) {
	cases := map[string]string{
		"{http://www.w3.org/2000/svg}": NSSVG,
		" http://www.w3.org/2000/svg ": NSSVG,
		"":                             "",
	}
	for in, want := range cases {
		if got := Namespace(in); got != want {
			t.Fatalf("Namespace(%q) = %q, want %q", in, got, want)
		}
	}
}
