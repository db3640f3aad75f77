/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package svgdoc reads and writes SVG documents as etree element trees.
// Parsed documents keep every token (text, tails, comments, processing
// instructions and prefixes) so a file written back differs only where
// the tree was changed.
package svgdoc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"

	"noirinator/internal/domain"
)

// Well-known namespaces.
const (
	NSSVG      = "http://www.w3.org/2000/svg"
	NSXLink    = "http://www.w3.org/1999/xlink"
	NSInkscape = "http://www.inkscape.org/namespaces/inkscape"
	NSSodipodi = "http://sodipodi.sourceforge.net/DTD/sodipodi-0.dtd"
	nsXML      = "http://www.w3.org/XML/1998/namespace"
)

var wellKnownPrefixes = map[string]string{
	NSXLink:    "xlink",
	NSInkscape: "inkscape",
	NSSodipodi: "sodipodi",
	"http://www.w3.org/1999/02/22-rdf-syntax-ns#": "rdf",
	"http://purl.org/dc/elements/1.1/":            "dc",
	"http://creativecommons.org/ns#":              "cc",
}

var encodingDecl = regexp.MustCompile(`encoding\s*=\s*("[^"]*"|'[^']*')`)

// Document is an SVG file. Documents built with New are indented on write;
// parsed ones are written back as read.
type Document struct {
	*etree.Document
	built bool
}

// New returns an empty SVG document of the given pixel size.
func New(width, height int) *Document {
	d := etree.NewDocument()
	d.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="no"`)
	root := d.CreateElement("svg")
	root.CreateAttr("xmlns", NSSVG)
	root.CreateAttr("xmlns:xlink", NSXLink)
	root.CreateAttr("xmlns:inkscape", NSInkscape)
	root.CreateAttr("version", "1.1")
	root.CreateAttr("width", fmt.Sprint(width))
	root.CreateAttr("height", fmt.Sprint(height))
	root.CreateAttr("viewBox", fmt.Sprintf("0 0 %d %d", width, height))
	return &Document{Document: d, built: true}
}

// Namespace converts a namespace setting to a URI. ElementTree style
// "{uri}" is unwrapped; anything else is taken as the URI itself.
func Namespace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s[1 : len(s)-1]
	}
	return s
}

// ParseFile reads and parses the SVG file at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, domain.ErrIO, err)
	}
	defer func() { _ = f.Close() }()
	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse reads an XML document. Non UTF-8 encodings declared in the prolog
// are converted on the fly.
func Parse(r io.Reader) (*Document, error) {
	d := etree.NewDocument()
	d.ReadSettings.CharsetReader = charset.NewReaderLabel
	if _, err := d.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
	}
	if d.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", domain.ErrMalformedDocument)
	}
	return &Document{Document: d}, nil
}

// Bytes serializes the document as UTF-8.
func (d *Document) Bytes() ([]byte, error) {
	if d == nil || d.Document == nil || d.Root() == nil {
		return nil, errors.New("encode: empty document")
	}
	if d.built {
		d.Indent(2)
	}
	for _, t := range d.Child {
		if p, ok := t.(*etree.ProcInst); ok && p.Target == "xml" {
			p.Inst = encodingDecl.ReplaceAllString(p.Inst, `encoding="UTF-8"`)
		}
	}
	return d.WriteToBytes()
}

// Is reports whether e has the given local name and, when uri is not
// empty, the given namespace.
func Is(e *etree.Element, uri, local string) bool {
	return e != nil && e.Tag == local && (uri == "" || e.NamespaceURI() == uri)
}

// Find returns the first child element of e with the given namespace and
// local name. An empty uri matches any namespace.
func Find(e *etree.Element, uri, local string) *etree.Element {
	for _, c := range e.ChildElements() {
		if Is(c, uri, local) {
			return c
		}
	}
	return nil
}

// FindAll returns all matching child elements of e, in document order.
func FindAll(e *etree.Element, uri, local string) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if Is(c, uri, local) {
			out = append(out, c)
		}
	}
	return out
}

// AttrValue returns the attribute of e with the given namespace and local name.
func AttrValue(e *etree.Element, uri, local string) (string, bool) {
	for i := range e.Attr {
		a := &e.Attr[i]
		if a.Key != local || a.Space == "xmlns" {
			continue
		}
		if attrURI(e, a) == uri {
			return a.Value, true
		}
	}
	return "", false
}

func attrURI(e *etree.Element, a *etree.Attr) string {
	switch a.Space {
	case "":
		return ""
	case "xml":
		return nsXML
	}
	if uri, ok := lookupPrefix(e, a.Space); ok {
		return uri
	}
	return ""
}

// SetAttr sets a namespaced attribute on e, keeping its position when it
// exists. The prefix declared for uri in scope is used; an unknown uri is
// declared on e.
func SetAttr(e *etree.Element, uri, local, value string) {
	if uri == "" {
		e.CreateAttr(local, value)
		return
	}
	e.CreateAttr(prefixFor(e, uri)+":"+local, value)
}

func prefixFor(e *etree.Element, uri string) string {
	if uri == nsXML {
		return "xml"
	}
	for p := e; p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if a.Space == "xmlns" && a.Value == uri {
				return a.Key
			}
		}
	}
	prefix, ok := wellKnownPrefixes[uri]
	for n := 1; !ok || isBound(e, prefix); n++ {
		prefix, ok = fmt.Sprintf("ns%d", n), true
	}
	e.CreateAttr("xmlns:"+prefix, uri)
	return prefix
}

func isBound(e *etree.Element, prefix string) bool {
	_, ok := lookupPrefix(e, prefix)
	return ok
}

// lookupPrefix resolves prefix against the declarations in scope at e.
func lookupPrefix(e *etree.Element, prefix string) (string, bool) {
	for p := e; p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if a.Space == "xmlns" && a.Key == prefix {
				return a.Value, true
			}
		}
	}
	return "", false
}

func defaultNamespace(e *etree.Element) string {
	for p := e; p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if a.Space == "" && a.Key == "xmlns" {
				return a.Value
			}
		}
	}
	return ""
}

// Remove detaches child from parent together with the whitespace that
// precedes it, so no blank line is left behind.
func Remove(parent, child *etree.Element) {
	i := child.Index()
	if parent.RemoveChild(child) == nil {
		return
	}
	if i > 0 {
		if cd, ok := parent.Child[i-1].(*etree.CharData); ok && strings.TrimSpace(cd.Data) == "" {
			parent.RemoveChildAt(i - 1)
		}
	}
}

// Move detaches e from its document and appends it to dst. Prefixes used
// inside e that are not bound at dst are declared on dst's root element,
// and e keeps its default namespace.
func Move(dst, e *etree.Element) {
	need := map[string]string{}
	usedPrefixes(e, need)
	ns := defaultNamespace(e)
	if p := e.Parent(); p != nil {
		Remove(p, e)
	}

	root := dst
	for p := root.Parent(); p != nil && p.Tag != ""; p = p.Parent() {
		root = p
	}
	prefixes := make([]string, 0, len(need))
	for p := range need {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		if !isBound(dst, p) {
			root.CreateAttr("xmlns:"+p, need[p])
		}
	}
	if ns != defaultNamespace(dst) && e.SelectAttr("xmlns") == nil {
		e.CreateAttr("xmlns", ns)
	}
	dst.AddChild(e)
}

func usedPrefixes(e *etree.Element, into map[string]string) {
	add := func(prefix string) {
		if prefix == "" || prefix == "xml" || prefix == "xmlns" {
			return
		}
		if uri, ok := lookupPrefix(e, prefix); ok {
			into[prefix] = uri
		}
	}
	add(e.Space)
	for _, a := range e.Attr {
		add(a.Space)
	}
	for _, c := range e.ChildElements() {
		usedPrefixes(c, into)
	}
}
