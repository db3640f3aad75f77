/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas accumulates composited traces into the master canvas.
package canvas

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"noirinator/internal/domain"
	"noirinator/internal/storage"
	"noirinator/internal/svgdoc"
)

// Master is the append-only master canvas: one document with a single
// top-level layer group that receives region groups in processing order.
type Master struct {
	Path  string
	Doc   *svgdoc.Document
	Layer *etree.Element
	// Created is set when no master file existed and a fresh one was built.
	Created bool
	sized   bool
}

// OpenMaster loads the master canvas at path. A missing file yields a fresh
// canvas; it and a loaded canvas without a usable size take their size from
// the first appended trace.
func OpenMaster(path, ns string) (*Master, error) {
	doc, err := svgdoc.ParseFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return newMaster(path), nil
	}
	if err != nil {
		return nil, err
	}
	layer := svgdoc.Find(doc.Root(), ns, "g")
	if layer == nil {
		return nil, fmt.Errorf("%s: %w: no layer group", path, domain.ErrMalformedDocument)
	}
	return &Master{Path: path, Doc: doc, Layer: layer, sized: hasSize(doc.Root())}, nil
}

func newMaster(path string) *Master {
	doc := svgdoc.New(0, 0)
	layer := doc.Root().CreateElement("g")
	layer.CreateAttr("id", "layer1")
	svgdoc.SetAttr(layer, svgdoc.NSInkscape, "groupmode", "layer")
	svgdoc.SetAttr(layer, svgdoc.NSInkscape, "label", "noir")
	return &Master{Path: path, Doc: doc, Layer: layer, Created: true}
}

// hasSize reports whether root has a positive viewBox or width and height.
func hasSize(root *etree.Element) bool {
	if vb := strings.Fields(strings.ReplaceAll(root.SelectAttrValue("viewBox", ""), ",", " ")); len(vb) == 4 {
		w, errW := strconv.ParseFloat(vb[2], 64)
		h, errH := strconv.ParseFloat(vb[3], 64)
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return true
		}
	}
	w, _ := strconv.ParseFloat(strings.TrimSuffix(root.SelectAttrValue("width", ""), "px"), 64)
	h, _ := strconv.ParseFloat(strings.TrimSuffix(root.SelectAttrValue("height", ""), "px"), 64)
	return w > 0 && h > 0
}

// Sized reports whether the canvas has a usable size.
func (m *Master) Sized() bool { return m.sized }

// Append moves a composited region group to the end of the layer.
// The group's source document sizes a canvas that has no size yet.
func (m *Master) Append(group *etree.Element, from *svgdoc.Document) {
	if !m.sized && from != nil && from.Document != nil && from.Root() != nil {
		for _, k := range []string{"width", "height", "viewBox"} {
			if v := from.Root().SelectAttrValue(k, ""); v != "" {
				m.Doc.Root().CreateAttr(k, v)
			}
		}
		m.sized = hasSize(m.Doc.Root())
	}
	svgdoc.Move(m.Layer, group)
}

// Save writes the canvas atomically. An existing file is first copied to a
// timestamped backup, whose path is returned.
func (m *Master) Save() (string, error) {
	data, err := m.Doc.Bytes()
	if err != nil {
		return "", fmt.Errorf("%w: encode master: %w", domain.ErrIO, err)
	}
	backup, err := storage.BackupFile(m.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	if err := storage.WriteFileAtomic(m.Path, data); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return backup, nil
}
