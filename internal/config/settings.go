/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"noirinator/internal/domain"
)

//go:embed settings.schema.json
var settingsSchema string

// Settings keys recognized in the batch settings document.
const (
	KeyXMLNamespace    = "xmlNamespace"
	KeyInputDir        = "inputDir"
	KeyProcessDir      = "processDir"
	KeyImgMaxSize      = "imgMaxSize"
	KeySteps           = "steps"
	KeyBackgroundSteps = "backgroundSteps"
	KeyBlackSteps      = "blackSteps"
	KeyMasterFile      = "masterFile"
	KeyExtension       = "extension"
	KeyPotrace         = "potrace"
	KeyTurdSize        = "turdSize"
	KeyLedger          = "ledger"
)

// Settings is the typed, immutable view of one batch settings document.
// It is loaded once per run and passed by value into every stage.
type Settings struct {
	XMLNamespace    string
	InputDir        string
	ProcessDir      string
	ImgMaxSize      int
	Steps           int
	BackgroundSteps int
	BlackSteps      int

	MasterFile string // default "master.svg"
	Extension  string // lower-case, with leading dot; default ".jpg"
	Potrace    string // potrace binary; default "potrace"
	TurdSize   int    // potrace speckle suppression; default 2
	Ledger     bool   // record runs in the SQLite ledger; default true
}

// WhiteLevels is the last region position (0-based, after background
// removal) that is recolored white.
func (s Settings) WhiteLevels() int {
	return s.Steps - s.BackgroundSteps - s.BlackSteps
}

// Validate checks the cross-field rules that the schema cannot express.
// Removing every traced region leaves nothing to composite, so at least one
// region must survive background removal.
func (s Settings) Validate() error {
	if s.ImgMaxSize < 1 || s.Steps < 1 {
		return fmt.Errorf("%w: imgMaxSize and steps must be positive", domain.ErrConfig)
	}
	if s.BackgroundSteps < 0 || s.BlackSteps < 0 {
		return fmt.Errorf("%w: backgroundSteps and blackSteps must not be negative", domain.ErrConfig)
	}
	if s.BackgroundSteps+1 > s.Steps {
		return fmt.Errorf("%w: backgroundSteps (%d) must be below steps (%d)", domain.ErrInvalidParameters, s.BackgroundSteps, s.Steps)
	}
	return nil
}

// LoadSettings reads a settings document. Files ending in .xml use the flat
// <settings><key>value</key>...</settings> layout; anything else is a YAML map.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: read settings: %w", domain.ErrConfig, err)
	}
	var kv map[string]string
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		kv, err = parseXMLSettings(data)
	} else {
		kv, err = parseYAMLSettings(data)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("%w: parse %s: %w", domain.ErrConfig, path, err)
	}
	return ParseSettings(kv)
}

// ParseSettings validates a raw key/value map against the settings schema and
// converts it to Settings. Missing keys and non-numeric numbers yield ErrConfig.
func ParseSettings(kv map[string]string) (Settings, error) {
	if err := validateSchema(kv); err != nil {
		return Settings{}, err
	}
	s := Settings{
		XMLNamespace: kv[KeyXMLNamespace],
		InputDir:     strings.TrimSpace(kv[KeyInputDir]),
		ProcessDir:   strings.TrimSpace(kv[KeyProcessDir]),
		MasterFile:   "master.svg",
		Extension:    ".jpg",
		Potrace:      "potrace",
		TurdSize:     2,
		Ledger:       true,
	}
	ints := []struct {
		key string
		dst *int
	}{
		{KeyImgMaxSize, &s.ImgMaxSize},
		{KeySteps, &s.Steps},
		{KeyBackgroundSteps, &s.BackgroundSteps},
		{KeyBlackSteps, &s.BlackSteps},
	}
	for _, f := range ints {
		n, err := strconv.Atoi(strings.TrimSpace(kv[f.key]))
		if err != nil {
			return Settings{}, fmt.Errorf("%w: %s: %w", domain.ErrConfig, f.key, err)
		}
		*f.dst = n
	}
	if v := strings.TrimSpace(kv[KeyMasterFile]); v != "" {
		s.MasterFile = v
	}
	if v := strings.TrimSpace(kv[KeyExtension]); v != "" {
		s.Extension = "." + strings.TrimPrefix(strings.ToLower(v), ".")
	}
	if v := strings.TrimSpace(kv[KeyPotrace]); v != "" {
		s.Potrace = v
	}
	if v := strings.TrimSpace(kv[KeyTurdSize]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: %s: %w", domain.ErrConfig, KeyTurdSize, err)
		}
		s.TurdSize = n
	}
	if v := strings.TrimSpace(kv[KeyLedger]); v != "" {
		switch strings.ToLower(v) {
		case "0", "false", "no", "off":
			s.Ledger = false
		}
	}
	return s, nil
}

func validateSchema(kv map[string]string) error {
	doc := make(map[string]any, len(kv))
	for k, v := range kv {
		doc[k] = v
	}
	res, err := gojsonschema.Validate(gojsonschema.NewStringLoader(settingsSchema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: schema: %w", domain.ErrConfig, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(msgs, "; "))
}

func parseXMLSettings(data []byte) (map[string]string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("no root element")
	}
	kv := make(map[string]string, len(root.ChildElements()))
	for _, e := range root.ChildElements() {
		kv[e.Tag] = e.Text()
	}
	return kv, nil
}

func parseYAMLSettings(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("empty settings document")
	}
	kv := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case nil:
			kv[k] = ""
		case string:
			kv[k] = tv
		case int, int64, uint64, float64, bool:
			kv[k] = fmt.Sprint(tv)
		default:
			return nil, fmt.Errorf("key %q: value must be a scalar", k)
		}
	}
	return kv, nil
}
