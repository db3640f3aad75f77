/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"noirinator/internal/compose"
	"noirinator/internal/config"
	"noirinator/internal/domain"
	applog "noirinator/internal/log"
	"noirinator/internal/raster"
	"noirinator/internal/storage"
	"noirinator/internal/svgdoc"
	"noirinator/internal/trace"
)

// Normalizer prepares an input raster in place.
type Normalizer interface {
	Normalize(path string, maxDimension int) error
}

// NormalizeFunc adapts a function to Normalizer.
type NormalizeFunc func(path string, maxDimension int) error

func (f NormalizeFunc) Normalize(path string, maxDimension int) error { return f(path, maxDimension) }

// Deps are the collaborators of a run.
type Deps struct {
	Normalizer Normalizer
	Tracer     trace.Tracer
	// Dir resolves relative paths in the settings; "" is the current directory.
	Dir string
	// OnFile, when set, is called before each input is processed.
	OnFile func(name string)
	Now    func() time.Time
}

// DefaultDeps wires the raster normalizer and the potrace tracer.
func DefaultDeps(s config.Settings) Deps {
	return Deps{
		Normalizer: NormalizeFunc(raster.Normalize),
		Tracer:     trace.NewPotrace(s.Potrace, s.TurdSize),
	}
}

// ImageError names the input (or master file) a run failed on.
type ImageError struct {
	File string
	Err  error
}

func (e *ImageError) Error() string { return e.File + ": " + e.Err.Error() }
func (e *ImageError) Unwrap() error { return e.Err }

// ImageResult is the outcome for one input.
type ImageResult struct {
	File string
	compose.Stats
}

// Report describes a completed run.
type Report struct {
	Master  string
	Backup  string // previous master copy, "" for a fresh canvas
	Created bool
	Written bool // false when a fresh canvas had nothing to size it
	Images  []ImageResult
	RunID   int64 // ledger run id, 0 when not recorded
}

// ListInputs returns the names of regular files in dir whose extension
// matches ext case-insensitively, in lexicographic order.
func ListInputs(dir, ext string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", domain.ErrIO, dir, err)
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Run processes every input of the batch and appends the results to the
// master canvas. The master file is written only after all inputs succeed;
// any failure aborts the batch with an *ImageError and leaves it untouched.
func Run(ctx context.Context, s config.Settings, deps Deps) (Report, error) {
	l := applog.WithOperation(applog.WithComponent("canvas"), "run")
	if err := s.Validate(); err != nil {
		return Report{}, err
	}
	if deps.Normalizer == nil || deps.Tracer == nil {
		d := DefaultDeps(s)
		if deps.Normalizer == nil {
			deps.Normalizer = d.Normalizer
		}
		if deps.Tracer == nil {
			deps.Tracer = d.Tracer
		}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	started := now()
	ns := svgdoc.Namespace(s.XMLNamespace)
	masterPath := resolve(deps.Dir, s.MasterFile)
	inputDir := resolve(deps.Dir, s.InputDir)
	processDir := resolve(deps.Dir, s.ProcessDir)

	master, err := OpenMaster(masterPath, ns)
	if err != nil {
		return Report{}, &ImageError{File: s.MasterFile, Err: err}
	}
	label, _ := svgdoc.AttrValue(master.Layer, svgdoc.NSInkscape, "label")
	l.Debug("master opened", slog.String("path", masterPath), slog.String("layer", label),
		slog.Bool("created", master.Created), slog.Bool("sized", master.Sized()))
	files, err := ListInputs(inputDir, s.Extension)
	if err != nil {
		return Report{}, &ImageError{File: s.InputDir, Err: err}
	}
	if len(files) == 0 {
		l.Warn("no input files", slog.String("dir", inputDir), slog.String("ext", s.Extension))
	}
	if err := os.MkdirAll(processDir, 0o755); err != nil {
		return Report{}, &ImageError{File: s.ProcessDir, Err: fmt.Errorf("%w: %w", domain.ErrIO, err)}
	}

	rep := Report{Master: masterPath, Created: master.Created}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return Report{}, &ImageError{File: name, Err: err}
		}
		if deps.OnFile != nil {
			deps.OnFile(name)
		}
		l.Info("processing file", slog.String("file", name))
		res, err := processOne(ctx, s, deps, ns, master, filepath.Join(inputDir, name), processDir)
		if err != nil {
			l.Error("image failed", slog.String("file", name), slog.String("kind", domain.Kind(err)), slog.Any("err", err))
			return Report{}, &ImageError{File: name, Err: err}
		}
		rep.Images = append(rep.Images, res)
	}

	if master.Created && !master.Sized() {
		l.Warn("nothing traced, master not written", slog.String("path", masterPath))
	} else {
		backup, err := master.Save()
		if err != nil {
			return Report{}, &ImageError{File: s.MasterFile, Err: err}
		}
		rep.Backup = backup
		rep.Written = true
		l.Info("master written", slog.String("path", masterPath), slog.Int("images", len(rep.Images)),
			slog.Bool("created", master.Created))
	}

	if s.Ledger {
		rep.RunID = record(ctx, deps.Dir, s, rep, started, now())
	}
	return rep, nil
}

func processOne(ctx context.Context, s config.Settings, deps Deps, ns string, master *Master, path, processDir string) (ImageResult, error) {
	name := filepath.Base(path)
	if err := deps.Normalizer.Normalize(path, s.ImgMaxSize); err != nil {
		return ImageResult{}, err
	}
	doc, err := deps.Tracer.Trace(ctx, path, s.Steps)
	if err != nil {
		return ImageResult{}, err
	}
	raw, err := doc.Bytes()
	if err != nil {
		return ImageResult{}, fmt.Errorf("%w: encode trace: %w", domain.ErrIO, err)
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if err := storage.WriteFileAtomic(filepath.Join(processDir, stem+".svg"), raw); err != nil {
		return ImageResult{}, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	group, st, err := compose.CompositeStats(doc, ns, s.BackgroundSteps, s.WhiteLevels())
	if err != nil {
		return ImageResult{}, err
	}
	master.Append(group, doc)
	return ImageResult{File: name, Stats: st}, nil
}

// record stores the run in the ledger. Ledger failures are logged and
// never fail the run, since the master is already written.
func record(ctx context.Context, dir string, s config.Settings, rep Report, started, finished time.Time) int64 {
	l := applog.WithOperation(applog.WithComponent("canvas"), "ledger")
	if dir == "" {
		dir = "."
	}
	lg, err := storage.OpenLedger(dir)
	if err != nil {
		l.Warn("ledger unavailable", slog.Any("err", err))
		return 0
	}
	defer func() { _ = lg.Close() }()
	run := storage.RunRecord{
		Started: started, Finished: finished, Master: s.MasterFile,
		Steps: s.Steps, BackgroundSteps: s.BackgroundSteps, BlackSteps: s.BlackSteps,
	}
	for _, im := range rep.Images {
		run.Images = append(run.Images, storage.ImageRecord{
			File: im.File, Traced: im.Traced, Removed: im.Removed, White: im.White, Black: im.Black,
		})
	}
	id, err := lg.RecordRun(ctx, run)
	if err != nil {
		l.Warn("record run failed", slog.Any("err", err))
		return 0
	}
	return id
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) || dir == "" {
		return p
	}
	return filepath.Join(dir, p)
}
