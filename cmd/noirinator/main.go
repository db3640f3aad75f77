/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"noirinator/internal/canvas"
	"noirinator/internal/config"
	"noirinator/internal/crash"
	"noirinator/internal/domain"
	"noirinator/internal/export"
	applog "noirinator/internal/log"
	"noirinator/internal/storage"
	"noirinator/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Noirinator: batch renders to a two-tone SVG canvas")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  noirinator [run] [<settings>]                  Trace all inputs and append them to the master canvas")
	_, _ = fmt.Fprintln(w, "  noirinator version|-v|--version               Show version")
	_, _ = fmt.Fprintln(w, "  noirinator preview <master.svg> <out.png> [w]  Render a PNG preview, optionally w pixels wide")
	_, _ = fmt.Fprintln(w, "  noirinator pdf <master.svg> <out.pdf>          Write the canvas as a vector PDF")
	_, _ = fmt.Fprintln(w, "  noirinator export web|print <master.svg> [dir] Export with a preset")
	_, _ = fmt.Fprintln(w, "  noirinator history [n]                         List recorded runs")
}

func main() {
	cfg, err := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	if err != nil {
		applog.WithComponent("cli").Debug("user config unavailable", slog.Any("err", err))
	}
	os.Exit(realMain(os.Args[1:], cfg, os.Stdout))
}

// realMain runs one command and returns the process exit code.
// A panic inside the command ends the process through crash.Recover.
func realMain(args []string, cfg config.AppConfig, out io.Writer) int {
	wd, _ := os.Getwd()
	scope := &crash.Scope{Dir: wd}
	defer crash.Recover(scope)
	l := applog.WithComponent("cli")
	l.Debug("start", slog.Int("args", len(args)))

	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(out, version.String())
		return 0
	case "help", "-h", "--help":
		usage(out)
		return 0
	case "run":
		path := cfg.General.SettingsFile
		if len(args) > 0 {
			path = args[0]
		}
		scope.Settings = path
		return runBatch(path, scope, out)
	case "preview":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(out, "preview requires <master.svg> and <out.png>")
			usage(out)
			return 2
		}
		var opt export.PNGOptions
		if len(args) > 2 {
			w, err := strconv.Atoi(args[2])
			if err != nil || w < 1 {
				_, _ = fmt.Fprintln(out, "preview width must be a positive integer")
				return 2
			}
			opt.Width = w
		}
		size, err := export.PreviewPNG(args[0], args[1], opt)
		if err != nil {
			return fail(out, err)
		}
		_, _ = fmt.Fprintf(out, "Preview written to %s (%dx%d)\n", args[1], size.X, size.Y)
		return 0
	case "pdf":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(out, "pdf requires <master.svg> and <out.pdf>")
			usage(out)
			return 2
		}
		n, err := export.MasterPDF(args[0], args[1], export.PDFOptions{Compress: true})
		if err != nil {
			return fail(out, err)
		}
		_, _ = fmt.Fprintf(out, "PDF written to %s (%d regions)\n", args[1], n)
		return 0
	case "export":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(out, "export requires a preset (web, print) and <master.svg>")
			usage(out)
			return 2
		}
		opt := export.BatchOptions{Preset: export.PresetName(args[0])}
		if len(args) > 2 {
			opt.OutDir = args[2]
		}
		files, err := export.Batch(args[1], opt)
		if err != nil {
			return fail(out, err)
		}
		for _, f := range files {
			_, _ = fmt.Fprintln(out, "Wrote", f)
		}
		return 0
	case "history":
		limit := 10
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				limit = n
			}
		}
		return history(wd, limit, out)
	}
	usage(out)
	return 2
}

func runBatch(settingsPath string, scope *crash.Scope, out io.Writer) int {
	l := applog.WithOperation(applog.WithComponent("cli"), "run")
	s, err := config.LoadSettings(settingsPath)
	if err != nil {
		return fail(out, err)
	}
	l.Info("settings loaded", slog.String("path", settingsPath), slog.Int("steps", s.Steps),
		slog.Int("background", s.BackgroundSteps), slog.Int("white_levels", s.WhiteLevels()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	deps := canvas.DefaultDeps(s)
	deps.OnFile = func(name string) {
		scope.SetInput(name)
		_, _ = fmt.Fprintf(out, "processing file %s\n", name)
	}
	rep, err := canvas.Run(ctx, s, deps)
	if err != nil {
		return fail(out, err)
	}
	if rep.Backup != "" {
		l.Info("previous master kept", slog.String("backup", rep.Backup))
	}
	if !rep.Written {
		_, _ = fmt.Fprintln(out, "No images traced, master not written.")
		return 0
	}
	_, _ = fmt.Fprintln(out, "SVG canvas ready.")
	return 0
}

func history(dir string, limit int, out io.Writer) int {
	lg, err := storage.OpenLedger(dir)
	if err != nil {
		return fail(out, fmt.Errorf("%w: %w", domain.ErrIO, err))
	}
	defer func() { _ = lg.Close() }()
	ctx := context.Background()
	schema, err := lg.SchemaVersion(ctx)
	if err != nil {
		return fail(out, fmt.Errorf("%w: %w", domain.ErrIO, err))
	}
	_, _ = fmt.Fprintf(out, "Ledger %s (schema %d)\n", lg.Path(), schema)
	runs, err := lg.Runs(ctx, limit)
	if err != nil {
		return fail(out, fmt.Errorf("%w: %w", domain.ErrIO, err))
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs recorded.")
		return 0
	}
	for _, r := range runs {
		_, _ = fmt.Fprintf(out, "#%d %s %s steps=%d background=%d black=%d images=%d\n",
			r.ID, r.Finished.Local().Format("2006-01-02 15:04:05"), filepath.Base(r.Master),
			r.Steps, r.BackgroundSteps, r.BlackSteps, len(r.Images))
	}
	master := runs[0].Master
	if !filepath.IsAbs(master) {
		master = filepath.Join(dir, master)
	}
	if bak, err := storage.LatestBackup(master); err == nil && bak != "" {
		_, _ = fmt.Fprintf(out, "Latest backup: %s\n", bak)
	}
	return 0
}

// fail logs err and prints "Error: [<file>: ]<kind>: <detail>".
func fail(out io.Writer, err error) int {
	applog.WithComponent("cli").Error("command failed", slog.String("kind", domain.Kind(err)), slog.Any("err", err))
	var ie *canvas.ImageError
	if errors.As(err, &ie) {
		_, _ = fmt.Fprintf(out, "Error: %s: %s: %v\n", ie.File, domain.Kind(err), ie.Err)
	} else {
		_, _ = fmt.Fprintf(out, "Error: %s: %v\n", domain.Kind(err), err)
	}
	return 1
}
