/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "noirinator/internal/log"
	"noirinator/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// LedgerDirName holds run history next to the master canvas.
	LedgerDirName  = ".noirinator"
	LedgerFileName = "ledger.sqlite"

	// schemaVersion tracks the ledger schema. Bump it together with a step in runMigrations.
	schemaVersion = 2
)

// LedgerPath returns the ledger database path for a working directory.
func LedgerPath(root string) string {
	return filepath.Join(root, LedgerDirName, LedgerFileName)
}

// ImageRecord is one processed input of a run.
type ImageRecord struct {
	File    string
	Traced  int
	Removed int
	White   int
	Black   int
}

// RunRecord describes one completed batch run.
type RunRecord struct {
	ID              int64
	Started         time.Time
	Finished        time.Time
	Master          string
	Steps           int
	BackgroundSteps int
	BlackSteps      int
	Images          []ImageRecord
}

// Ledger is the append-only run history. It is disposable: deleting the file
// loses history but never affects the master canvas.
type Ledger struct {
	db   *sql.DB
	path string
}

// OpenLedger creates or opens <root>/.noirinator/ledger.sqlite, enables WAL
// and brings the schema up to date.
func OpenLedger(root string) (*Ledger, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "ledger_open").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("ledger root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, LedgerDirName), 0o755); err != nil {
		l.Error("create ledger dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	path := LedgerPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	for _, step := range []func(context.Context, *sql.DB) error{ensureVersion, ensureLedgerSchema, runMigrations} {
		if err := step(ctx, db); err != nil {
			_ = db.Close()
			l.Error("prepare ledger failed", slog.Any("err", err))
			return nil, err
		}
	}
	l.Debug("ledger ready", slog.String("path", path))
	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file path.
func (lg *Ledger) Path() string { return lg.path }

// Close releases the database handle.
func (lg *Ledger) Close() error { return lg.db.Close() }

// SchemaVersion reports the schema version stored in the database.
func (lg *Ledger) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := lg.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// RecordRun stores a run and its images in one transaction and returns the run id.
func (lg *Ledger) RecordRun(ctx context.Context, run RunRecord) (int64, error) {
	tx, err := lg.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, master, steps, background_steps, black_steps, app) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		run.Started.UTC().Format(time.RFC3339Nano), run.Finished.UTC().Format(time.RFC3339Nano),
		run.Master, run.Steps, run.BackgroundSteps, run.BlackSteps, version.String())
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("run id: %w", err)
	}
	for i, img := range run.Images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO images (run_id, seq, file, traced, removed, white, black) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			id, i, img.File, img.Traced, img.Removed, img.White, img.Black); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert image %s: %w", img.File, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// Runs returns up to limit runs, newest first, with their images in processing order.
// A non-positive limit returns all runs.
func (lg *Ledger) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	q := `SELECT id, started_at, finished_at, master, steps, background_steps, black_steps FROM runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := lg.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	out, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	for i := range out {
		imgs, err := lg.images(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Images = imgs
	}
	return out, nil
}

// runRows is the part of *sql.Rows that scanRuns reads.
type runRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func scanRuns(rows runRows) ([]RunRecord, error) {
	defer func() { _ = rows.Close() }()
	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Master, &r.Steps, &r.BackgroundSteps, &r.BlackSteps); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	return out, nil
}

func (lg *Ledger) images(ctx context.Context, runID int64) ([]ImageRecord, error) {
	rows, err := lg.db.QueryContext(ctx,
		`SELECT file, traced, removed, white, black FROM images WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()
	var out []ImageRecord
	for rows.Next() {
		var im ImageRecord
		if err := rows.Scan(&im.File, &im.Traced, &im.Removed, &im.White, &im.Black); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

func ensureVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh databases start at 1 and migrate forward like old ones
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureLedgerSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id               INTEGER PRIMARY KEY,
			started_at       TEXT    NOT NULL,
			finished_at      TEXT    NOT NULL,
			master           TEXT    NOT NULL,
			steps            INTEGER NOT NULL,
			background_steps INTEGER NOT NULL,
			black_steps      INTEGER NOT NULL,
			app              TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS images (
			run_id  INTEGER NOT NULL,
			seq     INTEGER NOT NULL,
			file    TEXT    NOT NULL,
			traced  INTEGER NOT NULL,
			removed INTEGER NOT NULL,
			white   INTEGER NOT NULL,
			black   INTEGER NOT NULL,
			PRIMARY KEY(run_id, seq),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_images_file ON images(file);`,
				`CREATE INDEX IF NOT EXISTS idx_runs_master ON runs(master);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}
