/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sub", "master.svg")
	if err := WriteFileAtomic(p, []byte("one")); err != nil {
		t.Fatalf("WriteFileAtomic error: %v", err)
	}
	if err := WriteFileAtomic(p, []byte("two")); err != nil {
		t.Fatalf("WriteFileAtomic replace error: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "two" {
		t.Fatalf("content = %q, want %q", b, "two")
	}
	ents, _ := os.ReadDir(filepath.Dir(p))
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestBackupFileMissingSourceIsNoop(t *testing.T) {
	dir := t.TempDir()
	got, err := BackupFile(filepath.Join(dir, "master.svg"))
	if err != nil {
		t.Fatalf("BackupFile error: %v", err)
	}
	if got != "" {
		t.Fatalf("backup path = %q, want empty", got)
	}
	if _, err := os.Stat(filepath.Join(dir, BackupsDirName)); !os.IsNotExist(err) {
		t.Fatalf("backups dir should not be created")
	}
}

func TestBackupFileCopiesContent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "master.svg")
	if err := os.WriteFile(p, []byte("<svg/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	bak, err := BackupFile(p)
	if err != nil {
		t.Fatalf("BackupFile error: %v", err)
	}
	if filepath.Dir(bak) != filepath.Join(dir, BackupsDirName) {
		t.Fatalf("backup dir = %s", filepath.Dir(bak))
	}
	if !strings.HasPrefix(filepath.Base(bak), "master.svg.") || !strings.HasSuffix(bak, ".bak") {
		t.Fatalf("unexpected backup name %s", bak)
	}
	b, err := os.ReadFile(bak)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(b) != "<svg/>" {
		t.Fatalf("backup content = %q", b)
	}
	latest, err := LatestBackup(p)
	if err != nil {
		t.Fatalf("LatestBackup error: %v", err)
	}
	if latest != bak {
		t.Fatalf("LatestBackup = %s, want %s", latest, bak)
	}
}

func TestLatestBackupPicksNewest(t *testing.T) {
	dir := t.TempDir()
	bdir := filepath.Join(dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{
		"master.svg.20250101-100000.000.bak",
		"master.svg.20250301-100000.000.bak",
		"other.svg.20260101-100000.000.bak",
		"master.svg.20250201-100000.000.bak",
	} {
		if err := os.WriteFile(filepath.Join(bdir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := LatestBackup(filepath.Join(dir, "master.svg"))
	if err != nil {
		t.Fatalf("LatestBackup error: %v", err)
	}
	if filepath.Base(got) != "master.svg.20250301-100000.000.bak" {
		t.Fatalf("LatestBackup = %s", got)
	}
}
