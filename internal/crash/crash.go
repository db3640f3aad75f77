/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report and a clean exit code.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	applog "noirinator/internal/log"
	"noirinator/internal/storage"
	"noirinator/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Scope is what a crash report can tell about the interrupted run.
type Scope struct {
	Dir      string // working directory; reports go to its backups dir
	Settings string // settings file in use

	mu    sync.Mutex
	input string
}

// SetInput records the input being processed. It matches the
// canvas.Deps.OnFile callback.
func (s *Scope) SetInput(name string) {
	s.mu.Lock()
	s.input = name
	s.mu.Unlock()
}

// Input returns the last recorded input.
func (s *Scope) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Recover captures a panic, logs it with its stack, writes a crash report
// and exits with status 2.
//
// Usage: defer crash.Recover(scope)
func Recover(s *Scope) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, err := writeReport(s, r, stack)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		exitFn(2)
	}
}

func writeReport(s *Scope, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if s != nil && s.Dir != "" {
		dir = filepath.Join(s.Dir, storage.BackupsDirName)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Noirinator Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if s != nil {
		_, _ = fmt.Fprintf(&buf, "WorkDir: %s\n", s.Dir)
		_, _ = fmt.Fprintf(&buf, "Settings: %s\n", s.Settings)
		if in := s.Input(); in != "" {
			_, _ = fmt.Fprintf(&buf, "Input: %s\n", in)
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return path, err
	}
	return path, nil
}
