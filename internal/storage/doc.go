/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements file persistence for the canvas.
// It replaces files atomically (temp file + fsync + rename) and keeps
// timestamped backups of a replaced master canvas under backups/.
// It also keeps a small SQLite run ledger at <workdir>/.noirinator/ledger.sqlite.
// The ledger is history only; nothing reads it back during a run.
package storage
