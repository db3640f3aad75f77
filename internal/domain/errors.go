/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain holds the error taxonomy shared by every pipeline stage.
// Stages wrap one of the sentinels below with fmt.Errorf("...: %w", ...) so
// callers can classify a failure with errors.Is or Kind.
package domain

import "errors"

var (
	ErrIO                = errors.New("io error")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTraceFailure      = errors.New("trace failure")
	ErrMalformedDocument = errors.New("malformed document")
	ErrConfig            = errors.New("config error")
	ErrInvalidParameters = errors.New("invalid parameters")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrConfig, "ConfigError"},
	{ErrInvalidParameters, "InvalidParameters"},
	{ErrUnsupportedFormat, "UnsupportedFormat"},
	{ErrTraceFailure, "TraceFailure"},
	{ErrMalformedDocument, "MalformedDocument"},
	{ErrIO, "IOError"},
}

// Kind names the taxonomy entry err belongs to, or "Error" when it matches none.
// When several sentinels are wrapped, the more specific kind wins over ErrIO.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Error"
}
