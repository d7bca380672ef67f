// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrToolNotFound is returned when an external binary is not on PATH.
var ErrToolNotFound = errors.New("external tool not found")

// ToolStatus reports whether a binary could be resolved.
type ToolStatus struct {
	Name  string `json:"name"`
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
}

// LookupTool resolves name on PATH.
func LookupTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return path, nil
}

// DependencyStatus reports the availability of each named binary.
func DependencyStatus(names ...string) []ToolStatus {
	out := make([]ToolStatus, 0, len(names))
	for _, n := range names {
		status := ToolStatus{Name: n}
		if path, err := exec.LookPath(n); err == nil {
			status.Found = true
			status.Path = path
		}
		out = append(out, status)
	}
	return out
}

// run executes a binary and returns its stdout. stderr is attached to the
// error so tool failures are diagnosable from the processing log.
func run(ctx context.Context, bin string, args ...string) ([]byte, []byte, error) {
	if _, err := LookupTool(bin); err != nil {
		return nil, nil, err
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, stderr.Bytes(), fmt.Errorf("%s: %w", bin, ctxErr)
		}
		return nil, stderr.Bytes(), fmt.Errorf("%s failed: %w: %s", bin, err, lastLines(stderr.String(), 5))
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
