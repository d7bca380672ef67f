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
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

const maxStemLength = 64

// SanitizeFilename lowercases name and collapses every run of characters
// outside [a-z0-9] to a single underscore. An empty result becomes "video".
func SanitizeFilename(name string) string {
	out := strings.Trim(nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if len(out) == 0 {
		return "video"
	}
	return out
}

// ShortID returns eight random hex characters.
func ShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ObjectName builds a collision-resistant object name such as
// "videos/garlic_butter_pasta_1f2e3d4c.mp4".
// Long titles are cut to maxStemLength characters.
func ObjectName(folder string, title string, ext string) string {
	stem := SanitizeFilename(title)
	if len(stem) > maxStemLength {
		stem = strings.TrimRight(stem[:maxStemLength], "_")
	}
	return fmt.Sprintf("%s/%s_%s.%s", folder, stem, ShortID(), strings.TrimPrefix(ext, "."))
}

// ScratchDir is a per-operation working directory. Remove is safe to defer
// on every exit path and to call more than once.
type ScratchDir struct {
	Path string
}

// NewScratchDir creates a directory under the system temp dir.
func NewScratchDir(prefix string) (*ScratchDir, error) {
	dir, err := os.MkdirTemp("", prefix+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &ScratchDir{Path: dir}, nil
}

func (s *ScratchDir) Remove() error {
	if s == nil || len(s.Path) == 0 {
		return nil
	}
	return os.RemoveAll(s.Path)
}
