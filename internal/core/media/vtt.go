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
	"bufio"
	"regexp"
	"strings"
)

var (
	vttTiming = regexp.MustCompile(`^\s*(\d{2}:)?\d{2}:\d{2}[.,]\d{3}\s+-->\s+`)
	vttTag    = regexp.MustCompile(`<[^>]+>`)
)

// ParseVTT extracts the cue text of a WebVTT document and joins the lines
// with single spaces. Headers, NOTE/STYLE/REGION blocks, cue identifiers,
// timing lines and inline tags are dropped. Consecutive duplicate lines,
// common in auto-generated captions, are kept once.
func ParseVTT(doc string) string {
	scanner := bufio.NewScanner(strings.NewReader(doc))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	skipBlock := false
	inCue := false
	last := ""
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if len(line) == 0 {
			skipBlock = false
			inCue = false
			continue
		}
		if skipBlock {
			continue
		}
		switch {
		case strings.HasPrefix(line, "WEBVTT"),
			strings.HasPrefix(line, "NOTE"),
			strings.HasPrefix(line, "STYLE"),
			strings.HasPrefix(line, "REGION"):
			skipBlock = true
			continue
		case vttTiming.MatchString(line):
			inCue = true
			continue
		}
		if !inCue {
			// Cue identifiers precede the timing line.
			continue
		}
		text := strings.TrimSpace(vttTag.ReplaceAllString(line, ""))
		if len(text) == 0 || text == last {
			continue
		}
		lines = append(lines, text)
		last = text
	}
	return strings.Join(lines, " ")
}
