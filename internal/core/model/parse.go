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

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyModelOutput is returned when a model response has no usable text.
var ErrEmptyModelOutput = errors.New("model returned no content")

const codeFence = "```"

// CleanModelOutput unwraps JSON that a model returned as prose. The first
// markdown code fence (with or without a "json" tag) anywhere in the text
// wins; an unclosed opening fence or a lone closing fence is dropped. Quotes
// around the payload are removed. Text without a fence is only trimmed.
func CleanModelOutput(text string) string {
	out := strings.TrimSpace(text)
	if start := strings.Index(out, codeFence); start >= 0 {
		body := out[start+len(codeFence):]
		switch end := strings.Index(body, codeFence); {
		case end >= 0:
			out = fenceBody(body[:end])
		case start == 0:
			out = fenceBody(body)
		default:
			out = out[:start]
		}
	}
	out = strings.Trim(strings.TrimSpace(out), "\"")
	return strings.TrimSpace(out)
}

// fenceBody strips the language tag from the inside of a code fence.
func fenceBody(body string) string {
	out := strings.TrimSpace(body)
	if len(out) >= 4 && strings.EqualFold(out[:4], "json") {
		out = out[4:]
	}
	return strings.TrimSpace(out)
}

// DecodeModelJSON cleans text with CleanModelOutput and decodes it into v.
func DecodeModelJSON(text string, v any) error {
	cleaned := CleanModelOutput(text)
	if len(cleaned) == 0 {
		return ErrEmptyModelOutput
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	return nil
}

// LooseString accepts a JSON string or number. Models are inconsistent about
// quoting fields such as "servings".
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = LooseString(data)
	return nil
}
