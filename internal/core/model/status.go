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
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change would move a log
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// LogStatus is the lifecycle state of a recipe log or manual recipe log.
type LogStatus string

const (
	StatusProcessing       LogStatus = "processing"
	StatusTranscribed      LogStatus = "transcribed"
	StatusAnalyzed         LogStatus = "analyzed"
	StatusInitialGenerated LogStatus = "initial_generated"
	StatusUpdated          LogStatus = "updated"
	StatusCompleted        LogStatus = "completed"
	StatusError            LogStatus = "error"
)

// Ingestion: processing -> transcribed -> analyzed -> completed.
// Manual: processing -> initial_generated -> updated* -> completed.
var lifecycles = []map[LogStatus]int{
	{StatusProcessing: 0, StatusTranscribed: 1, StatusAnalyzed: 2, StatusCompleted: 3},
	{StatusProcessing: 0, StatusInitialGenerated: 1, StatusUpdated: 2, StatusCompleted: 3},
}

// IsTerminal reports whether no further transition is allowed.
func (s LogStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanAdvanceTo reports whether a log in state s may move to next. Error is
// reachable from every non-terminal state and updated may repeat.
func (s LogStatus) CanAdvanceTo(next LogStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusError {
		return true
	}
	if s == StatusUpdated && next == StatusUpdated {
		return true
	}
	for _, order := range lifecycles {
		from, okFrom := order[s]
		to, okTo := order[next]
		if okFrom && okTo && to > from {
			return true
		}
	}
	return false
}

// Transition returns next when the move is allowed.
func (s LogStatus) Transition(next LogStatus) (LogStatus, error) {
	if !s.CanAdvanceTo(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}
