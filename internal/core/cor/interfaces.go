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

// Package cor implements the Chain of Responsibility primitives used by the
// recipe pipelines. A Chain runs Commands in order against a shared Context;
// each Command reads its input from the Context, does one unit of work and
// writes its result back for the next Command.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Keys used by BaseChain to pipe the output of one command into the next.
const (
	// CtxIn holds the primary input of the command about to run.
	CtxIn = "__IN__"
	// CtxOut is where a command leaves its primary output. BaseChain moves it
	// to CtxIn after the command returns.
	CtxOut = "__OUT__"
)

// Context is the property bag shared by every command of one workflow run.
// Implementations must be safe for concurrent use because fan-out commands
// report from several goroutines.
type Context interface {
	// SetContext replaces the Go context carried by the bag (spans, deadlines).
	SetContext(context context.Context)

	// GetContext returns the Go context carried by the bag.
	GetContext() context.Context

	// Add stores a value under key and returns the bag for chaining.
	Add(key string, value interface{}) Context

	// AddError records a fatal error for the named command.
	AddError(key string, err error)

	// GetErrors returns a copy of the recorded errors keyed by command name.
	GetErrors() map[string]error

	// Get returns the value stored under key, or nil.
	Get(key string) interface{}

	// Remove deletes key from the bag.
	Remove(key string)

	// HasErrors reports whether any command recorded a fatal error.
	HasErrors() bool

	// AddTempFile registers a file to delete on Close.
	AddTempFile(file string)

	// GetTempFiles returns the registered temporary files.
	GetTempFiles() []string

	// AddTempDir registers a scratch directory to delete recursively on Close.
	AddTempDir(dir string)

	// GetTempDirs returns the registered scratch directories.
	GetTempDirs() []string

	// Close removes every registered temporary file and scratch directory.
	Close()
}

// Executable is anything that can run against a Context.
type Executable interface {
	Execute(context Context)
}

// Command is one atomic step of a workflow.
type Command interface {
	Executable

	// GetName identifies the command in traces, metrics and error maps.
	GetName() string

	// GetInputParam is the Context key the command reads its input from.
	GetInputParam() string

	// GetOutputParam is the Context key the command writes its output to.
	GetOutputParam() string

	// IsExecutable reports whether the Context holds what the command needs.
	// A chain skips commands that are not executable.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is a Command composed of other Commands.
type Chain interface {
	Command

	// ContinueOnFailure controls whether commands still run after an earlier
	// command recorded an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the execution order.
	AddCommand(command Command) Chain
}
