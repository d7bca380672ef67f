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

package cor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/stretchr/testify/assert"
)

// upperCommand upper-cases its string input.
type upperCommand struct {
	cor.BaseCommand
}

func (c *upperCommand) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam()).(string)
	context.Add(c.GetOutputParam(), strings.ToUpper(in))
}

// suffixCommand appends a suffix and remembers it ran.
type suffixCommand struct {
	cor.BaseCommand
	suffix string
	ran    bool
}

func (c *suffixCommand) Execute(context cor.Context) {
	c.ran = true
	in := context.Get(c.GetInputParam()).(string)
	context.Add(c.GetOutputParam(), in+c.suffix)
	context.Add("last", in+c.suffix)
}

type failingCommand struct {
	cor.BaseCommand
}

func (c *failingCommand) Execute(context cor.Context) {
	c.Fail(context, errors.New("boom"))
}

type neverExecutable struct {
	cor.BaseCommand
	ran bool
}

func (c *neverExecutable) IsExecutable(_ cor.Context) bool { return false }
func (c *neverExecutable) Execute(_ cor.Context)           { c.ran = true }

// seeded returns a suffix command that reads the "seed" key, which the chain
// never clears, instead of the piped input.
func seeded(name string, suffix string) *suffixCommand {
	out := &suffixCommand{BaseCommand: *cor.NewBaseCommand(name), suffix: suffix}
	out.InputParamName = "seed"
	return out
}

func newContext(in string) cor.Context {
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.Add(cor.CtxIn, in)
	chCtx.Add("seed", in)
	return chCtx
}

func TestChainPipesOutputToNextInput(t *testing.T) {
	last := &suffixCommand{BaseCommand: *cor.NewBaseCommand("suffix"), suffix: "!"}
	chain := cor.NewBaseChain("pipe").
		AddCommand(&upperCommand{BaseCommand: *cor.NewBaseCommand("upper")}).
		AddCommand(last)

	chCtx := newContext("salt")
	chain.Execute(chCtx)

	assert.False(t, chCtx.HasErrors())
	assert.True(t, last.ran)
	assert.Equal(t, "SALT!", chCtx.Get("last"))
	assert.Equal(t, "SALT!", chCtx.Get(cor.CtxIn))
	assert.Nil(t, chCtx.Get(cor.CtxOut))
}

func TestChainStopsAfterFailure(t *testing.T) {
	after := &suffixCommand{BaseCommand: *cor.NewBaseCommand("after"), suffix: "?"}
	chain := cor.NewBaseChain("stop").
		AddCommand(&failingCommand{BaseCommand: *cor.NewBaseCommand("fail")}).
		AddCommand(after)

	chCtx := newContext("pepper")
	chain.Execute(chCtx)

	assert.True(t, chCtx.HasErrors())
	assert.Contains(t, chCtx.GetErrors(), "fail")
	assert.False(t, after.ran)
}

func TestChainContinuesOnFailureWhenAsked(t *testing.T) {
	after := seeded("after", "?")
	chain := cor.NewBaseChain("continue").ContinueOnFailure(true).
		AddCommand(&failingCommand{BaseCommand: *cor.NewBaseCommand("fail")}).
		AddCommand(after)

	chCtx := newContext("pepper")
	chain.Execute(chCtx)

	assert.True(t, chCtx.HasErrors())
	assert.Contains(t, chCtx.GetErrors(), "fail")
	assert.True(t, after.ran)
	assert.Equal(t, "pepper?", chCtx.Get("last"))
}

func TestChainDropsInputAfterCommandWithoutOutput(t *testing.T) {
	piped := &suffixCommand{BaseCommand: *cor.NewBaseCommand("piped"), suffix: "?"}
	chain := cor.NewBaseChain("drop").ContinueOnFailure(true).
		AddCommand(&failingCommand{BaseCommand: *cor.NewBaseCommand("fail")}).
		AddCommand(piped)

	chCtx := newContext("pepper")
	chain.Execute(chCtx)

	assert.False(t, piped.ran)
	assert.Nil(t, chCtx.Get(cor.CtxIn))
}

func TestChainSkipsCommandsThatAreNotExecutable(t *testing.T) {
	skipped := &neverExecutable{BaseCommand: *cor.NewBaseCommand("skipped")}
	after := seeded("after", ".")
	chain := cor.NewBaseChain("skip").AddCommand(skipped).AddCommand(after)

	chCtx := newContext("oil")
	chain.Execute(chCtx)

	assert.False(t, skipped.ran)
	assert.True(t, after.ran)
	assert.Equal(t, "oil.", chCtx.Get("last"))
	assert.False(t, chCtx.HasErrors())
}

func TestChainRestoresParentContext(t *testing.T) {
	parent := context.WithValue(context.Background(), struct{}{}, "parent")
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(parent)
	chCtx.Add(cor.CtxIn, "x")

	cor.NewBaseChain("restore").
		AddCommand(&upperCommand{BaseCommand: *cor.NewBaseCommand("upper")}).
		Execute(chCtx)

	assert.Equal(t, parent, chCtx.GetContext())
}
