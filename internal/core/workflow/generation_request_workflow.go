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

package workflow

import (
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
)

// GenerationRequestWorkflow serves generation requests arriving on the intake
// subscription: read the message, resolve the spec, then run the variations.
type GenerationRequestWorkflow struct {
	cor.BaseCommand
	specs         commands.SpecSource
	runner        commands.VariationRunner
	maxVariations int
	chain         cor.Chain
}

// NewGenerationRequestWorkflow builds the intake chain. Messages asking for more
// than maxVariations are rejected before the spec is resolved.
func NewGenerationRequestWorkflow(specs commands.SpecSource, runner commands.VariationRunner, maxVariations int) *GenerationRequestWorkflow {
	out := &GenerationRequestWorkflow{
		BaseCommand:   *cor.NewBaseCommand("generation-request-workflow"),
		specs:         specs,
		runner:        runner,
		maxVariations: maxVariations,
	}
	out.initializeChain()
	return out
}

func (w *GenerationRequestWorkflow) IsExecutable(context cor.Context) bool {
	return w.chain.IsExecutable(context)
}

func (w *GenerationRequestWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *GenerationRequestWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewGenerationRequestReader("generation-request-reader", w.maxVariations))
	out.AddCommand(commands.NewSpecSpecifier("spec-specifier", w.specs))
	out.AddCommand(commands.NewVariationGenerator("variation-generator", w.runner))
	w.chain = out
}
