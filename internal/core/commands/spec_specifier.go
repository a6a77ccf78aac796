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

package commands

import (
	goctx "context"
	"errors"

	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// SpecSource turns prompts and feedback into generation specs.
type SpecSource interface {
	Quantify(ctx goctx.Context, req model.QuantifyRequest) (model.GenerationSpec, error)
	RegenerateWithFeedback(ctx goctx.Context, prior model.GenerationSpec, feedback string) model.GenerationSpec
}

// ResolveSpec picks the spec of a submission: an explicit spec, a refined prior
// spec, or a quantified prompt, in that order.
func ResolveSpec(ctx goctx.Context, source SpecSource, sub *model.GenerationSubmission) (model.GenerationSpec, error) {
	switch {
	case sub.Spec != nil:
		spec := sub.Spec.Clone()
		return spec, spec.Validate()
	case sub.NeedsRegeneration():
		if err := sub.PriorSpec.Validate(); err != nil {
			return model.GenerationSpec{}, err
		}
		return source.RegenerateWithFeedback(ctx, *sub.PriorSpec, sub.Feedback), nil
	default:
		return source.Quantify(ctx, sub.QuantifyRequest())
	}
}

// SpecSpecifier resolves the spec of the submission and emits the
// *model.GenerationRequest for the orchestrator.
type SpecSpecifier struct {
	cor.BaseCommand
	source SpecSource
}

func NewSpecSpecifier(name string, source SpecSource) *SpecSpecifier {
	return &SpecSpecifier{BaseCommand: *cor.NewBaseCommand(name), source: source}
}

func (c *SpecSpecifier) Execute(context cor.Context) {
	sub, ok := cor.Value[*model.GenerationSubmission](context, c.GetInputParam())
	if !ok {
		c.Fail(context, errors.New("missing generation submission"))
		return
	}
	spec, err := ResolveSpec(context.GetContext(), c.source, sub)
	if err != nil {
		c.Fail(context, err)
		return
	}
	req := sub.Request(spec)
	c.Succeed(context, &req)
}
