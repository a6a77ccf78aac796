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
	"log/slog"

	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// VariationRunner executes a generation request.
type VariationRunner interface {
	Generate(ctx goctx.Context, req model.GenerationRequest) (*model.AggregateResult, error)
}

// VariationGenerator runs the request and stores the *model.AggregateResult.
// Failed attempts are part of the result, not chain errors: the request has been
// served once every attempt is recorded.
type VariationGenerator struct {
	cor.BaseCommand
	runner VariationRunner
}

func NewVariationGenerator(name string, runner VariationRunner) *VariationGenerator {
	return &VariationGenerator{BaseCommand: *cor.NewBaseCommand(name), runner: runner}
}

func (c *VariationGenerator) Execute(context cor.Context) {
	req, ok := cor.Value[*model.GenerationRequest](context, c.GetInputParam())
	if !ok {
		c.Fail(context, errors.New("missing generation request"))
		return
	}
	result, err := c.runner.Generate(context.GetContext(), *req)
	if err != nil {
		c.Fail(context, err)
		return
	}
	if !result.Success {
		slog.WarnContext(context.GetContext(), "generation finished with failed attempts",
			"tenant_id", req.TenantID, "creative_id", req.CreativeID, "backend", result.Backend)
	}
	c.Succeed(context, result)
}
