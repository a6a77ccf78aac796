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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

const submissionParam = "__GENERATION_SUBMISSION__"

// GetSubmissionParameterName is the key the decoded submission is kept under for
// the rest of the chain.
func GetSubmissionParameterName() string {
	return submissionParam
}

// GenerationRequestReader decodes the raw intake message into a
// *model.GenerationSubmission. Malformed messages, bad ids and out of range
// variation counts are validation failures.
type GenerationRequestReader struct {
	cor.BaseCommand
	maxVariations int
}

func NewGenerationRequestReader(name string, maxVariations int) *GenerationRequestReader {
	return &GenerationRequestReader{BaseCommand: *cor.NewBaseCommand(name), maxVariations: maxVariations}
}

func (c *GenerationRequestReader) Execute(context cor.Context) {
	in, ok := cor.Value[string](context, c.GetInputParam())
	if !ok || strings.TrimSpace(in) == "" {
		c.Fail(context, model.NewValidationError("message", "empty message"))
		return
	}

	var out model.GenerationSubmission
	if err := json.Unmarshal([]byte(in), &out); err != nil {
		c.Fail(context, model.NewValidationError("message", fmt.Sprintf("not a generation request: %v", err)))
		return
	}
	if err := out.Validate(c.maxVariations); err != nil {
		c.Fail(context, err)
		return
	}

	context.Add(GetSubmissionParameterName(), &out)
	c.Succeed(context, &out)
}
