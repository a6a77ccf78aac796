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

package services

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"google.golang.org/api/iterator"
)

const DefaultAttemptListLimit = 100

// BackendStats is one row of QryAttemptStats.
type BackendStats struct {
	Backend   string `json:"backend" bigquery:"backend"`
	Attempts  int64  `json:"attempts" bigquery:"attempts"`
	Succeeded int64  `json:"succeeded" bigquery:"succeeded"`
	Persisted int64  `json:"persisted" bigquery:"persisted"`
}

// AttemptLedger stores one BigQuery row per generation attempt.
type AttemptLedger struct {
	client  *bigquery.Client
	dataset string
	table   string
}

func NewAttemptLedger(client *bigquery.Client, dataset, table string) *AttemptLedger {
	return &AttemptLedger{client: client, dataset: dataset, table: table}
}

// GetFQN returns project.dataset.table for use in standard SQL.
func (l *AttemptLedger) GetFQN() string {
	fqn := l.client.Dataset(l.dataset).Table(l.table).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", 1)
}

func (l *AttemptLedger) Record(ctx context.Context, rec model.AttemptRecord) error {
	inserter := l.client.Dataset(l.dataset).Table(l.table).Inserter()
	if err := inserter.Put(ctx, &rec); err != nil {
		return fmt.Errorf("bigquery insert failed for attempt %s: %w", rec.AttemptID, err)
	}
	return nil
}

// ListAttempts returns the attempts of one creative, newest first.
func (l *AttemptLedger) ListAttempts(ctx context.Context, tenant, creative string, limit int) ([]model.AttemptRecord, error) {
	if limit <= 0 {
		limit = DefaultAttemptListLimit
	}
	q := l.client.Query(fmt.Sprintf(QryAttemptsForCreative, l.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenant},
		{Name: "creative_id", Value: creative},
		{Name: "limit", Value: limit},
	}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.AttemptRecord, 0)
	for {
		var rec model.AttemptRecord
		err := itr.Next(&rec)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Stats aggregates the ledger per backend.
func (l *AttemptLedger) Stats(ctx context.Context) ([]BackendStats, error) {
	itr, err := l.client.Query(fmt.Sprintf(QryAttemptStats, l.GetFQN())).Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BackendStats, 0)
	for {
		var row BackendStats
		err := itr.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}
