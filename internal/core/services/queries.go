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

const (
	// QryAttemptsForCreative lists the ledger rows of one creative, newest first.
	//
	// Placeholders:
	// - `%s`: the fully qualified attempts table.
	//
	// Parameters: @tenant_id, @creative_id, @limit.
	QryAttemptsForCreative = "SELECT * FROM `%s` WHERE tenant_id = @tenant_id AND creative_id = @creative_id ORDER BY started_at DESC, iteration ASC LIMIT @limit"

	// QryAttemptStats aggregates success counts per backend for the dashboard.
	QryAttemptStats = "SELECT backend, COUNT(*) AS attempts, COUNTIF(success) AS succeeded, COUNTIF(persisted_url != '') AS persisted FROM `%s` GROUP BY backend ORDER BY backend"
)
