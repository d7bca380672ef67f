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
	// QryRunSummary counts finished ingestion runs per final status.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the runs table.
	QryRunSummary = "SELECT status, COUNT(*) AS runs, AVG(duration_seconds) AS avg_duration_seconds, SUM(failed_steps) AS failed_steps FROM `%s` GROUP BY status ORDER BY status"
)
