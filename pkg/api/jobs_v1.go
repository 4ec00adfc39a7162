// pkg/api/jobs_v1.go
package api

// JobStatsV1 is the stable JSONL schema for one processed query file.
// Keep fields, names, and types stable. Add new fields only with ",omitempty".
type JobStatsV1 struct {
	JobID      string `json:"job_id"`
	File       string `json:"file"`
	Output     string `json:"output"`
	Status     string `json:"status"` // "done" | "failed" | "skipped"
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"` // RFC 3339, UTC
	FinishedAt string `json:"finished_at"`
	ElapsedMS  int64  `json:"elapsed_ms"`

	Batches   int   `json:"batches"`
	Reads     int64 `json:"reads"`
	Bases     int64 `json:"bases"`
	Mapped    int64 `json:"mapped"`
	Unmapped  int64 `json:"unmapped"`
	Ambiguous int64 `json:"ambiguous"`
	Errors    int64 `json:"errors"`
}
