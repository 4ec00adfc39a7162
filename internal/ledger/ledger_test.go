package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"seqmap/pkg/api"
)

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	defer l.Close()
	require.True(t, l.Enabled())

	run := api.JobStatsV1{JobID: "j1", File: "a.fq", Status: StatusRunning, StartedAt: "2026-01-01T00:00:00Z"}
	require.NoError(t, l.Record(ctx, run))
	require.NoError(t, l.Record(ctx, api.JobStatsV1{JobID: "j2", File: "b.fq", Status: StatusSkipped, StartedAt: "2026-01-01T00:00:01Z"}))

	run.Status = StatusDone
	run.Reads, run.Mapped, run.Unmapped = 10, 8, 2
	run.FinishedAt = "2026-01-01T00:00:05Z"
	require.NoError(t, l.Record(ctx, run))

	jobs, err := l.Jobs(ctx, "")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, run, jobs[0])
	require.Equal(t, StatusSkipped, jobs[1].Status)

	only, err := l.Jobs(ctx, "b.fq")
	require.NoError(t, err)
	require.Len(t, only, 1)
	require.Equal(t, "j2", only[0].JobID)
}

func TestReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")
	l, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, api.JobStatsV1{JobID: "x", File: "x.fq", Status: StatusFailed, Error: "boom"}))
	require.NoError(t, l.Close())

	l, err = Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()
	jobs, err := l.Jobs(ctx, "")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "boom", jobs[0].Error)
}

func TestPathWithURIMetacharacters(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "run #1 ?x")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "jobs?v=1#a.db")

	l, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, api.JobStatsV1{JobID: "j1", File: "a.fq", Status: StatusDone}))
	require.NoError(t, l.Close())
	require.FileExists(t, path)

	l, err = Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()
	jobs, err := l.Jobs(ctx, "a.fq")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestDisabledLedger(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, "")
	require.NoError(t, err)
	require.False(t, l.Enabled())
	require.NoError(t, l.Record(ctx, api.JobStatsV1{JobID: "x"}))
	jobs, err := l.Jobs(ctx, "")
	require.NoError(t, err)
	require.Empty(t, jobs)
	require.NoError(t, l.Close())

	var nilLedger *Ledger
	require.NoError(t, nilLedger.Record(ctx, api.JobStatsV1{}))
	require.NoError(t, nilLedger.Close())
}
