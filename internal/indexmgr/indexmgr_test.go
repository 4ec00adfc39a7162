package indexmgr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"seqmap-core/index"
	"seqmap/internal/config"
)

const ref = ">chr1 test\nACGTTGCATGTCGCATGATGCATGAGAGCTACGATCGATCGGCTAGCTAGGCTTACG\n>chr2\nTTGACGATCGATGCTAGCTACGATCGACGTAGCTAGCTACGATGC\n"

func params(t *testing.T) config.Params {
	t.Helper()
	dir := t.TempDir()
	p := config.Defaults()
	p.Reference = filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(p.Reference, []byte(ref), 0o644))
	p.IndexPath = filepath.Join(dir, "ref.idx")
	return p
}

func TestBuildGeneratesThenLoads(t *testing.T) {
	p := params(t)
	m := New(zaptest.NewLogger(t))
	require.NoError(t, m.Build(p))
	require.Len(t, m.Indexes(), 1)
	require.FileExists(t, p.IndexPath)
	require.NoFileExists(t, p.SecondaryIndexPath())
	require.Equal(t, 2, m.Primary().NumSequences())

	fi, err := os.Stat(p.IndexPath)
	require.NoError(t, err)
	require.NoError(t, m.Build(p))
	fi2, err := os.Stat(p.IndexPath)
	require.NoError(t, err)
	require.Equal(t, fi.ModTime(), fi2.ModTime(), "existing blob reused")
}

func TestBuildSensitiveAddsSecondary(t *testing.T) {
	p := params(t)
	p.Sensitive = true
	m := New(nil)
	require.NoError(t, m.Build(p))
	require.Len(t, m.Indexes(), 2)
	require.Equal(t, index.ShapeSecondary, m.Indexes()[1].Shape().String())
	require.FileExists(t, p.IndexPath+"sec")
}

func TestRebuildOverwrites(t *testing.T) {
	p := params(t)
	m := New(nil)
	require.NoError(t, m.Build(p))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p.IndexPath, old, old))

	p.RebuildIndex = true
	require.NoError(t, m.Build(p))
	fi, err := os.Stat(p.IndexPath)
	require.NoError(t, err)
	require.True(t, fi.ModTime().After(old))
}

func TestBuildFailureLeavesEmpty(t *testing.T) {
	p := params(t)
	m := New(nil)
	require.NoError(t, m.Build(p))

	p.Reference = filepath.Join(t.TempDir(), "missing.fa")
	p.IndexPath = filepath.Join(t.TempDir(), "other.idx")
	require.Error(t, m.Build(p))
	require.Empty(t, m.Indexes())
	require.Nil(t, m.Primary())
}

func TestBuildNeedsReference(t *testing.T) {
	require.Error(t, New(nil).Build(config.Defaults()))
}

func TestBuildFailsOnUnreadableBlob(t *testing.T) {
	p := params(t)
	garbage := []byte("operator data, not an index")
	require.NoError(t, os.WriteFile(p.IndexPath, garbage, 0o644))

	m := New(zaptest.NewLogger(t))
	err := m.Build(p)
	require.ErrorIs(t, err, index.ErrCorrupt)
	require.Empty(t, m.Indexes())
	raw, err := os.ReadFile(p.IndexPath)
	require.NoError(t, err)
	require.Equal(t, garbage, raw)

	p.RebuildIndex = true
	require.NoError(t, m.Build(p))
	require.Len(t, m.Indexes(), 1)
}
