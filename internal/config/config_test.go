package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEmptyPath(t *testing.T) {
	p, err := LoadFrom("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), p)
}

func TestLoadFromOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reference: ref.fa
index: ref.idx
sensitive: true
threads: 6
max_hits: 0
quiet_period: 500ms
suffix: .fastq
`), 0o644))

	p, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, "ref.fa", p.Reference)
	require.True(t, p.Sensitive)
	require.Equal(t, 6, p.Threads)
	require.Equal(t, int64(0), p.MaxHits)
	require.Equal(t, 500*time.Millisecond, p.QuietPeriod)
	require.Equal(t, ".fastq", p.Suffix)
	require.Equal(t, int64(1024), p.BatchMB, "unset keys keep defaults")
	require.Equal(t, "ref.idxsec", p.SecondaryIndexPath())
}

func TestLoadFromRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("refrence: typo.fa\n"), 0o644))
	_, err := LoadFrom(path)
	require.Error(t, err)
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
}

func TestLoadFromEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	p, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, Defaults(), p)
}

func TestSaveRoundTrip(t *testing.T) {
	p := Defaults()
	p.Reference = "x.fa"
	p.Ordered = true
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, SaveTo(p, path))
	got, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestCloneIsIndependent(t *testing.T) {
	p := Defaults()
	c := p.Clone()
	c.MaxRegions = 42
	require.Equal(t, int64(0), p.MaxRegions)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Defaults().Validate())
	for name, mut := range map[string]func(*Params){
		"threads":  func(p *Params) { p.Threads = -1 },
		"votes":    func(p *Params) { p.MinVotes = -1 },
		"sam":      func(p *Params) { p.SAMVerbosity = -2 },
		"backend":  func(p *Params) { p.WatchBackend = "poll" },
		"logfmt":   func(p *Params) { p.LogFormat = "xml" },
		"quietdur": func(p *Params) { p.QuietPeriod = -time.Second },
	} {
		p := Defaults()
		mut(&p)
		require.Error(t, p.Validate(), name)
	}
}

func TestIndexPaths(t *testing.T) {
	p := Defaults()
	p.Reference = "/data/hg.fa"
	require.Equal(t, "/data/hg.fa.idx", p.PrimaryIndexPath())
	require.Equal(t, "/data/hg.fa.idxsec", p.SecondaryIndexPath())
	p.IndexPath = "/idx/hg"
	require.Equal(t, "/idx/hgsec", p.SecondaryIndexPath())
}
