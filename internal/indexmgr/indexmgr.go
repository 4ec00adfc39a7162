// Package indexmgr owns the indexes of one mapping run: it loads or builds
// the primary index and, in sensitive mode, the secondary one.
package indexmgr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"seqmap-core/index"
	"seqmap/internal/config"
)

// Manager holds the indexes built by the last successful Build. Indexes are
// read-only once built and may be shared by any number of goroutines.
type Manager struct {
	log     *zap.Logger
	indexes []*index.Index
}

// New returns an empty Manager.
func New(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log.Named("index")}
}

type spec struct {
	role  string
	shape string
	path  string
}

func specs(p config.Params) []spec {
	out := []spec{{"primary", index.ShapePrimary, p.PrimaryIndexPath()}}
	if p.Sensitive {
		out = append(out, spec{"secondary", index.ShapeSecondary, p.SecondaryIndexPath()})
	}
	return out
}

// Build discards held indexes and makes the ones p asks for. Without
// rebuild (or index-only) it loads each blob, generating and storing it
// only when no file is present; a present blob that fails to load is an
// error. With either flag it regenerates and overwrites every blob. Any
// failure leaves the Manager empty.
func (m *Manager) Build(p config.Params) error {
	m.Discard()
	if p.Reference == "" {
		return errors.New("no reference given")
	}
	regenerate := p.RebuildIndex || p.IndexOnly

	var built []*index.Index
	for _, s := range specs(p) {
		log := m.log.With(zap.String("role", s.role), zap.String("path", s.path))
		if fi, err := os.Stat(s.path); err == nil {
			log.Info("index found", zap.String("size", humanize.IBytes(uint64(fi.Size()))))
		} else if errors.Is(err, fs.ErrNotExist) {
			log.Info("index not found")
		}

		shape := index.MustShape(s.shape)
		start := time.Now()
		var (
			ix        *index.Index
			generated = true
			err       error
		)
		if regenerate {
			ix, err = index.Generate(p.Reference, shape)
			if err == nil {
				err = ix.Store(s.path)
			}
		} else {
			ix, generated, err = index.LoadOrGenerate(p.Reference, s.path, shape)
		}
		if err != nil {
			return fmt.Errorf("%s index: %w", s.role, err)
		}

		msg := "index loaded"
		if generated {
			msg = "index generated"
		}
		log.Info(msg,
			zap.Int("sequences", ix.NumSequences()),
			zap.String("reference_length", humanize.Comma(ix.DataLengthForward())),
			zap.Int("seeds", ix.NumKeys()),
			zap.Duration("elapsed", time.Since(start)))
		built = append(built, ix)
	}
	m.indexes = built
	return nil
}

// Discard releases every held index.
func (m *Manager) Discard() { m.indexes = nil }

// Indexes returns the held indexes, primary first.
func (m *Manager) Indexes() []*index.Index { return m.indexes }

// Primary returns the primary index, or nil before a successful Build.
func (m *Manager) Primary() *index.Index {
	if len(m.indexes) == 0 {
		return nil
	}
	return m.indexes[0]
}
