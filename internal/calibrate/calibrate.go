// Package calibrate derives search limits from the size and repetitiveness
// of the indexed reference.
package calibrate

import (
	"math"

	"go.uber.org/zap"

	"seqmap/internal/config"
)

const (
	// SmallGenomeThreshold is the forward length below which the fixed
	// region ceiling applies.
	SmallGenomeThreshold = 2_000_000
	// SmallGenomeRegions is the region ceiling for small references.
	SmallGenomeRegions = 500
	// BaselineRegions scales the logarithmic ceiling for larger references.
	BaselineRegions = 1000
	// BaselineLength is the reference length at which log10 scaling is zero.
	BaselineLength = 1_000_000
	// CutoffDivisor derives the region-reduction cutoff from the ceiling.
	CutoffDivisor = 5
	// HitPercentile is the seed-frequency quantile used for the hit ceiling.
	HitPercentile = 0.9999
)

// Corpus is what calibration needs from the primary index.
type Corpus interface {
	DataLengthForward() int64
	PercentileHits(p float64) (value, max int64)
}

// RegionCeiling returns the automatic region ceiling for a reference of
// forward length fwdLen.
func RegionCeiling(fwdLen int64) int64 {
	if fwdLen < SmallGenomeThreshold {
		return SmallGenomeRegions
	}
	return int64(BaselineRegions * math.Log10(float64(fwdLen)/BaselineLength))
}

// Apply fills unset limits in p from primary. Values that are already set
// are kept, so applying twice changes nothing.
func Apply(p *config.Params, primary Corpus, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	fwdLen := primary.DataLengthForward()

	if p.MaxRegions == 0 {
		p.MaxRegions = RegionCeiling(fwdLen)
		log.Info("region ceiling calibrated",
			zap.Int64("reference_length", fwdLen),
			zap.Int64("max_regions", p.MaxRegions))
	}

	if p.MaxRegionsCutoff == 0 {
		if p.MaxRegions < 0 {
			p.MaxRegionsCutoff = p.MaxRegions
		} else {
			p.MaxRegionsCutoff = p.MaxRegions / CutoffDivisor
		}
		log.Debug("region cutoff", zap.Int64("max_regions_cutoff", p.MaxRegionsCutoff))
	}

	switch {
	case p.MaxHits < 0:
		v, max := primary.PercentileHits(HitPercentile)
		p.MaxHits = v
		log.Info("seed hit ceiling calibrated",
			zap.Float64("percentile", HitPercentile),
			zap.Int64("max_hits", v),
			zap.Int64("most_frequent_seed", max))
	case p.MaxHits == 0:
		log.Info("seed hit ceiling disabled")
	}
}
