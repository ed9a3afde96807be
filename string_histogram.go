package simpledb

import (
	boom "github.com/tylertreat/BoomFilters"
)

// StringHistogram estimates selectivities over a single string field.
// Rather than bucketing the string space, it keeps a count-min sketch of
// the values seen, which answers equality estimates in constant space.
type StringHistogram struct {
	cms   *boom.CountMinSketch
	total int64
}

// NewStringHistogram creates an empty string histogram.
func NewStringHistogram() (*StringHistogram, error) {
	return &StringHistogram{cms: boom.NewCountMinSketch(0.001, 0.999)}, nil
}

// AddValue records a string.
func (h *StringHistogram) AddValue(s string) {
	h.cms.Add([]byte(s))
	h.total++
}

// EstimateSelectivity estimates the fraction of recorded values satisfying
// "value op s".  The sketch supports equality; range operators over
// strings fall back to a neutral estimate.
func (h *StringHistogram) EstimateSelectivity(op BoolOp, s string) float64 {
	if h.total == 0 {
		return 0
	}
	eq := float64(h.cms.Count([]byte(s))) / float64(h.total)
	if eq > 1 {
		eq = 1
	}
	switch op {
	case OpEq:
		return eq
	case OpNeq:
		return 1 - eq
	default:
		return 1
	}
}
