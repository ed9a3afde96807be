package simpledb

import (
	"fmt"
	"log"
	"math"
)

// TableStats holds statistics (histograms, cardinalities) about a base
// table, used to estimate the selectivity and cost of predicates over it.

// Stats is the interface maintained for a table.
type Stats interface {
	EstimateScanCost() float64
	EstimateCardinality(selectivity float64) int
	EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error)
}

type TableStats struct {
	basePages  int
	baseTups   int
	histograms map[string]any
	tupleDesc  *TupleDesc
}

// CostPerPage is the default cost to read a page from disk.  Adjust for
// different storage devices.
const CostPerPage = 1000

// NumHistBins is the bucket count used for integer histograms.
const NumHistBins = 100

// tableMinMax scans the table once, computing per-column minimum and
// maximum for the integer fields.
func tableMinMax(tid TransactionID, dbFile DBFile) ([]int32, []int32, error) {
	td := dbFile.Descriptor()
	mins := make([]int32, len(td.Fields))
	maxs := make([]int32, len(td.Fields))
	for i := range mins {
		mins[i] = math.MaxInt32
		maxs[i] = math.MinInt32
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, nil, err
	}
	if err := iter.Open(); err != nil {
		return nil, nil, err
	}
	defer iter.Close()

	err = drain(iter, func(tup *Tuple) error {
		for i, f := range td.Fields {
			if f.Ftype != IntType {
				continue
			}
			v := tup.Fields[i].(IntField).Value
			mins[i] = min(mins[i], v)
			maxs[i] = max(maxs[i], v)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for i := range mins {
		if mins[i] > maxs[i] {
			mins[i], maxs[i] = 0, 0
		}
	}
	return mins, maxs, nil
}

// ComputeTableStats scans dbFile under a fresh transaction and builds a
// histogram per column.
func ComputeTableStats(bp *BufferPool, dbFile DBFile) (*TableStats, error) {
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		return nil, err
	}
	defer bp.CommitTransaction(tid)

	td := dbFile.Descriptor()

	mins, maxs, err := tableMinMax(tid, dbFile)
	if err != nil {
		return nil, err
	}

	hists := make(map[string]any, len(td.Fields))
	for i, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			h, err := NewIntHistogram(NumHistBins, mins[i], maxs[i])
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = h
		case StringType:
			h, err := NewStringHistogram()
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = h
		default:
			return nil, fmt.Errorf("unexpected unknown type in schema")
		}
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, err
	}
	if err := iter.Open(); err != nil {
		return nil, err
	}
	defer iter.Close()

	baseTups := 0
	err = drain(iter, func(tup *Tuple) error {
		for i, f := range td.Fields {
			switch f.Ftype {
			case IntType:
				hists[f.Fname].(*IntHistogram).AddValue(tup.Fields[i].(IntField).Value)
			case StringType:
				hists[f.Fname].(*StringHistogram).AddValue(tup.Fields[i].(StringField).Value)
			}
		}
		baseTups++
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &TableStats{dbFile.NumPages(), baseTups, hists, td}, nil
}

// EstimateScanCost estimates the cost of sequentially scanning the file,
// charging CostPerPage per page: storage reads whole pages, so a nearly
// empty trailing page costs as much as a full one.
func (t *TableStats) EstimateScanCost() float64 {
	return float64(t.basePages * CostPerPage)
}

// EstimateCardinality returns the expected number of tuples after applying
// a predicate with the given selectivity.
func (t *TableStats) EstimateCardinality(selectivity float64) int {
	return int(float64(t.baseTups) * selectivity)
}

// EstimateSelectivity looks up the column's histogram and estimates the
// selectivity of "field op value".
func (t *TableStats) EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error) {
	hist, ok := t.histograms[field]
	if !ok {
		log.Printf("WARNING: no histogram found for field %s", field)
		return 1.0, nil
	}

	switch h := hist.(type) {
	case *IntHistogram:
		v, ok := value.(IntField)
		if !ok {
			return 1.0, GoDBError{TypeMismatchError, fmt.Sprintf("field %s is int, but value %v is not an IntField", field, value)}
		}
		return h.EstimateSelectivity(op, v.Value), nil
	case *StringHistogram:
		v, ok := value.(StringField)
		if !ok {
			return 1.0, GoDBError{TypeMismatchError, fmt.Sprintf("field %s is string, but value %v is not a StringField", field, value)}
		}
		return h.EstimateSelectivity(op, v.Value), nil
	}
	return 1.0, GoDBError{IncompatibleTypesError, "unexpected histogram type"}
}
