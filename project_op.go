package simpledb

// Project evaluates a list of select expressions against each child tuple,
// optionally deduplicating the projected results.
type Project struct {
	selectFields []Expr
	outputNames  []string
	child        Operator
	distinct     bool
}

// NewProjectOp constructs a projection.  selectFields are the expressions
// to evaluate, outputNames their names in the output schema (same length),
// and distinct requests duplicate elimination.
func NewProjectOp(selectFields []Expr, outputNames []string, distinct bool, child Operator) (Operator, error) {
	if len(selectFields) != len(outputNames) {
		return nil, GoDBError{IllegalOperationError, "one output name per select expression required"}
	}
	return &Project{selectFields, outputNames, child, distinct}, nil
}

// Descriptor returns one field per select expression, named by
// outputNames.
func (p *Project) Descriptor() *TupleDesc {
	td := &TupleDesc{Fields: make([]FieldType, 0, len(p.selectFields))}
	for i, expr := range p.selectFields {
		ft := expr.GetExprType()
		ft.Fname = p.outputNames[i]
		td.Fields = append(td.Fields, ft)
	}
	return td
}

func (p *Project) Iterator(tid TransactionID) (TupleIterator, error) {
	desc := p.Descriptor()
	var child TupleIterator
	reset := func() (pullFunc, error) {
		it, err := openChild(p.child, tid, &child)
		if err != nil {
			return nil, err
		}
		var seen map[any]struct{}
		if p.distinct {
			seen = make(map[any]struct{})
		}
		return func() (*Tuple, error) {
			for {
				ok, err := it.HasNext()
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, nil
				}
				t, err := it.Next()
				if err != nil {
					return nil, err
				}
				out := &Tuple{Desc: *desc, Fields: make([]DBValue, 0, len(p.selectFields))}
				for _, expr := range p.selectFields {
					v, err := expr.EvalExpr(t)
					if err != nil {
						return nil, err
					}
					out.Fields = append(out.Fields, v)
				}
				if p.distinct {
					key := out.tupleKey()
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
				}
				return out, nil
			}
		}, nil
	}
	closeFn := func() error {
		if child != nil {
			return child.Close()
		}
		return nil
	}
	return newFuncIterator(desc, reset, closeFn), nil
}
