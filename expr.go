package simpledb

// Expressions evaluated against tuples.  Operators and aggregators take
// arbitrary expressions rather than field indexes so that, e.g., an order by
// or group by can be computed over a derived value.

// Expr evaluates a tuple to a DBValue.
type Expr interface {
	EvalExpr(t *Tuple) (DBValue, error)
	GetExprType() FieldType
}

// FieldExpr extracts a named field from a tuple.
type FieldExpr struct {
	selectField FieldType
}

func NewFieldExpr(field FieldType) *FieldExpr {
	return &FieldExpr{field}
}

func (f *FieldExpr) EvalExpr(t *Tuple) (DBValue, error) {
	i, err := findFieldInTd(f.selectField, &t.Desc)
	if err != nil {
		return nil, err
	}
	return t.Fields[i], nil
}

func (f *FieldExpr) GetExprType() FieldType {
	return f.selectField
}

// ConstExpr evaluates to a constant, regardless of the input tuple.
type ConstExpr struct {
	val       DBValue
	constType DBType
}

func NewConstExpr(val DBValue, constType DBType) *ConstExpr {
	return &ConstExpr{val, constType}
}

func (c *ConstExpr) EvalExpr(t *Tuple) (DBValue, error) {
	return c.val, nil
}

func (c *ConstExpr) GetExprType() FieldType {
	return FieldType{"const", "", c.constType, 0}
}
