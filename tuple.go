package simpledb

// This file defines methods for working with tuples: the types DBType,
// FieldType, TupleDesc, DBValue, and Tuple.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DBType is the type of a tuple field, e.g., IntType or StringType.
type DBType int

const (
	IntType    DBType = iota
	StringType DBType = iota
	// UnknownType is used during expression construction when the type has
	// not been resolved yet.
	UnknownType DBType = iota
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// FieldType describes one field of a tuple: its name, optional table
// qualifier, type, and, for strings, the declared capacity in bytes.  A
// zero Flen on a string field means StringLength.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
	Flen           int
}

// stringLen returns the declared capacity of a string field.
func (ft *FieldType) stringLen() int {
	if ft.Flen > 0 {
		return ft.Flen
	}
	return StringLength
}

// byteLen returns the number of bytes the field occupies on a page: 4 for an
// integer, 4 bytes of length prefix plus the declared capacity for a string.
func (ft *FieldType) byteLen() int {
	switch ft.Ftype {
	case StringType:
		return 4 + ft.stringLen()
	default:
		return 4
	}
}

// TupleDesc is the "type" of a tuple, e.g., the field names and types.
type TupleDesc struct {
	Fields []FieldType
}

// NewTupleDesc constructs a descriptor from parallel slices of types and
// names.  names may be nil, in which case fields are unnamed.  A descriptor
// must have at least one field.
func NewTupleDesc(types []DBType, names []string) (*TupleDesc, error) {
	if len(types) == 0 {
		return nil, GoDBError{MalformedDataError, "a tuple desc requires at least one field"}
	}
	if names != nil && len(names) != len(types) {
		return nil, GoDBError{MalformedDataError, "types and names must have the same length"}
	}
	fields := make([]FieldType, len(types))
	for i, t := range types {
		fields[i].Ftype = t
		if names != nil {
			fields[i].Fname = names[i]
		}
	}
	return &TupleDesc{fields}, nil
}

// NumFields returns the number of fields in the descriptor.
func (td *TupleDesc) NumFields() int {
	return len(td.Fields)
}

// TypeAt returns the type of the i'th field.
func (td *TupleDesc) TypeAt(i int) (DBType, error) {
	if i < 0 || i >= len(td.Fields) {
		return UnknownType, GoDBError{NoSuchElementError, fmt.Sprintf("no such field %d", i)}
	}
	return td.Fields[i].Ftype, nil
}

// NameAt returns the name of the i'th field.
func (td *TupleDesc) NameAt(i int) (string, error) {
	if i < 0 || i >= len(td.Fields) {
		return "", GoDBError{NoSuchElementError, fmt.Sprintf("no such field %d", i)}
	}
	return td.Fields[i].Fname, nil
}

// IndexOfName returns the position of the first field with the supplied
// name, using exact match.
func (td *TupleDesc) IndexOfName(name string) (int, error) {
	for i, f := range td.Fields {
		if f.Fname == name {
			return i, nil
		}
	}
	return -1, GoDBError{NoSuchElementError, fmt.Sprintf("no field named %s", name)}
}

// equals compares two descriptors, returning true iff their type sequences
// are pointwise equal and corresponding string fields have the same
// capacity.  Names are not compared; two identically shaped tables are
// interchangeable as far as page layout is concerned.
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}
		if d1.Fields[i].Ftype == StringType &&
			d1.Fields[i].stringLen() != d2.Fields[i].stringLen() {
			return false
		}
	}
	return true
}

// Given a FieldType f and a TupleDesc desc, find the best matching field in
// desc for f.  A match is defined as having the same Ftype and the same
// name, preferring a match with the same TableQualifier if f has a
// TableQualifier.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname == field.Fname && (f.Ftype == field.Ftype || field.Ftype == UnknownType) {
			if field.TableQualifier == "" && best != -1 {
				return 0, GoDBError{AmbiguousNameError, fmt.Sprintf("select name %s is ambiguous", f.Fname)}
			}
			if f.TableQualifier == field.TableQualifier || best == -1 {
				best = i
			}
		}
	}
	if best != -1 {
		return best, nil
	}
	return -1, GoDBError{IncompatibleTypesError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname)}
}

// copy returns a deep copy of the descriptor.
func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// merge returns a new descriptor consisting of the fields of desc2 appended
// onto the fields of desc.
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

// bytesPerTuple returns the fixed on-page size of a tuple with this
// descriptor.
func (td *TupleDesc) bytesPerTuple() int {
	sz := 0
	for i := range td.Fields {
		sz += td.Fields[i].byteLen()
	}
	return sz
}

// ================== Tuple Methods ======================

// DBValue is a type-tagged field value.
type DBValue interface {
	// EvalPred compares the receiver against v using op.
	EvalPred(v DBValue, op BoolOp) bool
}

// IntField is a 4-byte signed integer value.
type IntField struct {
	Value int32
}

// StringField is a string value of at most its field's declared capacity.
type StringField struct {
	Value string
}

func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	v2, ok := v.(IntField)
	if !ok {
		return false
	}
	return evalCmp(op, int64(f.Value), int64(v2.Value))
}

func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	v2, ok := v.(StringField)
	if !ok {
		return false
	}
	switch cmp := strings.Compare(f.Value, v2.Value); op {
	case OpGt:
		return cmp > 0
	case OpLt:
		return cmp < 0
	case OpGe:
		return cmp >= 0
	case OpLe:
		return cmp <= 0
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	}
	return false
}

func evalCmp(op BoolOp, v1, v2 int64) bool {
	switch op {
	case OpGt:
		return v1 > v2
	case OpLt:
		return v1 < v2
	case OpGe:
		return v1 >= v2
	case OpLe:
		return v1 <= v2
	case OpEq:
		return v1 == v2
	case OpNeq:
		return v1 != v2
	}
	return false
}

// recordID names the page and slot a tuple was read from.
type recordID interface{}

// Tuple is a row: a descriptor plus the values of its fields, and, once the
// tuple is resident on a page, a record id.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    recordID
}

// NewTuple constructs an in-memory tuple with the supplied field values.
func NewTuple(desc TupleDesc, fields []DBValue) (*Tuple, error) {
	if len(fields) != len(desc.Fields) {
		return nil, GoDBError{TypeMismatchError, "field count does not match descriptor"}
	}
	return &Tuple{desc, fields, nil}, nil
}

// GetField returns the i'th field value.
func (t *Tuple) GetField(i int) (DBValue, error) {
	if i < 0 || i >= len(t.Fields) {
		return nil, GoDBError{NoSuchElementError, fmt.Sprintf("no such field %d", i)}
	}
	return t.Fields[i], nil
}

// SetField replaces the i'th field value in place.
func (t *Tuple) SetField(i int, v DBValue) error {
	if i < 0 || i >= len(t.Fields) {
		return GoDBError{NoSuchElementError, fmt.Sprintf("no such field %d", i)}
	}
	t.Fields[i] = v
	return nil
}

// writeTo serializes the tuple into b.  Fields are written in declared
// order: integers as 4 bytes big endian, strings as a 4-byte big endian
// length followed by the declared capacity of payload, zero padded.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	if len(t.Fields) != len(t.Desc.Fields) {
		return GoDBError{TypeMismatchError, "tuple has wrong number of fields for its descriptor"}
	}
	for i, field := range t.Fields {
		ft := &t.Desc.Fields[i]
		switch v := field.(type) {
		case IntField:
			if ft.Ftype != IntType {
				return GoDBError{TypeMismatchError, fmt.Sprintf("field %d is not an int", i)}
			}
			if err := binary.Write(b, binary.BigEndian, v.Value); err != nil {
				return err
			}
		case StringField:
			if ft.Ftype != StringType {
				return GoDBError{TypeMismatchError, fmt.Sprintf("field %d is not a string", i)}
			}
			maxLen := ft.stringLen()
			if len(v.Value) > maxLen {
				return GoDBError{MalformedDataError, fmt.Sprintf("string %q exceeds declared capacity %d", v.Value, maxLen)}
			}
			if err := binary.Write(b, binary.BigEndian, int32(len(v.Value))); err != nil {
				return err
			}
			payload := make([]byte, maxLen)
			copy(payload, v.Value)
			if _, err := b.Write(payload); err != nil {
				return err
			}
		default:
			return GoDBError{TypeMismatchError, fmt.Sprintf("unsupported field type %T", field)}
		}
	}
	return nil
}

// readTupleFrom deserializes one tuple with the specified descriptor from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc, Fields: make([]DBValue, 0, len(desc.Fields))}
	for i := range desc.Fields {
		ft := &desc.Fields[i]
		switch ft.Ftype {
		case IntType:
			var v int32
			if err := binary.Read(b, binary.BigEndian, &v); err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, IntField{v})
		case StringType:
			var n int32
			if err := binary.Read(b, binary.BigEndian, &n); err != nil {
				return nil, err
			}
			maxLen := ft.stringLen()
			payload := make([]byte, maxLen)
			if got, err := b.Read(payload); err != nil || got != maxLen {
				return nil, GoDBError{MalformedDataError, "buffer too short for string field"}
			}
			if n < 0 || int(n) > maxLen {
				return nil, GoDBError{MalformedDataError, fmt.Sprintf("string length %d out of range", n)}
			}
			t.Fields = append(t.Fields, StringField{string(payload[:n])})
		default:
			return nil, GoDBError{TypeMismatchError, "descriptor contains an unknown type"}
		}
	}
	return t, nil
}

// equals compares two tuples: equal descriptors and pointwise equal fields.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil && t2 == nil {
		return true
	}
	if t1 == nil || t2 == nil {
		return false
	}
	if len(t1.Fields) != len(t2.Fields) {
		return false
	}
	if !t1.Desc.equals(&t2.Desc) {
		return false
	}
	for i := range t1.Fields {
		if t1.Fields[i] != t2.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples produces a new tuple with the fields of t2 appended to t1.
func joinTuples(t1 *Tuple, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	return &Tuple{
		Desc:   *t1.Desc.merge(&t2.Desc),
		Fields: append(append([]DBValue{}, t1.Fields...), t2.Fields...),
	}
}

type orderByState int

const (
	OrderedLessThan    orderByState = iota
	OrderedEqual       orderByState = iota
	OrderedGreaterThan orderByState = iota
)

// compareField applies field to both t and t2 and compares the results.
func (t *Tuple) compareField(t2 *Tuple, field Expr) (orderByState, error) {
	v1, err := field.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	v2, err := field.EvalExpr(t2)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(v1, v2)
}

func compareFields(v1, v2 DBValue) (orderByState, error) {
	if v1.EvalPred(v2, OpEq) {
		return OrderedEqual, nil
	}
	if v1.EvalPred(v2, OpLt) {
		return OrderedLessThan, nil
	}
	if v1.EvalPred(v2, OpGt) {
		return OrderedGreaterThan, nil
	}
	return OrderedEqual, GoDBError{TypeMismatchError, fmt.Sprintf("cannot compare %T and %T", v1, v2)}
}

// project returns a new tuple with just the named fields.  A field matches
// without a TableQualifier, but a qualified match is preferred.
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	out := &Tuple{}
	for _, field := range fields {
		matched := -1
		for i, df := range t.Desc.Fields {
			if field.Fname == df.Fname && field.TableQualifier == df.TableQualifier {
				matched = i
				break
			}
		}
		if matched == -1 {
			for i, df := range t.Desc.Fields {
				if field.Fname == df.Fname {
					matched = i
					break
				}
			}
		}
		if matched == -1 {
			return nil, GoDBError{IncompatibleTypesError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname)}
		}
		out.Fields = append(out.Fields, t.Fields[matched])
		out.Desc.Fields = append(out.Desc.Fields, t.Desc.Fields[matched])
	}
	return out, nil
}

// tupleKey computes a key for the tuple usable in a map.
func (t *Tuple) tupleKey() any {
	var buf bytes.Buffer
	t.writeTo(&buf)
	return buf.String()
}

var winWidth int = 120

func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	nextLen := len(v) + 3
	remLen := colWid - nextLen
	if remLen > 0 {
		spacesRight := remLen / 2
		spacesLeft := remLen - spacesRight
		return strings.Repeat(" ", spacesLeft) + v + strings.Repeat(" ", spacesRight) + " |"
	}
	return " " + v[0:colWid-4] + " |"
}

// HeaderString returns a string representing the header of a table for a
// tuple with the supplied TupleDesc.  Aligned indicates tabular format.
func (d *TupleDesc) HeaderString(aligned bool) string {
	outstr := ""
	for i, f := range d.Fields {
		tableName := ""
		if f.TableQualifier != "" {
			tableName = f.TableQualifier + "."
		}
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(tableName+f.Fname, len(d.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, tableName+f.Fname)
		}
	}
	return outstr
}

// PrettyPrintString returns a string representing the tuple.  Aligned
// indicates tabular format.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	outstr := ""
	for i, f := range t.Fields {
		str := ""
		switch f := f.(type) {
		case IntField:
			str = strconv.FormatInt(int64(f.Value), 10)
		case StringField:
			str = f.Value
		}
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(str, len(t.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, str)
		}
	}
	return outstr
}
