package godb

// This file defines the identity and schema types of stored data: DBType,
// FieldType, TupleDesc, DBValue (IntField/StringField), Tuple and RecordID.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// DBType is the type of a tuple field: INT or STRING.
type DBType int

const (
	IntType DBType = iota
	StringType
	UnknownType // used internally by findFieldInTd when a type isn't yet known
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

// FieldType names one field of a TupleDesc.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is the ordered schema of a stored tuple.
type TupleDesc struct {
	Fields []FieldType
}

// equals reports whether d1 and d2 have the same fields, in the same order.
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Fname != d2.Fields[i].Fname || d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// copy makes a deep copy of the field slice backing a TupleDesc.
func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// findFieldInTd finds the best match for field within desc, preferring a
// table-qualifier match when the field name alone is ambiguous.
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

// bytesPerTuple returns the fixed, on-disk width of a tuple matching desc:
// 4-byte little-endian ints, and a 4-byte length prefix plus a
// StringLength-byte padded payload for strings.
func (td *TupleDesc) bytesPerTuple() int {
	n := 0
	for _, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			n += 4
		case StringType:
			n += 4 + StringLength
		}
	}
	return n
}

// ================== Value & Tuple types ======================

// DBValue is the interface implemented by field value types.
type DBValue interface {
	isDBValue()
}

// IntField is an integer field value.
type IntField struct {
	Value int64
}

func (IntField) isDBValue() {}

// StringField is a string field value.
type StringField struct {
	Value string
}

func (StringField) isDBValue() {}

// RecordID identifies where a tuple was materialized from: a page and a
// slot number within that page.
type RecordID struct {
	PageID PageID
	SlotNo int
}

// Tuple is a materialized row: one DBValue per field of Desc, plus an
// optional RecordID once it has been read from or inserted into a page.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    *RecordID
}

func writeStringField(b *bytes.Buffer, f StringField) error {
	if len(f.Value) > StringLength {
		return GoDBError{IncompatibleTypesError, fmt.Sprintf("string field %q exceeds max length %d", f.Value, StringLength)}
	}
	if err := binary.Write(b, binary.LittleEndian, int32(len(f.Value))); err != nil {
		return err
	}
	padded := make([]byte, StringLength)
	copy(padded, f.Value)
	return binary.Write(b, binary.LittleEndian, padded)
}

func writeIntField(b *bytes.Buffer, f IntField) error {
	return binary.Write(b, binary.LittleEndian, int32(f.Value))
}

// writeTo serializes the tuple's fields, in order, into b using the fixed
// on-disk widths described by its TupleDesc.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch v := field.(type) {
		case StringField:
			if err := writeStringField(b, v); err != nil {
				return err
			}
		case IntField:
			if err := writeIntField(b, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported field type: %T", field)
		}
	}
	return nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	var n int32
	if err := binary.Read(b, binary.LittleEndian, &n); err != nil {
		return StringField{}, err
	}
	buf := make([]byte, StringLength)
	if err := binary.Read(b, binary.LittleEndian, buf); err != nil {
		return StringField{}, err
	}
	if int(n) > len(buf) {
		n = int32(len(buf))
	}
	return StringField{Value: strings.TrimRight(string(buf[:n]), "\x00")}, nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int32
	if err := binary.Read(b, binary.LittleEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: int64(v)}, nil
}

// readTupleFrom deserializes one tuple matching desc from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	tuple := &Tuple{Desc: *desc}
	for _, fd := range desc.Fields {
		switch fd.Ftype {
		case StringType:
			sf, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, sf)
		default:
			intf, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, intf)
		}
	}
	return tuple, nil
}

// equals reports whether t1 and t2 have equal schemas and equal fields.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil && t2 == nil {
		return true
	}
	if t1 == nil || t2 == nil {
		return false
	}
	if len(t1.Fields) != len(t2.Fields) || !t1.Desc.equals(&t2.Desc) {
		return false
	}
	for i := range t1.Fields {
		if t1.Fields[i] != t2.Fields[i] {
			return false
		}
	}
	return true
}
