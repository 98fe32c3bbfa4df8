package schema

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"killrvideo/domain/core/valueobjects"

	"github.com/google/uuid"
)

// Canonical Go representations of column values:
//
//	text                string
//	int                 int
//	bigint, counter     int64
//	boolean             bool
//	uuid, timeuuid      uuid.UUID
//	timestamp           time.Time (UTC, millisecond precision)
//	set<text>           []string (sorted, distinct)
//	map<text,text>      map[string]string
//	user type           map[string]interface{}
//	set<frozen<udt>>    []map[string]interface{}
//
// Every storage engine accepts and returns rows in this form.

// Normalize converts v to the canonical representation of t. A nil value
// stays nil and means "no value".
func (r *Registry) Normalize(t ColumnType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Kind {
	case KindText:
		s, ok := v.(string)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return s, nil
	case KindInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return int(n), nil
	case KindBigint, KindCounter:
		n, ok := toInt64(v)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return n, nil
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return b, nil
	case KindUUID, KindTimeUUID:
		u, err := toUUID(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		if t.Kind == KindTimeUUID && u != uuid.Nil && !valueobjects.IsTimeUUID(u) {
			return nil, fmt.Errorf("timeuuid: %s is not a time-based uuid", u)
		}
		return u, nil
	case KindTimestamp:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return valueobjects.Timestamp(ts), nil
	case KindSet:
		return r.normalizeSet(t, v)
	case KindMap:
		if t.Key.Kind != KindText || t.Elem.Kind != KindText {
			return nil, fmt.Errorf("unsupported map type %s", t)
		}
		m, ok := v.(map[string]string)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	case KindUDT:
		return r.normalizeUDT(t, v)
	}
	return nil, fmt.Errorf("unsupported column type %s", t)
}

func (r *Registry) normalizeSet(t ColumnType, v interface{}) (interface{}, error) {
	switch t.Elem.Kind {
	case KindText:
		in, ok := v.([]string)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		seen := make(map[string]struct{}, len(in))
		out := make([]string, 0, len(in))
		for _, s := range in {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
		sort.Strings(out)
		return out, nil
	case KindUDT:
		in, ok := v.([]map[string]interface{})
		if !ok {
			return nil, typeMismatch(t, v)
		}
		out := make([]map[string]interface{}, 0, len(in))
		for _, elem := range in {
			n, err := r.normalizeUDT(*t.Elem, elem)
			if err != nil {
				return nil, err
			}
			out = append(out, n.(map[string]interface{}))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported set element type %s", t.Elem)
}

func (r *Registry) normalizeUDT(t ColumnType, v interface{}) (interface{}, error) {
	ut, ok := r.types[t.UDT]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", t.UDT)
	}
	in, ok := v.(map[string]interface{})
	if !ok {
		return nil, typeMismatch(t, v)
	}
	out := make(map[string]interface{}, len(ut.Fields))
	for name := range in {
		if _, known := ut.Field(name); !known {
			return nil, fmt.Errorf("type %q has no field %q", ut.Name, name)
		}
	}
	for _, f := range ut.Fields {
		val, err := r.Normalize(f.Type, in[f.Name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", ut.Name, f.Name, err)
		}
		out[f.Name] = val
	}
	return out, nil
}

// IsZeroValue reports whether v cannot identify a row
func IsZeroValue(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case uuid.UUID:
		return x == uuid.Nil
	case time.Time:
		return x.IsZero()
	}
	return false
}

// Compare orders two canonical values of an orderable type
func Compare(t ColumnType, a, b interface{}) int {
	switch t.Kind {
	case KindText:
		return strings.Compare(a.(string), b.(string))
	case KindInt:
		return compareInt64(int64(a.(int)), int64(b.(int)))
	case KindBigint, KindCounter:
		return compareInt64(a.(int64), b.(int64))
	case KindBoolean:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case KindUUID:
		ua, ub := a.(uuid.UUID), b.(uuid.UUID)
		return bytes.Compare(ua[:], ub[:])
	case KindTimeUUID:
		return valueobjects.CompareTimeUUID(a.(uuid.UUID), b.(uuid.UUID))
	case KindTimestamp:
		return a.(time.Time).Compare(b.(time.Time))
	}
	panic(fmt.Sprintf("schema: type %s is not orderable", t))
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case valueobjects.Counter:
		return n.Value(), true
	}
	return 0, false
}

func toUUID(v interface{}) (uuid.UUID, error) {
	switch u := v.(type) {
	case uuid.UUID:
		return u, nil
	case [16]byte:
		return uuid.UUID(u), nil
	case string:
		return uuid.Parse(u)
	}
	return uuid.Nil, fmt.Errorf("cannot use %T as uuid", v)
}

func typeMismatch(t ColumnType, v interface{}) error {
	return fmt.Errorf("cannot use %T as %s", v, t)
}
