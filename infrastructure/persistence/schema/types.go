package schema

import (
	"fmt"
	"strings"
)

// Kind is the storage class of a column
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindBigint
	KindCounter
	KindBoolean
	KindUUID
	KindTimeUUID
	KindTimestamp
	KindSet
	KindMap
	KindUDT
)

var scalarKinds = map[string]Kind{
	"text":      KindText,
	"varchar":   KindText,
	"int":       KindInt,
	"bigint":    KindBigint,
	"counter":   KindCounter,
	"boolean":   KindBoolean,
	"uuid":      KindUUID,
	"timeuuid":  KindTimeUUID,
	"timestamp": KindTimestamp,
}

// ColumnType is a parsed column type such as `set<frozen<video_metadata>>`
type ColumnType struct {
	Kind   Kind
	Key    *ColumnType // map keys
	Elem   *ColumnType // set elements and map values
	UDT    string      // user type name when Kind is KindUDT
	Frozen bool
}

// ParseColumnType parses the CQL spelling of a column type. User type names
// are accepted as-is and resolved by the registry.
func ParseColumnType(s string) (ColumnType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ColumnType{}, fmt.Errorf("empty column type")
	}

	if inner, ok := unwrap(s, "frozen"); ok {
		t, err := ParseColumnType(inner)
		if err != nil {
			return ColumnType{}, err
		}
		t.Frozen = true
		return t, nil
	}

	if inner, ok := unwrap(s, "set"); ok {
		elem, err := ParseColumnType(inner)
		if err != nil {
			return ColumnType{}, err
		}
		if elem.isCollection() {
			return ColumnType{}, fmt.Errorf("nested collection in %q", s)
		}
		return ColumnType{Kind: KindSet, Elem: &elem}, nil
	}

	if inner, ok := unwrap(s, "map"); ok {
		parts := splitTopLevel(inner)
		if len(parts) != 2 {
			return ColumnType{}, fmt.Errorf("map type %q needs key and value types", s)
		}
		key, err := ParseColumnType(parts[0])
		if err != nil {
			return ColumnType{}, err
		}
		val, err := ParseColumnType(parts[1])
		if err != nil {
			return ColumnType{}, err
		}
		if key.isCollection() || val.isCollection() {
			return ColumnType{}, fmt.Errorf("nested collection in %q", s)
		}
		return ColumnType{Kind: KindMap, Key: &key, Elem: &val}, nil
	}

	if strings.ContainsAny(s, "<>,") {
		return ColumnType{}, fmt.Errorf("unsupported column type %q", s)
	}
	if k, ok := scalarKinds[s]; ok {
		return ColumnType{Kind: k}, nil
	}
	return ColumnType{Kind: KindUDT, UDT: s}, nil
}

// String renders the type in CQL syntax
func (t ColumnType) String() string {
	var s string
	switch t.Kind {
	case KindText:
		s = "text"
	case KindInt:
		s = "int"
	case KindBigint:
		s = "bigint"
	case KindCounter:
		s = "counter"
	case KindBoolean:
		s = "boolean"
	case KindUUID:
		s = "uuid"
	case KindTimeUUID:
		s = "timeuuid"
	case KindTimestamp:
		s = "timestamp"
	case KindSet:
		s = fmt.Sprintf("set<%s>", t.Elem)
	case KindMap:
		s = fmt.Sprintf("map<%s, %s>", t.Key, t.Elem)
	case KindUDT:
		s = t.UDT
	}
	if t.Frozen {
		return fmt.Sprintf("frozen<%s>", s)
	}
	return s
}

func (t ColumnType) isCollection() bool {
	return t.Kind == KindSet || t.Kind == KindMap
}

// Orderable reports whether the type may be used as a clustering column
func (t ColumnType) Orderable() bool {
	switch t.Kind {
	case KindText, KindInt, KindBigint, KindBoolean, KindUUID, KindTimeUUID, KindTimestamp:
		return true
	}
	return false
}

func unwrap(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix+"<") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	return strings.TrimSpace(s[len(prefix)+1 : len(s)-1]), true
}

// splitTopLevel splits on commas that are not nested inside angle brackets
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}
