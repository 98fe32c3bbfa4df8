package dynamodb

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"

	"github.com/google/uuid"
)

// Every logical table shares one physical DynamoDB table:
//
//	PK = <table>#<partition component>#...
//	SK = <clustering component>#<clustering component>#...
//
// Clustering components are encoded so that byte order of SK equals the
// declared clustering order, descending columns included. Encoded components
// only use [0-9a-f~] so '#' separates them and '$' sorts just past a prefix.
const (
	attrPK = "PK"
	attrSK = "SK"

	sep       = "#"
	pastSep   = "$"
	descTerm  = "~"
	noCluster = "#"
)

// partitionKeyValue renders PK for row
func partitionKeyValue(table *schema.Table, row abstractions.Row) (string, error) {
	var b strings.Builder
	b.WriteString(table.Name)
	for _, name := range table.PartitionKey {
		col, _ := table.Column(name)
		enc, err := encodeComponent(col.Type, schema.Asc, row[name])
		if err != nil {
			return "", fmt.Errorf("partition column %s: %w", name, err)
		}
		b.WriteString(sep)
		b.WriteString(enc)
	}
	return b.String(), nil
}

// sortKeyValue renders SK for row
func sortKeyValue(table *schema.Table, row abstractions.Row) (string, error) {
	if len(table.Clustering) == 0 {
		return noCluster, nil
	}
	values := make([]interface{}, 0, len(table.Clustering))
	for _, c := range table.Clustering {
		values = append(values, row[c.Name])
	}
	return clusteringPrefix(table, values)
}

// clusteringPrefix encodes the leading clustering values, each followed by sep
func clusteringPrefix(table *schema.Table, values []interface{}) (string, error) {
	var b strings.Builder
	for i, v := range values {
		c := table.Clustering[i]
		col, _ := table.Column(c.Name)
		enc, err := encodeComponent(col.Type, c.Order, v)
		if err != nil {
			return "", fmt.Errorf("clustering column %s: %w", c.Name, err)
		}
		b.WriteString(enc)
		b.WriteString(sep)
	}
	return b.String(), nil
}

// sortKeyRange is the SK interval a prepared query covers. Empty strings are
// open ends. The interval may be wider than the query; rows are re-checked
// after decoding.
type sortKeyRange struct {
	prefix string
	lower  string
	upper  string
}

func sortKeyRangeFor(pq *abstractions.PreparedQuery) (sortKeyRange, error) {
	var r sortKeyRange
	if len(pq.Table.Clustering) == 0 {
		return r, nil
	}
	prefix, err := clusteringPrefix(pq.Table, pq.Prefix)
	if err != nil {
		return r, err
	}
	r.prefix = prefix

	if pq.Range != nil {
		c := pq.Table.Clustering[len(pq.Prefix)]
		col, _ := pq.Table.Column(c.Name)

		lo, hi := pq.Range.Lower, pq.Range.Upper
		if c.Order == schema.Desc {
			lo, hi = hi, lo
		}
		if lo != nil {
			enc, err := encodeComponent(col.Type, c.Order, lo.Value)
			if err != nil {
				return r, err
			}
			if lo.Inclusive {
				r.lower = prefix + enc
			} else {
				r.lower = prefix + enc + pastSep
			}
		}
		if hi != nil {
			enc, err := encodeComponent(col.Type, c.Order, hi.Value)
			if err != nil {
				return r, err
			}
			r.upper = prefix + enc + pastSep
		}
	}
	if prefix != "" {
		if r.lower == "" {
			r.lower = prefix
		}
		if r.upper == "" {
			r.upper = prefixEnd(prefix)
		}
	}
	return r, nil
}

// prefixEnd returns the smallest string greater than every key starting with prefix
func prefixEnd(prefix string) string {
	return strings.TrimSuffix(prefix, sep) + pastSep
}

// encodeComponent encodes one key value in order-preserving form
func encodeComponent(t schema.ColumnType, order schema.Order, v interface{}) (string, error) {
	if v == nil {
		return "", fmt.Errorf("missing key value")
	}
	var enc string
	switch t.Kind {
	case schema.KindText:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("cannot encode %T as text", v)
		}
		enc = hex.EncodeToString([]byte(s))
		if order == schema.Desc {
			return invertHex(enc) + descTerm, nil
		}
		return enc, nil
	case schema.KindInt:
		n, ok := v.(int)
		if !ok {
			return "", fmt.Errorf("cannot encode %T as int", v)
		}
		enc = encodeInt(int64(n))
	case schema.KindBigint, schema.KindCounter:
		n, ok := v.(int64)
		if !ok {
			return "", fmt.Errorf("cannot encode %T as bigint", v)
		}
		enc = encodeInt(n)
	case schema.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("cannot encode %T as boolean", v)
		}
		enc = "0"
		if b {
			enc = "1"
		}
	case schema.KindTimestamp:
		ts, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("cannot encode %T as timestamp", v)
		}
		enc = encodeInt(ts.UnixMilli())
	case schema.KindUUID:
		u, ok := v.(uuid.UUID)
		if !ok {
			return "", fmt.Errorf("cannot encode %T as uuid", v)
		}
		enc = hex.EncodeToString(u[:])
	case schema.KindTimeUUID:
		u, ok := v.(uuid.UUID)
		if !ok {
			return "", fmt.Errorf("cannot encode %T as timeuuid", v)
		}
		enc = fmt.Sprintf("%020d", int64(u.Time())) + hex.EncodeToString(u[:])
	default:
		return "", fmt.Errorf("type %s cannot be part of a key", t)
	}
	if order == schema.Desc {
		return invertHex(enc), nil
	}
	return enc, nil
}

// encodeInt maps a signed value to 20 zero-padded digits preserving order
func encodeInt(n int64) string {
	return fmt.Sprintf("%020d", uint64(n)^(1<<63))
}

// invertHex replaces every hex digit d with f-d, reversing the byte order.
// Decimal digits are a subset of hex digits so the same mapping reverses them.
func invertHex(s string) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(digits, s[i])
		if idx < 0 {
			out[i] = s[i]
			continue
		}
		out[i] = digits[15-idx]
	}
	return string(out)
}
