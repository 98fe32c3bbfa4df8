package dynamodb

import (
	"fmt"
	"strconv"
	"time"

	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// codec converts canonical rows to DynamoDB items and back
type codec struct {
	reg *schema.Registry
}

// encodeItem builds the full item for row, keys included
func (c codec) encodeItem(table *schema.Table, row abstractions.Row) (map[string]types.AttributeValue, error) {
	item, err := c.encodeKey(table, row)
	if err != nil {
		return nil, err
	}
	for _, col := range table.Columns {
		v, ok := row[col.Name]
		if !ok || v == nil {
			continue
		}
		av, err := c.encodeValue(col.Type, v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		if av != nil {
			item[col.Name] = av
		}
	}
	return item, nil
}

// encodeKey builds the PK/SK pair identifying row
func (c codec) encodeKey(table *schema.Table, row abstractions.Row) (map[string]types.AttributeValue, error) {
	pk, err := partitionKeyValue(table, row)
	if err != nil {
		return nil, err
	}
	sk, err := sortKeyValue(table, row)
	if err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}, nil
}

func (c codec) encodeValue(t schema.ColumnType, v interface{}) (types.AttributeValue, error) {
	switch t.Kind {
	case schema.KindText:
		return &types.AttributeValueMemberS{Value: v.(string)}, nil
	case schema.KindInt:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(v.(int))}, nil
	case schema.KindBigint, schema.KindCounter:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v.(int64), 10)}, nil
	case schema.KindBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.(bool)}, nil
	case schema.KindUUID, schema.KindTimeUUID:
		return &types.AttributeValueMemberS{Value: v.(uuid.UUID).String()}, nil
	case schema.KindTimestamp:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v.(time.Time).UnixMilli(), 10)}, nil
	case schema.KindMap:
		return attributevalue.Marshal(v.(map[string]string))
	case schema.KindSet:
		if t.Elem.Kind == schema.KindText {
			set := v.([]string)
			if len(set) == 0 {
				return nil, nil
			}
			return &types.AttributeValueMemberSS{Value: set}, nil
		}
		elems := v.([]map[string]interface{})
		list := make([]types.AttributeValue, 0, len(elems))
		for _, e := range elems {
			av, err := c.encodeValue(*t.Elem, e)
			if err != nil {
				return nil, err
			}
			list = append(list, av)
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	case schema.KindUDT:
		ut, ok := c.reg.UserType(t.UDT)
		if !ok {
			return nil, fmt.Errorf("unknown type %q", t.UDT)
		}
		fields := v.(map[string]interface{})
		m := make(map[string]types.AttributeValue, len(fields))
		for _, f := range ut.Fields {
			fv, ok := fields[f.Name]
			if !ok || fv == nil {
				continue
			}
			av, err := c.encodeValue(f.Type, fv)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", ut.Name, f.Name, err)
			}
			if av != nil {
				m[f.Name] = av
			}
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	}
	return nil, fmt.Errorf("unsupported column type %s", t)
}

// decodeItem rebuilds a canonical row from an item
func (c codec) decodeItem(table *schema.Table, item map[string]types.AttributeValue) (abstractions.Row, error) {
	row := make(abstractions.Row, len(table.Columns))
	for _, col := range table.Columns {
		av, ok := item[col.Name]
		if !ok {
			continue
		}
		v, err := c.decodeValue(col.Type, av)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		if v != nil {
			row[col.Name] = v
		}
	}
	return row, nil
}

func (c codec) decodeValue(t schema.ColumnType, av types.AttributeValue) (interface{}, error) {
	if _, null := av.(*types.AttributeValueMemberNULL); null {
		return nil, nil
	}
	switch t.Kind {
	case schema.KindText:
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return nil, unexpected(t, av)
		}
		return s.Value, nil
	case schema.KindInt, schema.KindBigint, schema.KindCounter, schema.KindTimestamp:
		n, ok := av.(*types.AttributeValueMemberN)
		if !ok {
			return nil, unexpected(t, av)
		}
		i, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, err
		}
		switch t.Kind {
		case schema.KindInt:
			return int(i), nil
		case schema.KindTimestamp:
			return time.UnixMilli(i).UTC(), nil
		}
		return i, nil
	case schema.KindBoolean:
		b, ok := av.(*types.AttributeValueMemberBOOL)
		if !ok {
			return nil, unexpected(t, av)
		}
		return b.Value, nil
	case schema.KindUUID, schema.KindTimeUUID:
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return nil, unexpected(t, av)
		}
		return uuid.Parse(s.Value)
	case schema.KindMap:
		var m map[string]string
		if err := attributevalue.Unmarshal(av, &m); err != nil {
			return nil, err
		}
		return m, nil
	case schema.KindSet:
		if t.Elem.Kind == schema.KindText {
			ss, ok := av.(*types.AttributeValueMemberSS)
			if !ok {
				return nil, unexpected(t, av)
			}
			return c.reg.Normalize(t, ss.Value)
		}
		l, ok := av.(*types.AttributeValueMemberL)
		if !ok {
			return nil, unexpected(t, av)
		}
		out := make([]map[string]interface{}, 0, len(l.Value))
		for _, e := range l.Value {
			v, err := c.decodeValue(*t.Elem, e)
			if err != nil {
				return nil, err
			}
			out = append(out, v.(map[string]interface{}))
		}
		return out, nil
	case schema.KindUDT:
		ut, ok := c.reg.UserType(t.UDT)
		if !ok {
			return nil, fmt.Errorf("unknown type %q", t.UDT)
		}
		m, ok := av.(*types.AttributeValueMemberM)
		if !ok {
			return nil, unexpected(t, av)
		}
		out := make(map[string]interface{}, len(ut.Fields))
		for _, f := range ut.Fields {
			out[f.Name] = nil
			fav, ok := m.Value[f.Name]
			if !ok {
				continue
			}
			v, err := c.decodeValue(f.Type, fav)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", ut.Name, f.Name, err)
			}
			out[f.Name] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported column type %s", t)
}

func unexpected(t schema.ColumnType, av types.AttributeValue) error {
	return fmt.Errorf("cannot decode %T as %s", av, t)
}
