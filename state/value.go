//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kinds recorded next to each persisted value. Values of any other type are
// stored as plain JSON and decode into their generic JSON form.
const (
	kindNil     = "nil"
	kindString  = "string"
	kindBool    = "bool"
	kindInt     = "int"
	kindInt32   = "int32"
	kindInt64   = "int64"
	kindUint    = "uint"
	kindUint64  = "uint64"
	kindFloat32 = "float32"
	kindFloat64 = "float64"
	kindTime    = "time"
	kindBytes   = "bytes"
	kindStrings = "[]string"
	kindInts    = "[]int"
	kindFloats  = "[]float64"
	kindList    = "[]any"
	kindMap     = "map[string]any"
	kindStrMap  = "map[string]string"
	kindJSON    = "json"
)

type typedValue struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

func encodeValue(v any) (typedValue, error) {
	var kind string
	switch x := v.(type) {
	case nil:
		return typedValue{Kind: kindNil}, nil
	case string:
		kind = kindString
	case bool:
		kind = kindBool
	case int:
		kind = kindInt
	case int32:
		kind = kindInt32
	case int64:
		kind = kindInt64
	case uint:
		kind = kindUint
	case uint64:
		kind = kindUint64
	case float32:
		kind = kindFloat32
	case float64:
		kind = kindFloat64
	case time.Time:
		kind = kindTime
	case []byte:
		kind = kindBytes
	case []string:
		kind = kindStrings
	case []int:
		kind = kindInts
	case []float64:
		kind = kindFloats
	case map[string]string:
		kind = kindStrMap
	case []any:
		items := make([]typedValue, len(x))
		for i, item := range x {
			tv, err := encodeValue(item)
			if err != nil {
				return typedValue{}, err
			}
			items[i] = tv
		}
		return marshalTyped(kindList, items)
	case map[string]any:
		fields := make(map[string]typedValue, len(x))
		for k, item := range x {
			tv, err := encodeValue(item)
			if err != nil {
				return typedValue{}, fmt.Errorf("%s: %w", k, err)
			}
			fields[k] = tv
		}
		return marshalTyped(kindMap, fields)
	default:
		kind = kindJSON
	}
	return marshalTyped(kind, v)
}

func marshalTyped(kind string, v any) (typedValue, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return typedValue{}, err
	}
	return typedValue{Kind: kind, Value: raw}, nil
}

func decodeValue(tv typedValue) (any, error) {
	switch tv.Kind {
	case kindNil:
		return nil, nil
	case kindString:
		return decodeAs[string](tv.Value)
	case kindBool:
		return decodeAs[bool](tv.Value)
	case kindInt:
		return decodeAs[int](tv.Value)
	case kindInt32:
		return decodeAs[int32](tv.Value)
	case kindInt64:
		return decodeAs[int64](tv.Value)
	case kindUint:
		return decodeAs[uint](tv.Value)
	case kindUint64:
		return decodeAs[uint64](tv.Value)
	case kindFloat32:
		return decodeAs[float32](tv.Value)
	case kindFloat64:
		return decodeAs[float64](tv.Value)
	case kindTime:
		return decodeAs[time.Time](tv.Value)
	case kindBytes:
		return decodeAs[[]byte](tv.Value)
	case kindStrings:
		return decodeAs[[]string](tv.Value)
	case kindInts:
		return decodeAs[[]int](tv.Value)
	case kindFloats:
		return decodeAs[[]float64](tv.Value)
	case kindStrMap:
		return decodeAs[map[string]string](tv.Value)
	case kindList:
		items, err := decodeAs[[]typedValue](tv.Value)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, item := range items {
			if out[i], err = decodeValue(item); err != nil {
				return nil, err
			}
		}
		return out, nil
	case kindMap:
		fields, err := decodeAs[map[string]typedValue](tv.Value)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			if out[k], err = decodeValue(item); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
		}
		return out, nil
	case kindJSON:
		return decodeAs[any](tv.Value)
	default:
		return nil, fmt.Errorf("unknown value kind %q", tv.Kind)
	}
}

func decodeAs[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
