// Package jsoncodec encodes and decodes property values exchanged with the
// client.
//
// Values travel in two forms. Without type info, a node reference is the
// object {"nodeId": <id>} and everything else is plain JSON; this is what the
// client sends in RPC invocations. With type info, used for changes sent to
// the client, a node reference is [0, <id>] and an array is wrapped as
// [1, [...]] so the two can be told apart.
package jsoncodec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/vango-dev/nodesync/pkg/state"
)

// Type tags used in the typed encoding.
const (
	NodeType  = 0
	ArrayType = 1
)

// NodeIDKey is the object key of an untyped node reference.
const NodeIDKey = "nodeId"

// Common codec errors.
var (
	ErrUnsupportedType = errors.New("jsoncodec: unsupported value type")
	ErrMalformed       = errors.New("jsoncodec: malformed value")
)

// DecodeWithoutTypeInfo decodes a wire value. Objects decode to
// map[string]any, arrays to []any and numbers to float64. A node reference is
// returned as its object form; use NodeReference to detect it.
func DecodeWithoutTypeInfo(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrMalformed)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}

// NodeReference reports whether v is an untyped node reference and returns
// the referenced id.
func NodeReference(v any) (int, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	raw, ok := obj[NodeIDKey]
	if !ok {
		return 0, false
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// NodeReferenceJSON returns the untyped reference object for a node id.
func NodeReferenceJSON(id int) map[string]any {
	return map[string]any{NodeIDKey: float64(id)}
}

// EncodeWithoutTypeInfo encodes v the way the client sends values.
func EncodeWithoutTypeInfo(v any) (json.RawMessage, error) {
	out, err := convert(v, false)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// EncodeWithTypeInfo encodes v for changes sent to the client.
func EncodeWithTypeInfo(v any) (json.RawMessage, error) {
	out, err := convert(v, true)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// DecodeWithTypeInfo reverses EncodeWithTypeInfo. Node references are passed
// to resolve, whose result replaces them.
func DecodeWithTypeInfo(raw json.RawMessage, resolve func(id int) (any, error)) (any, error) {
	v, err := DecodeWithoutTypeInfo(raw)
	if err != nil {
		return nil, err
	}
	return untype(v, resolve)
}

func untype(v any, resolve func(int) (any, error)) (any, error) {
	switch val := v.(type) {
	case []any:
		if len(val) != 2 {
			return nil, fmt.Errorf("%w: untagged array", ErrMalformed)
		}
		switch val[0] {
		case float64(NodeType):
			id, ok := val[1].(float64)
			if !ok || id != math.Trunc(id) {
				return nil, fmt.Errorf("%w: node reference %v", ErrMalformed, val[1])
			}
			return resolve(int(id))
		case float64(ArrayType):
			items, ok := val[1].([]any)
			if !ok {
				return nil, fmt.Errorf("%w: array payload %T", ErrMalformed, val[1])
			}
			out := make([]any, len(items))
			for i, item := range items {
				u, err := untype(item, resolve)
				if err != nil {
					return nil, err
				}
				out[i] = u
			}
			return out, nil
		default:
			return nil, fmt.Errorf("%w: unknown type tag %v", ErrMalformed, val[0])
		}
	case map[string]any:
		for k, item := range val {
			u, err := untype(item, resolve)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			val[k] = u
		}
		return val, nil
	default:
		return v, nil
	}
}

// CanEncode reports whether v is a supported property value.
func CanEncode(v any) bool {
	_, err := convert(v, false)
	return err == nil
}

func convert(v any, typed bool) (any, error) {
	switch val := v.(type) {
	case nil, bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val, nil
	case float32:
		return checkFloat(float64(val))
	case float64:
		return checkFloat(val)
	case *state.Node:
		if val == nil {
			return nil, nil
		}
		if typed {
			return []any{NodeType, val.ID()}, nil
		}
		return map[string]any{NodeIDKey: val.ID()}, nil
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return convert(items, typed)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			c, err := convert(item, typed)
			if err != nil {
				return nil, err
			}
			items[i] = c
		}
		if typed {
			return []any{ArrayType, items}, nil
		}
		return items, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(map[string]any, len(val))
		for _, k := range keys {
			c, err := convert(val[k], typed)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj[k] = c
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func checkFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, f)
	}
	return f, nil
}
