package qdrant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// translateFilter converts the Mongo-style filter used by the Pinecone API
// ($eq, $ne, $in, $and, $or, $not) into a Qdrant filter clause.
type clauses struct {
	Must    []any
	Should  []any
	MustNot []any
}

func (c clauses) asMap() map[string]any {
	out := map[string]any{}
	if len(c.Must) > 0 {
		out["must"] = c.Must
	}
	if len(c.Should) > 0 {
		out["should"] = c.Should
	}
	if len(c.MustNot) > 0 {
		out["must_not"] = c.MustNot
	}
	return out
}

func (c *clauses) merge(o clauses) {
	c.Must = append(c.Must, o.Must...)
	c.Should = append(c.Should, o.Should...)
	c.MustNot = append(c.MustNot, o.MustNot...)
}

func filterErr(code OperationErrorCode, format string, args ...any) error {
	return opErr("filter_translate", code, fmt.Sprintf(format, args...), nil)
}

func translateFilter(filter map[string]any) (clauses, error) {
	var out clauses
	for _, key := range sortedKeys(filter) {
		value := filter[key]
		switch strings.ToLower(key) {
		case "$and", "$or":
			items, ok := objectList(value)
			if !ok {
				return clauses{}, filterErr(OperationErrorValidation, "operator %s expects array of objects", key)
			}
			for _, item := range items {
				sub, err := translateFilter(item)
				if err != nil {
					return clauses{}, err
				}
				if strings.EqualFold(key, "$and") {
					out.Must = append(out.Must, sub.asMap())
				} else {
					out.Should = append(out.Should, sub.asMap())
				}
			}
		case "$not":
			item, ok := value.(map[string]any)
			if !ok {
				return clauses{}, filterErr(OperationErrorValidation, "operator $not expects an object")
			}
			sub, err := translateFilter(item)
			if err != nil {
				return clauses{}, err
			}
			out.MustNot = append(out.MustNot, sub.asMap())
		default:
			if strings.HasPrefix(key, "$") {
				return clauses{}, filterErr(OperationErrorUnsupportedFilter, "unsupported top-level filter operator %q", key)
			}
			field, err := translateField(key, value)
			if err != nil {
				return clauses{}, err
			}
			out.merge(field)
		}
	}
	return out, nil
}

func translateField(field string, value any) (clauses, error) {
	var out clauses
	ops, isOps := value.(map[string]any)
	if !isOps {
		v, ok := scalar(value)
		if !ok {
			return clauses{}, filterErr(OperationErrorValidation, "field %q expects scalar value or operator object", field)
		}
		out.Must = append(out.Must, matchValue(field, v))
		return out, nil
	}
	if len(ops) == 0 {
		return clauses{}, filterErr(OperationErrorValidation, "field %q has empty operator map", field)
	}
	for _, op := range sortedKeys(ops) {
		switch strings.ToLower(op) {
		case "$eq", "$ne":
			v, ok := scalar(ops[op])
			if !ok {
				return clauses{}, filterErr(OperationErrorValidation, "operator %s for field %q expects scalar value", op, field)
			}
			if strings.EqualFold(op, "$eq") {
				out.Must = append(out.Must, matchValue(field, v))
			} else {
				out.MustNot = append(out.MustNot, matchValue(field, v))
			}
		case "$in":
			vals, ok := scalarList(ops[op])
			if !ok || len(vals) == 0 {
				return clauses{}, filterErr(OperationErrorValidation, "operator $in for field %q expects a non-empty scalar array", field)
			}
			out.Must = append(out.Must, map[string]any{"key": field, "match": map[string]any{"any": vals}})
		default:
			return clauses{}, filterErr(OperationErrorUnsupportedFilter, "unsupported filter operator %q for field %q", op, field)
		}
	}
	return out, nil
}

func matchValue(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func objectList(value any) ([]map[string]any, bool) {
	raw, ok := value.([]any)
	if !ok {
		if typed, ok := value.([]map[string]any); ok {
			return typed, true
		}
		return nil, false
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, obj)
	}
	return out, true
}

func scalarList(value any) ([]any, bool) {
	switch typed := value.(type) {
	case []string:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, true
	case []any:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			s, ok := scalar(v)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// scalar accepts the payload value types Qdrant can match on exactly.
func scalar(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool, int, int64, uint64:
		return typed, true
	case int32:
		return int64(typed), true
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		return nil, false
	default:
		return nil, false
	}
}
