package query

import (
	"strconv"
	"strings"
)

// Eval reports whether doc satisfies n. Dotted field names descend through
// nested objects; arrays met on the way are flattened, so a predicate matches
// when any reachable value satisfies it.
func Eval(n Node, doc map[string]any) bool {
	switch n := n.(type) {
	case Term:
		return anyValue(doc, n.Field, func(v any) bool { return equal(v, n.Value) })
	case Match:
		return anyValue(doc, n.Field, func(v any) bool { return equal(v, n.Value) })
	case Range:
		return anyValue(doc, n.Field, func(v any) bool { return inRange(v, n) })
	case Exists:
		return len(values(doc, n.Field)) > 0
	case And:
		for _, c := range n {
			if !Eval(c, doc) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range n {
			if Eval(c, doc) {
				return true
			}
		}
		return false
	case Not:
		return !Eval(n.Node, doc)
	}
	return false
}

func anyValue(doc map[string]any, field string, fn func(any) bool) bool {
	for _, v := range values(doc, field) {
		if fn(v) {
			return true
		}
	}
	return false
}

func values(doc map[string]any, field string) []any {
	cur := []any{doc}
	for _, seg := range strings.Split(field, ".") {
		var next []any
		for _, c := range cur {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := m[seg]; ok {
				next = appendFlat(next, v)
			}
		}
		cur = next
	}
	return cur
}

func appendFlat(dst []any, v any) []any {
	switch v := v.(type) {
	case nil:
		return dst
	case []any:
		for _, e := range v {
			dst = appendFlat(dst, e)
		}
		return dst
	default:
		return append(dst, v)
	}
}

func equal(v any, want string) bool {
	switch v := v.(type) {
	case string:
		return v == want
	case float64:
		f, err := strconv.ParseFloat(want, 64)
		return err == nil && f == v
	case bool:
		b, err := strconv.ParseBool(want)
		return err == nil && b == v
	}
	return false
}

func inRange(v any, r Range) bool {
	check := func(bound any, ok func(int) bool) bool {
		if bound == nil {
			return true
		}
		c, valid := compare(v, bound)
		return valid && ok(c)
	}
	return check(r.GTE, func(c int) bool { return c >= 0 }) &&
		check(r.GT, func(c int) bool { return c > 0 }) &&
		check(r.LTE, func(c int) bool { return c <= 0 }) &&
		check(r.LT, func(c int) bool { return c < 0 })
}

// compare orders a document value against a range bound.
func compare(v, bound any) (int, bool) {
	switch b := bound.(type) {
	case string:
		s, ok := v.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, b), true
	case int:
		return compareFloat(v, float64(b))
	case int64:
		return compareFloat(v, float64(b))
	case float64:
		return compareFloat(v, b)
	}
	return 0, false
}

func compareFloat(v any, b float64) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	switch {
	case f < b:
		return -1, true
	case f > b:
		return 1, true
	}
	return 0, true
}
