package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SQL renders n as a boolean Postgres expression over the jsonb column col.
// Placeholders are numbered from start; the returned args bind them in order.
func SQL(n Node, col string, start int) (string, []any) {
	w := &sqlWriter{col: col, start: start}
	return w.render(n), w.args
}

type sqlWriter struct {
	col   string
	start int
	args  []any
}

func (w *sqlWriter) render(n Node) string {
	switch n := n.(type) {
	case Term:
		return w.term(n.Field, n.Value)
	case Match:
		return w.term(n.Field, n.Value)
	case Range:
		var conds []string
		vars := map[string]any{}
		for _, b := range []struct {
			name, op string
			v        any
		}{{"gte", ">=", n.GTE}, {"gt", ">", n.GT}, {"lte", "<=", n.LTE}, {"lt", "<", n.LT}} {
			if b.v == nil {
				continue
			}
			conds = append(conds, fmt.Sprintf("@ %s $%s", b.op, b.name))
			vars[b.name] = b.v
		}
		if len(conds) == 0 {
			return w.pathExists(n.Field, "@ != null", vars)
		}
		return w.pathExists(n.Field, strings.Join(conds, " && "), vars)
	case Exists:
		return w.pathExists(n.Field, "@ != null", map[string]any{})
	case And:
		return w.join(n, " AND ", "TRUE")
	case Or:
		return w.join(n, " OR ", "FALSE")
	case Not:
		return "NOT (" + w.render(n.Node) + ")"
	}
	return "FALSE"
}

func (w *sqlWriter) term(field, value string) string {
	vars := map[string]any{"s": value}
	filter := "@ == $s"
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		vars["n"] = f
		filter = "@ == $s || @ == $n"
	}
	return w.pathExists(field, filter, vars)
}

func (w *sqlWriter) join(nodes []Node, sep, empty string) string {
	if len(nodes) == 0 {
		return empty
	}
	parts := make([]string, 0, len(nodes))
	for _, c := range nodes {
		parts = append(parts, w.render(c))
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (w *sqlWriter) pathExists(field, filter string, vars map[string]any) string {
	b, _ := json.Marshal(vars)
	path := w.arg(jsonPath(field) + " ? (" + filter + ")")
	v := w.arg(string(b))
	return fmt.Sprintf("jsonb_path_exists(%s, %s::jsonpath, %s::jsonb)", w.col, path, v)
}

func (w *sqlWriter) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(w.start+len(w.args)-1)
}

// jsonPath quotes each segment of a dotted field name, relying on lax mode to
// unwrap arrays along the way.
func jsonPath(field string) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, seg := range strings.Split(field, ".") {
		sb.WriteString(".")
		sb.WriteString(strconv.Quote(seg))
	}
	return sb.String()
}
