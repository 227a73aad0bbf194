package query

// Elastic renders q as an Elasticsearch search body.
func (q Query) Elastic() map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":     elasticList(q.Must),
				"must_not": elasticList(q.MustNot),
				"filter": map[string]any{
					"bool": map[string]any{"must": elasticList(q.Filter)},
				},
			},
		},
	}
}

// ElasticNode renders a single predicate in the Elasticsearch query DSL.
func ElasticNode(n Node) map[string]any {
	switch n := n.(type) {
	case Term:
		return map[string]any{"term": map[string]any{n.Field: n.Value}}
	case Match:
		return map[string]any{"match": map[string]any{n.Field: n.Value}}
	case Range:
		bounds := map[string]any{}
		for op, v := range map[string]any{"gte": n.GTE, "gt": n.GT, "lte": n.LTE, "lt": n.LT} {
			if v != nil {
				bounds[op] = v
			}
		}
		return map[string]any{"range": map[string]any{n.Field: bounds}}
	case Exists:
		return map[string]any{"exists": map[string]any{"field": n.Field}}
	case And:
		return map[string]any{"bool": map[string]any{"must": elasticList(n)}}
	case Or:
		return map[string]any{"bool": map[string]any{"should": elasticList(n)}}
	case Not:
		return map[string]any{"bool": map[string]any{"must_not": ElasticNode(n.Node)}}
	}
	return map[string]any{"match_none": map[string]any{}}
}

func elasticList(nodes []Node) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ElasticNode(n))
	}
	return out
}
