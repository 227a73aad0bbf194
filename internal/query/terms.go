package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyTerm is returned when a comma-list contains an empty or bare "!" token.
var ErrEmptyTerm = errors.New("empty term in list")

// AddTerms splits raw on commas and appends one Term per token to must, or to
// mustNot when the token is prefixed with "!". Empty tokens and a bare "!"
// are rejected.
func AddTerms(must, mustNot *[]Node, field, raw string) error {
	for _, tok := range strings.Split(raw, ",") {
		switch {
		case tok == "" || tok == "!":
			return fmt.Errorf("%s: %w", field, ErrEmptyTerm)
		case strings.HasPrefix(tok, "!"):
			*mustNot = append(*mustNot, Term{Field: field, Value: tok[1:]})
		default:
			*must = append(*must, Term{Field: field, Value: tok})
		}
	}
	return nil
}
