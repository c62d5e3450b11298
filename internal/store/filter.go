package store

import (
	"fmt"
	"strings"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
)

// FieldSet is the set of column names a GenericFilter may reference for a
// given table; anything outside it is rejected as apierror.InvalidInput
// rather than silently ignored or, worse, concatenated into SQL.
type FieldSet map[string]bool

// translated is a WHERE fragment (without the "WHERE" keyword) plus its
// positional arguments, using $N placeholders starting at argOffset+1.
type translated struct {
	fragment string
	args     []any
}

func translateClause(field string, c model.FieldClause, argN *int, args *[]any) (string, error) {
	next := func(v any) string {
		*argN++
		*args = append(*args, v)
		return fmt.Sprintf("$%d", *argN)
	}

	switch c.Op {
	case model.ClauseEq:
		return fmt.Sprintf("%s = %s", field, next(c.Value)), nil
	case model.ClauseNe:
		return fmt.Sprintf("%s <> %s", field, next(c.Value)), nil
	case model.ClauseGt:
		return fmt.Sprintf("%s > %s", field, next(c.Value)), nil
	case model.ClauseGte:
		return fmt.Sprintf("%s >= %s", field, next(c.Value)), nil
	case model.ClauseLt:
		return fmt.Sprintf("%s < %s", field, next(c.Value)), nil
	case model.ClauseLte:
		return fmt.Sprintf("%s <= %s", field, next(c.Value)), nil
	case model.ClauseLike:
		return fmt.Sprintf("%s LIKE %s", field, next(c.Value)), nil
	case model.ClauseILike:
		return fmt.Sprintf("%s ILIKE %s", field, next(c.Value)), nil
	case model.ClauseIsNull:
		if b, ok := c.Value.(bool); ok && !b {
			return fmt.Sprintf("%s IS NOT NULL", field), nil
		}
		return fmt.Sprintf("%s IS NULL", field), nil
	case model.ClauseHasKey:
		return fmt.Sprintf("%s ? %s", field, next(c.Value)), nil
	case model.ClauseContains:
		return fmt.Sprintf("%s @> %s", field, next(c.Value)), nil
	case model.ClauseIn, model.ClauseNotIn:
		values, ok := c.Value.([]any)
		if !ok {
			return "", apierror.InvalidInputf("clause %s on field %q requires an array value", c.Op, field)
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = next(v)
		}
		op := "IN"
		if c.Op == model.ClauseNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", field, op, strings.Join(placeholders, ", ")), nil
	default:
		return "", apierror.InvalidInputf("unsupported filter clause %q on field %q", c.Op, field)
	}
}

func translateWhereMap(fields FieldSet, where model.WhereMap, argN *int, args *[]any) (string, error) {
	if len(where) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(where))
	for field, clause := range where {
		if !fields[field] {
			return "", apierror.InvalidInputf("unknown filter field %q", field)
		}
		frag, err := translateClause(field, clause, argN, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}
	return strings.Join(parts, " AND "), nil
}

// Translate turns a GenericFilter into a SQL WHERE clause (including the
// "WHERE" keyword when non-empty), its positional args, and the literal
// "LIMIT n OFFSET m" suffix to append after ORDER BY.
func Translate(fields FieldSet, f model.GenericFilter) (where string, limitOffset string, args []any, err error) {
	argN := 0
	whereFrag, err := translateWhereMap(fields, f.Where, &argN, &args)
	if err != nil {
		return "", "", nil, err
	}

	orFrags := make([]string, 0, len(f.OrWhere))
	for _, wm := range f.OrWhere {
		frag, err := translateWhereMap(fields, wm, &argN, &args)
		if err != nil {
			return "", "", nil, err
		}
		if frag != "" {
			orFrags = append(orFrags, fmt.Sprintf("(%s)", frag))
		}
	}

	var clauses []string
	if whereFrag != "" {
		clauses = append(clauses, whereFrag)
	}
	if len(orFrags) > 0 {
		clauses = append(clauses, fmt.Sprintf("(%s)", strings.Join(orFrags, " OR ")))
	}

	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	var lo []string
	if f.Limit != nil {
		argN++
		args = append(args, *f.Limit)
		lo = append(lo, fmt.Sprintf("LIMIT $%d", argN))
	}
	if f.Offset != nil {
		argN++
		args = append(args, *f.Offset)
		lo = append(lo, fmt.Sprintf("OFFSET $%d", argN))
	}
	limitOffset = strings.Join(lo, " ")
	return where, limitOffset, args, nil
}
