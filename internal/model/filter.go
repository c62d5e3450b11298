package model

// Clause is the closed set of comparison operators a GenericFilter field can
// use. Unrecognised clauses or fields are rejected by the persistence
// gateway with apierror.InvalidInput.
type Clause string

const (
	ClauseEq      Clause = "Eq"
	ClauseNe      Clause = "Ne"
	ClauseGt      Clause = "Gt"
	ClauseGte     Clause = "Gte"
	ClauseLt      Clause = "Lt"
	ClauseLte     Clause = "Lte"
	ClauseIn      Clause = "In"
	ClauseNotIn   Clause = "NotIn"
	ClauseLike    Clause = "Like"
	ClauseILike   Clause = "ILike"
	ClauseIsNull  Clause = "IsNull"
	ClauseHasKey  Clause = "HasKey"
	ClauseContains Clause = "Contains"
)

// FieldClause pairs an operator with its operand, e.g. {Op: Gt, Value: 5}.
type FieldClause struct {
	Op    Clause `json:"op"`
	Value any    `json:"value,omitempty"`
}

// WhereMap is a conjunction of per-field clauses (every field must match).
type WhereMap map[string]FieldClause

// GenericFilter is the query contract every persistence-gateway List/Count
// call accepts: a conjunction (Where) plus a disjunction of alternative
// conjunctions (OrWhere), with optional pagination.
type GenericFilter struct {
	Where   WhereMap    `json:"where,omitempty"`
	OrWhere []WhereMap  `json:"or_where,omitempty"`
	Limit   *int        `json:"limit,omitempty"`
	Offset  *int        `json:"offset,omitempty"`
}

// WithEq is a convenience constructor for the common case of a single
// equality clause, e.g. GenericFilter{}.WithEq("namespace", "global").
func (f GenericFilter) WithEq(field string, value any) GenericFilter {
	if f.Where == nil {
		f.Where = WhereMap{}
	}
	f.Where[field] = FieldClause{Op: ClauseEq, Value: value}
	return f
}

// WithLimit sets the Limit field and returns f for chaining.
func (f GenericFilter) WithLimit(n int) GenericFilter {
	f.Limit = &n
	return f
}

// WithOffset sets the Offset field and returns f for chaining.
func (f GenericFilter) WithOffset(n int) GenericFilter {
	f.Offset = &n
	return f
}
