package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
)

// CreateFrom inserts row into table via a named-parameter INSERT built from
// row's db struct tags, running off the gateway's blocking-call pool.
// Named create_from/create_try_from in the original nanocld (see
// bin/nanocld/src/repositories/generic/create.rs); create_try_from's
// distinction (returning the row even if a unique-constraint race already
// inserted it) is not meaningful over Postgres INSERT semantics and is
// folded into the same call here.
func CreateFrom[T any](ctx context.Context, g *Gateway, table string, cols []string, row T) error {
	_, err := Do(ctx, g.Pool, func(ctx context.Context) (struct{}, error) {
		placeholders := make([]string, len(cols))
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c
			placeholders[i] = ":" + c
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table,
			joinComma(names), joinComma(placeholders))
		_, err := sqlx.NamedExecContext(ctx, g.Querier(ctx), query, row)
		return struct{}{}, classify(table, err)
	})
	return err
}

// ReadByPK fetches the row with primary key pk, or apierror.NotFound.
func ReadByPK[T any](ctx context.Context, g *Gateway, table, pkCol string, pk any) (T, error) {
	return Do(ctx, g.Pool, func(ctx context.Context) (T, error) {
		var out T
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", table, pkCol)
		err := g.Querier(ctx).GetContext(ctx, &out, query, pk)
		if errors.Is(err, sql.ErrNoRows) {
			return out, apierror.NotFoundf("%s %v not found", table, pk)
		}
		return out, classify(table, err)
	})
}

// ReadByPKInto fetches the row with primary key pk into dest, a pointer to
// the caller's own row type. Unlike ReadByPK it takes no generic type
// parameter, so callers that only hold a row as `any` — internal/lifecycle,
// dispatching through registry.Capability.NewRow — can still scan into it.
func ReadByPKInto(ctx context.Context, g *Gateway, table, pkCol string, pk any, dest any) error {
	_, err := Do(ctx, g.Pool, func(ctx context.Context) (struct{}, error) {
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", table, pkCol)
		err := g.Querier(ctx).GetContext(ctx, dest, query, pk)
		if errors.Is(err, sql.ErrNoRows) {
			return struct{}{}, apierror.NotFoundf("%s %v not found", table, pk)
		}
		return struct{}{}, classify(table, err)
	})
	return err
}

// ReadBy lists rows matching filter, translated against fields.
func ReadBy[T any](ctx context.Context, g *Gateway, table string, fields FieldSet, filter model.GenericFilter) ([]T, error) {
	return Do(ctx, g.Pool, func(ctx context.Context) ([]T, error) {
		where, limitOffset, args, err := Translate(fields, filter)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf("SELECT * FROM %s %s ORDER BY created_at DESC %s", table, where, limitOffset)
		var out []T
		err = g.Querier(ctx).SelectContext(ctx, &out, query, args...)
		return out, classify(table, err)
	})
}

// ReadByInto lists rows matching filter into destSlicePtr (a pointer to a
// slice of the caller's own row type), the list-oriented counterpart to
// ReadByPKInto: callers that only hold a row type as `any` — internal/
// lifecycle's List, dispatching through registry.Capability.NewRow — can
// still scan a whole page without a compile-time type parameter.
func ReadByInto(ctx context.Context, g *Gateway, table string, fields FieldSet, filter model.GenericFilter, destSlicePtr any) error {
	_, err := Do(ctx, g.Pool, func(ctx context.Context) (struct{}, error) {
		where, limitOffset, args, err := Translate(fields, filter)
		if err != nil {
			return struct{}{}, err
		}
		query := fmt.Sprintf("SELECT * FROM %s %s ORDER BY created_at DESC %s", table, where, limitOffset)
		err = g.Querier(ctx).SelectContext(ctx, destSlicePtr, query, args...)
		return struct{}{}, classify(table, err)
	})
	return err
}

// CountBy counts rows matching filter.
func CountBy(ctx context.Context, g *Gateway, table string, fields FieldSet, filter model.GenericFilter) (int64, error) {
	return Do(ctx, g.Pool, func(ctx context.Context) (int64, error) {
		where, _, args, err := Translate(fields, filter)
		if err != nil {
			return 0, err
		}
		query := fmt.Sprintf("SELECT count(*) FROM %s %s", table, where)
		var n int64
		err = g.Querier(ctx).GetContext(ctx, &n, query, args...)
		return n, classify(table, err)
	})
}

// UpdateByPK runs a named-parameter UPDATE of the given columns for the row
// with primary key pk.
func UpdateByPK[T any](ctx context.Context, g *Gateway, table, pkCol string, pk any, cols []string, row T) error {
	_, err := Do(ctx, g.Pool, func(ctx context.Context) (struct{}, error) {
		sets := make([]string, len(cols))
		for i, c := range cols {
			sets[i] = fmt.Sprintf("%s = :%s", c, c)
		}
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s", table, joinComma(sets), pkCol, pkCol)
		res, err := sqlx.NamedExecContext(ctx, g.Querier(ctx), query, row)
		if err != nil {
			return struct{}{}, classify(table, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return struct{}{}, apierror.NotFoundf("%s %v not found", table, pk)
		}
		return struct{}{}, nil
	})
	return err
}

// DelByPK deletes the row with primary key pk.
func DelByPK(ctx context.Context, g *Gateway, table, pkCol string, pk any) error {
	_, err := Do(ctx, g.Pool, func(ctx context.Context) (struct{}, error) {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, pkCol)
		_, err := g.Querier(ctx).ExecContext(ctx, query, pk)
		return struct{}{}, classify(table, err)
	})
	return err
}

// DelBy deletes every row matching filter.
func DelBy(ctx context.Context, g *Gateway, table string, fields FieldSet, filter model.GenericFilter) error {
	_, err := Do(ctx, g.Pool, func(ctx context.Context) (struct{}, error) {
		where, _, args, err := Translate(fields, filter)
		if err != nil {
			return struct{}{}, err
		}
		query := fmt.Sprintf("DELETE FROM %s %s", table, where)
		_, err = g.Querier(ctx).ExecContext(ctx, query, args...)
		return struct{}{}, classify(table, err)
	})
	return err
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// classify wraps a raw database/sql error with the table name and a
// best-effort apierror.Kind. A Postgres unique_violation (23505) becomes
// apierror.AlreadyExists rather than Internal, so a racing duplicate
// create is reported the same way the pre-insert existence check is.
func classify(table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apierror.WrapTable(table, apierror.NotFoundf("not found"))
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apierror.WrapTable(table, apierror.AlreadyExistsf("already exists"))
	}
	return apierror.WrapTable(table, apierror.Wrap(apierror.Internal, "persistence error", err))
}
