package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/benvon/tagtube/internal/models"
)

// insertBatchSize bounds the rows per multi-row INSERT so the statement stays
// under the bind-parameter limits of both engines.
const insertBatchSize = 300

// args accumulates bind values and hands out matching $n placeholders
type args struct {
	values []any
}

// add binds one value and returns its placeholder
func (a *args) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

// list binds every string and returns a comma-separated placeholder list for IN (...)
func (a *args) list(vs []string) string {
	placeholders := make([]string, len(vs))
	for i, v := range vs {
		placeholders[i] = a.add(v)
	}
	return strings.Join(placeholders, ", ")
}

// inSet binds vs as a single parameter and returns a predicate that is true
// when column equals any of them. The statement size does not depend on
// len(vs), so caller-supplied lists of any length stay within driver limits.
func (db *DB) inSet(a *args, column string, vs []string) string {
	if db.dialect == DialectPostgres {
		return column + ` = ANY(` + a.add(pq.Array(vs)) + `)`
	}
	encoded, _ := json.Marshal(vs) // a []string always encodes
	return column + ` IN (SELECT value FROM json_each(` + a.add(string(encoded)) + `))`
}

// pagedQuery is a base SELECT producing one distinct text column named value.
// The data page and the total count are both computed from this same text
// and bind list, so they cannot drift apart.
type pagedQuery struct {
	base string
	args args
}

// runPaged returns one page of values ordered byte-wise ascending plus the total
// count of the base query. Both statements run inside one read transaction.
func (db *DB) runPaged(ctx context.Context, q *pagedQuery, skip, limit int) (models.Page[string], error) {
	countQuery := `SELECT COUNT(*) FROM (` + q.base + `) AS matched`
	countArgs := q.args.values

	dataArgs := args{values: append([]any(nil), q.args.values...)}
	dataQuery := fmt.Sprintf(`SELECT value FROM (%s) AS matched ORDER BY %s LIMIT %s OFFSET %s`,
		q.base, db.bytewise("value"), dataArgs.add(limit), dataArgs.add(skip))

	tx, err := db.BeginTx(ctx, db.readTxOptions())
	if err != nil {
		return models.Page[string]{}, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, countQuery, countArgs...).Scan(&count); err != nil {
		return models.Page[string]{}, fmt.Errorf("failed to count matches: %w", err)
	}

	data := []string{}
	if skip < count {
		data, err = scanStrings(tx.QueryContext(ctx, dataQuery, dataArgs.values...))
		if err != nil {
			return models.Page[string]{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Page[string]{}, fmt.Errorf("failed to commit read transaction: %w", err)
	}

	return models.Page[string]{Data: data, Count: count}, nil
}

// scanStrings drains a single-column result set
func scanStrings(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating values: %w", err)
	}
	return values, nil
}

// chunk splits values into slices of at most size elements
func chunk(values []string, size int) [][]string {
	var chunks [][]string
	for len(values) > size {
		chunks = append(chunks, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		chunks = append(chunks, values)
	}
	return chunks
}

// escapeLike escapes LIKE wildcards so substring matches are literal.
// Pair with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
