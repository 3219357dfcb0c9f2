package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/desksync/backend/internal/models"
)

type WriteMode int

const (
	WriteAppend WriteMode = iota
	WriteTruncate
)

// EnsureTable creates the target table when missing. Inferred columns are all
// nullable; consistency comes from the merge key, not constraints.
func (s *Store) EnsureTable(ctx context.Context, table string, schema Schema) error {
	cols := make([]string, 0, len(schema))
	for _, f := range schema {
		cols = append(cols, fmt.Sprintf("%s %s", pgx.Identifier{f.Name}.Sanitize(), f.columnType()))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(cols, ", "))
	_, err := s.Pool.Exec(ctx, ddl)
	return err
}

// Write loads a batch into the table, creating it first when needed.
// WriteTruncate replaces the table contents wholesale; WriteAppend adds rows.
func (s *Store) Write(ctx context.Context, table string, records []models.Record, schema Schema, mode WriteMode) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.EnsureTable(ctx, table, schema); err != nil {
		return 0, err
	}
	if mode == WriteTruncate {
		if _, err := s.Pool.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{table}.Sanitize()); err != nil {
			return 0, err
		}
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(schema))
		for i, f := range schema {
			v, err := columnValue(rec[f.Name], f)
			if err != nil {
				return 0, fmt.Errorf("column %s: %w", f.Name, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	count, err := s.Pool.CopyFrom(ctx, pgx.Identifier{table}, schema.Names(), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, err
	}
	s.Logger.Info().Str("table", table).Int64("rows", count).Msg("loaded batch")
	return count, nil
}

// MergeUpsert writes the batch to a staging table, then applies a set-based
// merge keyed on keyColumn: matched rows have every non-key column
// overwritten from staging, unmatched rows are inserted, and the staging
// table is dropped. Applying the same batch twice is a no-op the second time.
// Concurrent merges against one target are not serialized here; the caller
// runs one sync at a time.
func (s *Store) MergeUpsert(ctx context.Context, table string, records []models.Record, schema Schema, keyColumn string) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.EnsureTable(ctx, table, schema); err != nil {
		return 0, err
	}

	staging := table + "_staging"
	count, err := s.Write(ctx, staging, records, schema, WriteTruncate)
	if err != nil {
		return 0, err
	}

	target := pgx.Identifier{table}.Sanitize()
	source := pgx.Identifier{staging}.Sanitize()
	key := pgx.Identifier{keyColumn}.Sanitize()

	var sets []string
	for _, f := range schema {
		if f.Name == keyColumn {
			continue
		}
		col := pgx.Identifier{f.Name}.Sanitize()
		sets = append(sets, fmt.Sprintf("%s = s.%s", col, col))
	}
	cols := make([]string, len(schema))
	srcCols := make([]string, len(schema))
	for i, f := range schema {
		cols[i] = pgx.Identifier{f.Name}.Sanitize()
		srcCols[i] = "s." + cols[i]
	}

	err = s.WithTx(ctx, func(tx pgx.Tx) error {
		update := fmt.Sprintf("UPDATE %s AS t SET %s FROM %s AS s WHERE t.%s = s.%s",
			target, strings.Join(sets, ", "), source, key, key)
		if _, err := tx.Exec(ctx, update); err != nil {
			return fmt.Errorf("merge update: %w", err)
		}

		insert := fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s AS s WHERE NOT EXISTS (SELECT 1 FROM %s AS t WHERE t.%s = s.%s)",
			target, strings.Join(cols, ", "), strings.Join(srcCols, ", "), source, target, key, key)
		if _, err := tx.Exec(ctx, insert); err != nil {
			return fmt.Errorf("merge insert: %w", err)
		}

		if _, err := tx.Exec(ctx, "DROP TABLE "+source); err != nil {
			return fmt.Errorf("drop staging: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.Logger.Info().Str("table", table).Int64("rows", count).Msg("merged batch")
	return count, nil
}

// columnValue coerces a record value into something pgx can encode for the
// inferred column type.
func columnValue(v any, f Field) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.Repeated {
		items, ok := v.([]any)
		if !ok {
			if ss, ok := v.([]string); ok {
				return ss, nil
			}
			return nil, fmt.Errorf("expected list, got %T", v)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	}

	switch f.Type {
	case TypeRecord:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return b, nil
	case TypeTimestamp:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case *time.Time:
			return t, nil
		default:
			return nil, fmt.Errorf("expected timestamp, got %T", v)
		}
	case TypeBigint:
		// columns inferred from whole-valued JSON numbers still receive
		// float64 values at load time
		switch n := v.(type) {
		case float64:
			return int64(n), nil
		case float32:
			return int64(n), nil
		default:
			return v, nil
		}
	case TypeText:
		return fmt.Sprint(v), nil
	default:
		return v, nil
	}
}
