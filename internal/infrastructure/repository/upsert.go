package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultChunkSize bounds the rows sent in one upsert statement
const DefaultChunkSize = 500

var (
	// errSequenceDrift means the serial sequence handed out an id that already exists
	errSequenceDrift = errors.New("primary key sequence is behind the table")
	// errMissingConflictIndex means no unique index matches the ON CONFLICT target
	errMissingConflictIndex = errors.New("no unique index matches the conflict target")
)

const (
	pgUniqueViolation        = "23505"
	pgInvalidColumnReference = "42P10"
)

func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && strings.HasSuffix(pgErr.ConstraintName, "_pkey"):
			return errSequenceDrift
		case pgErr.Code == pgInvalidColumnReference:
			return errMissingConflictIndex
		}
	}
	return err
}

// chunkWriter is the storage side of the conflict-repair routine
type chunkWriter[T any] interface {
	upsert(ctx context.Context, rows []T) error
	resyncSequence(ctx context.Context) error
	upsertEach(ctx context.Context, rows []T) error
}

// writeInChunks upserts rows chunk by chunk. A chunk that hits sequence drift gets one
// resync and one retry; a missing conflict index degrades to per-row writes. Anything
// else stops the run with a ConflictError carrying the rows already written.
func writeInChunks[T any](ctx context.Context, w chunkWriter[T], table string, rows []T, size int) (int, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}

	written := 0
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		if err := writeChunk(ctx, w, rows[start:end]); err != nil {
			return written, apperror.NewConflictError(
				fmt.Sprintf("upsert into %s failed at rows %d-%d", table, start+1, end),
			).WithCause(err)
		}
		written += end - start
	}
	return written, nil
}

func writeChunk[T any](ctx context.Context, w chunkWriter[T], chunk []T) error {
	resynced := false
	perRow := false
	for {
		var err error
		if perRow {
			err = w.upsertEach(ctx, chunk)
		} else {
			err = w.upsert(ctx, chunk)
		}

		switch classifyWriteError(err) {
		case nil:
			return nil
		case errSequenceDrift:
			if resynced {
				return err
			}
			if rerr := w.resyncSequence(ctx); rerr != nil {
				return fmt.Errorf("resync sequence: %w", rerr)
			}
			resynced = true
		case errMissingConflictIndex:
			if perRow {
				return err
			}
			perRow = true
		default:
			return err
		}
	}
}

// gormChunkWriter upserts one entity type keyed by its natural key columns
type gormChunkWriter[T any] struct {
	db       *gorm.DB
	table    string
	conflict []string
	updates  []string
	// keepIfNull lists update columns whose stored value survives a NULL in the incoming row
	keepIfNull []string
	// key returns the natural key of a row as column/value pairs
	key func(row *T) map[string]interface{}
	// rowUpdates narrows updates for a single row; nil means all of updates
	rowUpdates func(row *T) []string
}

func (w gormChunkWriter[T]) upsert(ctx context.Context, rows []T) error {
	cols := make([]clause.Column, len(w.conflict))
	for i, name := range w.conflict {
		cols[i] = clause.Column{Name: name}
	}
	return w.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: cols, DoUpdates: w.assignments()}).
		Create(&rows).Error
}

func (w gormChunkWriter[T]) assignments() clause.Set {
	set := make(clause.Set, 0, len(w.updates))
	for _, name := range w.updates {
		value := interface{}(clause.Column{Table: "excluded", Name: name})
		if slices.Contains(w.keepIfNull, name) {
			value = gorm.Expr(fmt.Sprintf("COALESCE(EXCLUDED.%s, %s.%s)", name, w.table, name))
		}
		set = append(set, clause.Assignment{Column: clause.Column{Name: name}, Value: value})
	}
	return set
}

func (w gormChunkWriter[T]) resyncSequence(ctx context.Context) error {
	stmt := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
		w.table, w.table,
	)
	return w.db.WithContext(ctx).Exec(stmt).Error
}

func (w gormChunkWriter[T]) upsertEach(ctx context.Context, rows []T) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			updates := w.updates
			if w.rowUpdates != nil {
				updates = w.rowUpdates(&rows[i])
			}
			res := tx.Model(new(T)).Where(w.key(&rows[i])).Select(updates).Updates(&rows[i])
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				continue
			}
			if err := tx.Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
