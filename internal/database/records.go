package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"hotelbooking/internal/store"
)

const insertColumns = `pk, sk, entity_type, gsi1pk, gsi1sk, gsi2pk, gsi2sk, gsi3pk, gsi3sk,
	gsi4pk, gsi4sk, gsi5pk, gsi5sk, attrs, updated_at`

const insertPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func rowArgs(rec store.Record) ([]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	args := []any{rec.PK(), rec.SK(), nullable(rec.EntityType())}
	for _, attr := range indexAttrOrder {
		args = append(args, nullable(rec.String(attr)))
	}
	return append(args, string(data)), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (db *DB) Get(ctx context.Context, pk, sk string) (store.Record, error) {
	var data string
	err := db.QueryRowContext(ctx, `SELECT attrs FROM records WHERE pk = ? AND sk = ?`, pk, sk).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", pk, sk, err)
	}
	return store.UnmarshalRecord([]byte(data))
}

func (db *DB) Put(ctx context.Context, rec store.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	args, err := rowArgs(rec.Clone())
	if err != nil {
		return err
	}

	query := `INSERT OR REPLACE INTO records (` + insertColumns + `) VALUES (` + insertPlaceholders + `)`
	err = db.withRetry(ctx, "put", func() error {
		_, err := db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to put record %s/%s: %w", rec.PK(), rec.SK(), err)
	}
	return nil
}

func (db *DB) PutIfAbsent(ctx context.Context, rec store.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	args, err := rowArgs(rec.Clone())
	if err != nil {
		return err
	}

	query := `INSERT INTO records (` + insertColumns + `) VALUES (` + insertPlaceholders + `)
		ON CONFLICT(pk, sk) DO NOTHING`
	var affected int64
	err = db.withRetry(ctx, "put_if_absent", func() error {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if isUniqueViolation(err) {
		return store.ErrConditionFailed
	}
	if err != nil {
		return fmt.Errorf("failed to put record %s/%s: %w", rec.PK(), rec.SK(), err)
	}
	if affected == 0 {
		return store.ErrConditionFailed
	}
	return nil
}

func (db *DB) Update(ctx context.Context, pk, sk string, attrs map[string]any) (store.Record, error) {
	for _, key := range []string{store.AttrPK, store.AttrSK} {
		if _, ok := attrs[key]; ok {
			return nil, fmt.Errorf("%w: %s is immutable", store.ErrInvalidQuery, key)
		}
	}

	var post store.Record
	err := db.withRetry(ctx, "update", func() error {
		var err error
		post, err = db.updateTx(ctx, pk, sk, attrs)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update record %s/%s: %w", pk, sk, err)
	}
	return post, nil
}

func (db *DB) updateTx(ctx context.Context, pk, sk string, attrs map[string]any) (store.Record, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT attrs FROM records WHERE pk = ? AND sk = ?`, pk, sk).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec, err := store.UnmarshalRecord([]byte(data))
	if err != nil {
		return nil, err
	}
	for k, v := range attrs {
		if v == nil {
			delete(rec, k)
			continue
		}
		rec[k] = store.Normalize(v)
	}

	if err := replaceRow(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return rec, nil
}

func replaceRow(ctx context.Context, ex execer, rec store.Record) error {
	args, err := rowArgs(rec)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT OR REPLACE INTO records (`+insertColumns+`) VALUES (`+insertPlaceholders+`)`, args...)
	return err
}

func (db *DB) DeleteItem(ctx context.Context, pk, sk string) error {
	err := db.withRetry(ctx, "delete", func() error {
		_, err := db.ExecContext(ctx, `DELETE FROM records WHERE pk = ? AND sk = ?`, pk, sk)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", pk, sk, err)
	}
	return nil
}

func (db *DB) QueryIndex(ctx context.Context, q store.Query) (*store.Page, error) {
	pkAttr, skAttr, err := store.IndexKeys(q.Index)
	if err != nil {
		return nil, err
	}
	if q.Partition == "" {
		return nil, fmt.Errorf("%w: partition value required", store.ErrInvalidQuery)
	}
	pkCol, skCol := "pk", "sk"
	if q.Index != store.IndexPrimary {
		pkCol, skCol = indexColumns[pkAttr], indexColumns[skAttr]
	}

	where := []string{pkCol + " = ?"}
	args := []any{q.Partition}
	if q.SortPrefix != "" {
		where = append(where, fmt.Sprintf("substr(%s, 1, ?) = ?", skCol))
		args = append(args, utf8.RuneCountInString(q.SortPrefix), q.SortPrefix)
	}
	if q.StartAfter != nil {
		if q.Index == store.IndexPrimary {
			where = append(where, "(sk, pk) > (?, ?)")
			args = append(args, q.StartAfter.SK, q.StartAfter.PK)
		} else {
			where = append(where, fmt.Sprintf("(%s, pk, sk) > (?, ?, ?)", skCol))
			args = append(args, q.StartAfter.IndexSK, q.StartAfter.PK, q.StartAfter.SK)
		}
	}

	order := fmt.Sprintf("%s, pk, sk", skCol)
	if q.Index == store.IndexPrimary {
		order = "sk, pk"
	}
	return db.page(ctx, "query", where, args, order, skAttr, q.Index != store.IndexPrimary, q.Filter, q.Limit)
}

func (db *DB) Scan(ctx context.Context, q store.ScanQuery) (*store.Page, error) {
	var where []string
	var args []any
	if q.StartAfter != nil {
		where = append(where, "(pk, sk) > (?, ?)")
		args = append(args, q.StartAfter.PK, q.StartAfter.SK)
	}
	return db.page(ctx, "scan", where, args, "pk, sk", "", false, q.Filter, q.Limit)
}

func (db *DB) page(ctx context.Context, op string, where []string, args []any, order, skAttr string,
	withIndexSK bool, filter *store.Filter, limit int,
) (*store.Page, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	cond, filterArgs, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}
	where = append(where, cond)
	args = append(args, filterArgs...)

	query := `SELECT attrs FROM records WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + order
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit+1)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s records: %w", op, err)
	}
	defer rows.Close()

	page := &store.Page{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := store.UnmarshalRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	if limit > 0 && len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[limit-1]
		next := store.Cursor{PK: last.PK(), SK: last.SK()}
		if withIndexSK {
			next.IndexSK = last.String(skAttr)
		}
		page.Next = &next
	}
	return page, nil
}
