// Package sqldriver implements facts.Driver over database/sql. The sqlite and
// postgres backends embed it and differ only in their Dialect.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/vector"
)

// Dialect captures what differs between SQL engines.
type Dialect struct {
	// Name is used in logs and errors.
	Name string

	// NumberedParams rewrites "?" placeholders to "$1", "$2", ...
	NumberedParams bool

	// Schema is executed statement by statement when the driver opens.
	Schema []string

	// EncodeVector serializes an embedding for storage. Defaults to
	// vector.Encode.
	EncodeVector func([]float32) ([]byte, error)
}

// Driver implements facts.Driver over a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// New runs the dialect schema against db and returns a Driver. The caller
// keeps ownership of db until Close.
func New(ctx context.Context, db *sql.DB, dialect Dialect, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialect.EncodeVector == nil {
		dialect.EncodeVector = func(v []float32) ([]byte, error) {
			return vector.Encode(v), nil
		}
	}

	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating %s schema: %w", dialect.Name, err)
		}
	}

	return &Driver{
		DB:      db,
		dialect: dialect,
		logger:  logger,
	}, nil
}

// Transaction implements facts.Driver.
func (d *Driver) Transaction(ctx context.Context, fn func(tx facts.Tx) error) error {
	sqlTx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&tx{tx: sqlTx, dialect: d.dialect}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			d.logger.Warn("rollback failed",
				zap.String("dialect", d.dialect.Name),
				zap.Error(rbErr),
			)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close implements facts.Driver.
func (d *Driver) Close() error {
	return d.DB.Close()
}

type tx struct {
	tx      *sql.Tx
	dialect Dialect
}

const factColumns = `id, question_norm, answer, source, ttl_days, created_at, updated_at`

func (t *tx) Upsert(ctx context.Context, f facts.Fact, vec []float32) (facts.Fact, bool, error) {
	blob, err := t.dialect.EncodeVector(vec)
	if err != nil {
		return facts.Fact{}, false, fmt.Errorf("encoding embedding: %w", err)
	}

	_, err = t.exec(ctx, `
		INSERT INTO facts (`+factColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (question_norm) DO UPDATE SET
			answer = excluded.answer,
			source = excluded.source,
			ttl_days = excluded.ttl_days,
			updated_at = excluded.updated_at`,
		f.ID, f.QuestionNorm, f.Answer, f.Source, ttlValue(f.TTLDays), f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return facts.Fact{}, false, fmt.Errorf("upserting fact: %w", err)
	}

	stored, err := t.byQuestion(ctx, f.QuestionNorm)
	if err != nil {
		return facts.Fact{}, false, err
	}
	if stored == nil {
		return facts.Fact{}, false, fmt.Errorf("fact %q missing after upsert", f.QuestionNorm)
	}

	_, err = t.exec(ctx, `
		INSERT INTO fact_embeddings (fact_id, vector)
		VALUES (?, ?)
		ON CONFLICT (fact_id) DO UPDATE SET vector = excluded.vector`,
		stored.ID, blob,
	)
	if err != nil {
		return facts.Fact{}, false, fmt.Errorf("storing embedding: %w", err)
	}

	return *stored, stored.ID == f.ID, nil
}

func (t *tx) Delete(ctx context.Context, questionNorm string) (*facts.Fact, error) {
	existing, err := t.byQuestion(ctx, questionNorm)
	if err != nil || existing == nil {
		return nil, err
	}

	if _, err := t.exec(ctx, `DELETE FROM facts WHERE id = ?`, existing.ID); err != nil {
		return nil, fmt.Errorf("deleting fact: %w", err)
	}
	return existing, nil
}

func (t *tx) Expiring(ctx context.Context) ([]facts.Fact, error) {
	return t.listWhere(ctx, `WHERE ttl_days IS NOT NULL`)
}

func (t *tx) DeleteIfUnchanged(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	res, err := t.exec(ctx, `DELETE FROM facts WHERE id = ? AND updated_at = ?`, id, updatedAt)
	if err != nil {
		return false, fmt.Errorf("deleting expired fact: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}

func (t *tx) Candidates(ctx context.Context) ([]facts.Candidate, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT f.id, f.question_norm, f.answer, f.source, f.ttl_days, f.created_at, f.updated_at, e.vector
		FROM facts f
		JOIN fact_embeddings e ON e.fact_id = f.id
		ORDER BY f.created_at, f.id`)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var candidates []facts.Candidate
	for rows.Next() {
		var (
			c    facts.Candidate
			ttl  sql.NullInt64
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.QuestionNorm, &c.Answer, &c.Source, &ttl, &c.CreatedAt, &c.UpdatedAt, &blob); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}

		c.TTLDays = ttlFromNull(ttl)
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()

		c.Vector, err = vector.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for fact %s: %w", c.ID, err)
		}

		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (t *tx) List(ctx context.Context) ([]facts.Fact, error) {
	return t.listWhere(ctx, "")
}

func (t *tx) byQuestion(ctx context.Context, questionNorm string) (*facts.Fact, error) {
	all, err := t.listWhere(ctx, `WHERE question_norm = ?`, questionNorm)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (t *tx) listWhere(ctx context.Context, where string, args ...any) ([]facts.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM facts ` + where + ` ORDER BY created_at, id`

	rows, err := t.tx.QueryContext(ctx, t.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var result []facts.Fact
	for rows.Next() {
		var (
			f   facts.Fact
			ttl sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.QuestionNorm, &f.Answer, &f.Source, &ttl, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}

		f.TTLDays = ttlFromNull(ttl)
		f.CreatedAt = f.CreatedAt.UTC()
		f.UpdatedAt = f.UpdatedAt.UTC()
		result = append(result, f)
	}
	return result, rows.Err()
}

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.rebind(query), args...)
}

// rebind rewrites "?" placeholders for dialects with numbered parameters.
func (t *tx) rebind(query string) string {
	if !t.dialect.NumberedParams {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func ttlValue(ttl *int) any {
	if ttl == nil {
		return nil
	}
	return int64(*ttl)
}

func ttlFromNull(ttl sql.NullInt64) *int {
	if !ttl.Valid {
		return nil
	}
	v := int(ttl.Int64)
	return &v
}
