package facts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/embeddings"
)

// Config wires a Store to its collaborators.
type Config struct {
	// Driver persists facts and embeddings. Required.
	Driver Driver

	// Embedder turns normalized questions into vectors. Required.
	Embedder embeddings.Embedder

	// Threshold is the minimum cosine similarity for a lookup match.
	// Zero selects DefaultThreshold.
	Threshold float64

	// DefaultSource tags upserts that name no source. Blank selects DefaultSource.
	DefaultSource string

	// Now is the clock used for timestamps and TTL checks. Defaults to time.Now.
	Now func() time.Time

	// Observer, when set, is told about every committed change.
	Observer Observer

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Store is the fact memory. It is safe for concurrent use.
type Store struct {
	driver        Driver
	embedder      embeddings.Embedder
	defaultSource string
	now           func() time.Time
	observer      Observer
	logger        *zap.Logger

	// threshold holds math.Float64bits of the active threshold so it can be
	// swapped while lookups are in flight.
	threshold atomic.Uint64
}

// NewStore validates c and returns a Store.
func NewStore(c Config) (*Store, error) {
	if c.Driver == nil {
		return nil, errors.New("fact driver is required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}

	threshold := c.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	s := &Store{
		driver:        c.Driver,
		embedder:      c.Embedder,
		defaultSource: c.DefaultSource,
		now:           c.Now,
		observer:      c.Observer,
		logger:        c.Logger,
	}

	if s.defaultSource == "" {
		s.defaultSource = DefaultSource
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.threshold.Store(math.Float64bits(threshold))

	return s, nil
}

// Threshold returns the similarity threshold used by Lookup.
func (s *Store) Threshold() float64 {
	return math.Float64frombits(s.threshold.Load())
}

// SetThreshold replaces the threshold used by Lookup.
func (s *Store) SetThreshold(threshold float64) error {
	if err := validateThreshold(threshold); err != nil {
		return err
	}
	s.threshold.Store(math.Float64bits(threshold))
	return nil
}

// Upsert creates or refreshes the fact for in.Question and returns its id.
//
// The embedding is computed before any transaction is opened; if it fails
// nothing is written.
func (s *Store) Upsert(ctx context.Context, in UpsertInput) (string, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return "", &ValidationError{Field: "question", Reason: "must not be empty"}
	}
	answer := strings.TrimSpace(in.Answer)
	if answer == "" {
		return "", &ValidationError{Field: "answer", Reason: "must not be empty"}
	}
	if in.TTLDays != nil && *in.TTLDays < 1 {
		return "", &ValidationError{Field: "ttl_days", Reason: "must be at least 1 when set"}
	}

	norm := Normalize(question)
	if norm == "" {
		return "", &ValidationError{Field: "question", Reason: "has no content after normalization"}
	}

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = s.defaultSource
	}

	vector, err := s.embed(ctx, norm)
	if err != nil {
		return "", err
	}

	now := s.timestamp()
	candidate := Fact{
		ID:           uuid.NewString(),
		QuestionNorm: norm,
		Answer:       answer,
		Source:       source,
		TTLDays:      copyTTL(in.TTLDays),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var (
		stored  Fact
		created bool
	)
	err = s.driver.Transaction(ctx, func(tx Tx) error {
		var err error
		stored, created, err = tx.Upsert(ctx, candidate, vector)
		return err
	})
	if err != nil {
		return "", storageErr("upsert", err)
	}

	s.logger.Debug("fact upserted",
		zap.String("fact_id", stored.ID),
		zap.String("question_norm", norm),
		zap.Bool("created", created),
		zap.String("source", source),
	)

	s.notify(Change{Kind: ChangeUpserted, Fact: stored, Created: created, At: now})

	return stored.ID, nil
}

// Lookup answers question from memory using the store's threshold.
// It returns ErrNotFound on a clean miss.
func (s *Store) Lookup(ctx context.Context, question string) (*Match, error) {
	return s.LookupWithThreshold(ctx, question, s.Threshold())
}

// LookupWithThreshold answers question from memory, requiring a cosine
// similarity of at least threshold.
//
// Expired facts are swept before the scan. Embedding failures are returned as
// EmbeddingProviderError and are never reported as a miss.
func (s *Store) LookupWithThreshold(ctx context.Context, question string, threshold float64) (*Match, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	if _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}

	norm := Normalize(question)
	if norm == "" {
		return nil, &ValidationError{Field: "question", Reason: "must not be empty"}
	}

	query, err := s.embed(ctx, norm)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	err = s.driver.Transaction(ctx, func(tx Tx) error {
		var err error
		candidates, err = tx.Candidates(ctx)
		return err
	})
	if err != nil {
		return nil, storageErr("scan", err)
	}

	now := s.now()
	live := candidates[:0]
	for _, c := range candidates {
		if !c.Expired(now) {
			live = append(live, c)
		}
	}

	top, similarity, ok := nearest(query, live)
	if !ok || similarity < threshold {
		s.logger.Debug("fact lookup missed",
			zap.String("question_norm", norm),
			zap.Int("candidates", len(live)),
			zap.Float64("best_similarity", bestOrZero(ok, similarity)),
			zap.Float64("threshold", threshold),
		)
		return nil, ErrNotFound
	}

	s.logger.Debug("fact lookup matched",
		zap.String("question_norm", norm),
		zap.String("fact_id", top.ID),
		zap.Float64("similarity", similarity),
	)

	return &Match{
		FactID:     top.ID,
		Question:   top.QuestionNorm,
		Answer:     top.Answer,
		Similarity: similarity,
		Source:     top.Source,
		UpdatedAt:  top.UpdatedAt,
	}, nil
}

// Forget deletes the fact for question, reporting whether one existed.
func (s *Store) Forget(ctx context.Context, question string) (bool, error) {
	norm := Normalize(question)
	if norm == "" {
		return false, nil
	}

	var deleted *Fact
	err := s.driver.Transaction(ctx, func(tx Tx) error {
		var err error
		deleted, err = tx.Delete(ctx, norm)
		return err
	})
	if err != nil {
		return false, storageErr("forget", err)
	}

	if deleted == nil {
		return false, nil
	}

	s.logger.Debug("fact forgotten",
		zap.String("fact_id", deleted.ID),
		zap.String("question_norm", norm),
	)

	s.notify(Change{Kind: ChangeForgotten, Fact: *deleted, At: s.now()})

	return true, nil
}

// Sweep deletes every expired fact and returns how many were removed. A fact
// refreshed by a concurrent upsert after it was read here is left alone.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	var expired []Fact
	err := s.driver.Transaction(ctx, func(tx Tx) error {
		expired = expired[:0]

		withTTL, err := tx.Expiring(ctx)
		if err != nil {
			return err
		}

		for _, f := range withTTL {
			if !f.Expired(now) {
				continue
			}

			removed, err := tx.DeleteIfUnchanged(ctx, f.ID, f.UpdatedAt)
			if err != nil {
				return err
			}
			if removed {
				expired = append(expired, f)
			}
		}

		return nil
	})
	if err != nil {
		return 0, storageErr("sweep", err)
	}

	if len(expired) > 0 {
		s.logger.Info("expired facts swept", zap.Int("count", len(expired)))
	}

	for _, f := range expired {
		s.notify(Change{Kind: ChangeExpired, Fact: f, At: now})
	}

	return len(expired), nil
}

// List returns every stored fact, oldest first. Facts that are expired but not
// yet swept are included.
func (s *Store) List(ctx context.Context) ([]Fact, error) {
	var all []Fact
	err := s.driver.Transaction(ctx, func(tx Tx) error {
		var err error
		all, err = tx.List(ctx)
		return err
	})
	if err != nil {
		return nil, storageErr("list", err)
	}
	return all, nil
}

// Live returns the stored facts that have not expired by the store's clock,
// oldest first. Unlike Lookup it does not sweep.
func (s *Store) Live(ctx context.Context) ([]Fact, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	live := all[:0]
	for _, f := range all {
		if !f.Expired(now) {
			live = append(live, f)
		}
	}
	return live, nil
}

// embed computes the vector for normalized text and rejects malformed output.
func (s *Store) embed(ctx context.Context, norm string) ([]float32, error) {
	vector, err := s.embedder.Embed(ctx, norm)
	if err != nil {
		return nil, &EmbeddingProviderError{Err: err}
	}

	if len(vector) == 0 {
		return nil, &EmbeddingProviderError{Err: errors.New("empty embedding returned")}
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &EmbeddingProviderError{Err: fmt.Errorf("non-finite value at index %d", i)}
		}
	}

	return vector, nil
}

// timestamp is the clock truncated to the precision every driver can store.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Store) notify(change Change) {
	if s.observer != nil {
		s.observer.FactChanged(change)
	}
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return &ValidationError{Field: "threshold", Reason: "must be within [0, 1]"}
	}
	return nil
}

func storageErr(op string, err error) error {
	var storeErr *StorageError
	if errors.As(err, &storeErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func copyTTL(ttl *int) *int {
	if ttl == nil {
		return nil
	}
	v := *ttl
	return &v
}

func bestOrZero(ok bool, similarity float64) float64 {
	if !ok {
		return 0
	}
	return similarity
}
