// Package facts is aurion's fact memory: a small semantic cache of
// user-taught question/answer corrections.
//
// Facts are keyed by their normalized question. Each live fact carries exactly
// one embedding computed from that normalized question, and a lookup answers
// with the most similar fact when its cosine similarity reaches the threshold.
// Facts may carry a time-to-live in days, counted from their last upsert.
//
// The [Store] owns the semantics (normalization, validation, embedding, the
// similarity scan and TTL policy). Persistence is delegated to a [Driver],
// which only has to provide atomic transactions over the fact/embedding pair.
package facts

import "time"

// DefaultSource is the provenance tag applied when an upsert names none.
const DefaultSource = "user-correction"

// DefaultThreshold is the similarity a lookup requires when neither the caller
// nor the store configuration overrides it.
const DefaultThreshold = 0.85

// Fact is a durable question/answer record.
type Fact struct {
	// ID is the surrogate identifier assigned when the fact is created. It
	// survives later upserts of the same normalized question.
	ID string `json:"id"`

	// QuestionNorm is the normalized question, unique across live facts.
	QuestionNorm string `json:"question_norm"`

	// Answer is the trusted answer text.
	Answer string `json:"answer"`

	// Source is an informational provenance tag.
	Source string `json:"source"`

	// TTLDays, when set, expires the fact TTLDays after UpdatedAt.
	TTLDays *int `json:"ttl_days,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpiresAt reports when the fact expires. The boolean is false for facts
// without a TTL.
func (f *Fact) ExpiresAt() (time.Time, bool) {
	if f.TTLDays == nil {
		return time.Time{}, false
	}
	return f.UpdatedAt.Add(time.Duration(*f.TTLDays) * 24 * time.Hour), true
}

// Expired reports whether the fact is past its TTL at now.
func (f *Fact) Expired(now time.Time) bool {
	expiresAt, ok := f.ExpiresAt()
	return ok && now.After(expiresAt)
}

// Candidate is a live fact paired with its embedding vector.
type Candidate struct {
	Fact
	Vector []float32
}

// UpsertInput holds the raw arguments of an upsert.
type UpsertInput struct {
	Question string
	Answer   string

	// Source defaults to DefaultSource when blank.
	Source string

	// TTLDays is optional; nil means the fact never expires.
	TTLDays *int
}

// Match is a successful lookup result.
type Match struct {
	FactID     string    `json:"fact_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Similarity float64   `json:"similarity"`
	Source     string    `json:"source"`
	UpdatedAt  time.Time `json:"updated_at"`
}
