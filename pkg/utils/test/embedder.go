package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
)

// DefaultMockDimensions is the vector size produced by MockEmbedder when no
// explicit embedding is registered for a text.
const DefaultMockDimensions = 64

// MockEmbedder is a test embedder that returns predictable embeddings.
//
// Texts registered in Embeddings return that vector. Any other text is
// embedded as a bag of words: each space separated token increments one
// hashed dimension, so identical texts produce identical vectors and texts
// with no shared tokens are (almost always) orthogonal.
type MockEmbedder struct {
	mu sync.Mutex

	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Err, when set, is returned by every call.
	Err error

	// Vectorize embeds texts without a registered vector. Defaults to
	// BagOfWords over DefaultMockDimensions.
	Vectorize func(text string) []float32

	calls  []string
	closed bool
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, text)

	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		out := make([]float32, len(emb))
		copy(out, emb)
		return out, nil
	}

	if m.Vectorize != nil {
		return m.Vectorize(text), nil
	}
	return BagOfWords(text, DefaultMockDimensions), nil
}

// NewTrigramEmbedder returns a MockEmbedder that embeds unregistered texts as
// character trigrams, so texts sharing most of their words stay close.
func NewTrigramEmbedder() *MockEmbedder {
	m := NewMockEmbedder()
	m.Vectorize = func(text string) []float32 {
		return Trigrams(text, TrigramDimensions)
	}
	return m
}

// Set registers the vector returned for text.
func (m *MockEmbedder) Set(text string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Embeddings[text] = vector
}

// Calls returns the texts Embed was called with, in order.
func (m *MockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockEmbedder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockEmbedder) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// BagOfWords hashes the space separated tokens of text into a vector of the
// given size.
func BagOfWords(text string, dimensions int) []float32 {
	v := make([]float32, dimensions)
	for _, token := range strings.Fields(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		v[h.Sum32()%uint32(dimensions)]++
	}
	return v
}

// TrigramDimensions is the vector size used by NewTrigramEmbedder.
const TrigramDimensions = 512

// Trigrams hashes the character trigrams of each space padded token of text
// into a vector of the given size.
func Trigrams(text string, dimensions int) []float32 {
	v := make([]float32, dimensions)
	for _, token := range strings.Fields(text) {
		padded := []rune(" " + token + " ")
		for i := 0; i+3 <= len(padded); i++ {
			h := fnv.New32a()
			_, _ = h.Write([]byte(string(padded[i : i+3])))
			v[h.Sum32()%uint32(dimensions)]++
		}
	}
	return v
}
