// Package factstest holds the behavioural suite every facts.Driver must pass.
// Backends call DescribeDriver from their own ginkgo suites.
package factstest

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aurion/pkg/facts"
	testutils "github.com/papercomputeco/aurion/pkg/utils/test"
)

// Epoch is the start time of the suite clock.
var Epoch = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

// DescribeDriver registers the store conformance specs against drivers built
// by newDriver, which is called once per test. The returned driver is closed
// after the test.
func DescribeDriver(newDriver func() facts.Driver) {
	var (
		ctx      context.Context
		driver   facts.Driver
		embedder *testutils.MockEmbedder
		clock    *testutils.Clock
		recorder *testutils.ChangeRecorder
		store    *facts.Store
	)

	ttl := func(days int) *int { return &days }

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
		embedder = testutils.NewMockEmbedder()
		clock = testutils.NewClock(Epoch)
		recorder = testutils.NewChangeRecorder()

		var err error
		store, err = facts.NewStore(facts.Config{
			Driver:   driver,
			Embedder: embedder,
			Now:      clock.Now,
			Observer: recorder,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("round trip", func() {
		It("answers a taught question with similarity 1", func() {
			id, err := store.Upsert(ctx, facts.UpsertInput{Question: "Qui est Zorg ?", Answer: "Le gardien du phare"})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())

			match, err := store.Lookup(ctx, "Qui est Zorg ?")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.FactID).To(Equal(id))
			Expect(match.Question).To(Equal("qui est zorg"))
			Expect(match.Answer).To(Equal("Le gardien du phare"))
			Expect(match.Source).To(Equal(facts.DefaultSource))
			Expect(match.Similarity).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("ignores case, punctuation and spacing", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "Qui es-tu ?", Answer: "Aurion"})
			Expect(err).NotTo(HaveOccurred())

			match, err := store.Lookup(ctx, "  qui   ES tu")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.Answer).To(Equal("Aurion"))
		})

		It("keeps the caller's source and ttl", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{
				Question: "capital of mars",
				Answer:   "none",
				Source:   "import",
				TTLDays:  ttl(7),
			})
			Expect(err).NotTo(HaveOccurred())

			all, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Source).To(Equal("import"))
			Expect(all[0].TTLDays).NotTo(BeNil())
			Expect(*all[0].TTLDays).To(Equal(7))
			Expect(all[0].CreatedAt.Equal(Epoch)).To(BeTrue())
		})
	})

	Describe("overwrite", func() {
		It("keeps the id and replaces the answer", func() {
			first, err := store.Upsert(ctx, facts.UpsertInput{Question: "ma couleur ?", Answer: "bleu", TTLDays: ttl(3)})
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(time.Hour)

			second, err := store.Upsert(ctx, facts.UpsertInput{Question: "Ma couleur", Answer: "vert"})
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))

			all, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Answer).To(Equal("vert"))
			Expect(all[0].TTLDays).To(BeNil())
			Expect(all[0].CreatedAt.Equal(Epoch)).To(BeTrue())
			Expect(all[0].UpdatedAt.Equal(Epoch.Add(time.Hour))).To(BeTrue())

			match, err := store.Lookup(ctx, "ma couleur")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.Answer).To(Equal("vert"))
		})

		It("replaces the embedding with the new vector", func() {
			embedder.Set("q", []float32{1, 0})
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())

			embedder.Set("q", []float32{0, 1})
			_, err = store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "b"})
			Expect(err).NotTo(HaveOccurred())

			embedder.Set("probe", []float32{0, 1})
			match, err := store.Lookup(ctx, "probe")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.Answer).To(Equal("b"))
			Expect(match.Similarity).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("reports creation only for the first upsert", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "x", Answer: "1"})
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Upsert(ctx, facts.UpsertInput{Question: "x", Answer: "2"})
			Expect(err).NotTo(HaveOccurred())

			changes := recorder.Changes()
			Expect(changes).To(HaveLen(2))
			Expect(changes[0].Kind).To(Equal(facts.ChangeUpserted))
			Expect(changes[0].Created).To(BeTrue())
			Expect(changes[1].Created).To(BeFalse())
			Expect(changes[1].Fact.Answer).To(Equal("2"))
		})

		It("converges to one fact under concurrent upserts", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := store.Upsert(ctx, facts.UpsertInput{Question: "Same question?", Answer: "same"})
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			all, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})
	})

	Describe("threshold", func() {
		BeforeEach(func() {
			embedder.Set("stored", []float32{1, 0})
			embedder.Set("probe", []float32{4, 3})

			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "stored", Answer: "yes"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("misses below the default threshold", func() {
			_, err := store.Lookup(ctx, "probe")
			Expect(err).To(MatchError(facts.ErrNotFound))
		})

		It("hits when the similarity equals the threshold", func() {
			match, err := store.LookupWithThreshold(ctx, "probe", 0.80)
			Expect(err).NotTo(HaveOccurred())
			Expect(match.Similarity).To(BeNumerically("~", 0.80, 1e-12))
		})

		It("misses on an orthogonal query even at a low threshold", func() {
			embedder.Set("other", []float32{0, 1})
			_, err := store.LookupWithThreshold(ctx, "other", 0.1)
			Expect(err).To(MatchError(facts.ErrNotFound))
		})

		It("rejects a threshold outside [0, 1]", func() {
			_, err := store.LookupWithThreshold(ctx, "probe", 1.5)
			Expect(facts.IsValidation(err)).To(BeTrue())
		})
	})

	Describe("ttl", func() {
		It("expires a fact after ttl days and sweeps it", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "meteo demain", Answer: "pluie", TTLDays: ttl(1)})
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(24 * time.Hour)
			_, err = store.Lookup(ctx, "meteo demain")
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(time.Second)
			_, err = store.Lookup(ctx, "meteo demain")
			Expect(err).To(MatchError(facts.ErrNotFound))

			all, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
			Expect(recorder.Kinds()).To(Equal([]facts.ChangeKind{facts.ChangeUpserted, facts.ChangeExpired}))
		})

		It("restarts the ttl on every upsert", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a", TTLDays: ttl(1)})
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(20 * time.Hour)
			_, err = store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a", TTLDays: ttl(1)})
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(20 * time.Hour)
			match, err := store.Lookup(ctx, "q")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.Answer).To(Equal("a"))
		})

		It("never expires facts without a ttl", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(10 * 365 * 24 * time.Hour)

			n, err := store.Sweep(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())

			_, err = store.Lookup(ctx, "q")
			Expect(err).NotTo(HaveOccurred())
		})

		It("sweeps only expired facts", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "short", Answer: "a", TTLDays: ttl(1)})
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Upsert(ctx, facts.UpsertInput{Question: "long", Answer: "b", TTLDays: ttl(30)})
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(48 * time.Hour)

			n, err := store.Sweep(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			all, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].QuestionNorm).To(Equal("long"))
		})
	})

	Describe("forget", func() {
		It("reports whether a fact was deleted", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "Qui est Zorg ?", Answer: "x"})
			Expect(err).NotTo(HaveOccurred())

			deleted, err := store.Forget(ctx, "qui est zorg")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeTrue())

			deleted, err = store.Forget(ctx, "qui est zorg")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeFalse())

			_, err = store.Lookup(ctx, "qui est zorg")
			Expect(err).To(MatchError(facts.ErrNotFound))
			Expect(recorder.Kinds()).To(Equal([]facts.ChangeKind{facts.ChangeUpserted, facts.ChangeForgotten}))
		})

		It("lets a forgotten question be taught again with a new id", func() {
			first, err := store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Forget(ctx, "q")
			Expect(err).NotTo(HaveOccurred())

			second, err := store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(Equal(first))
		})
	})

	Describe("provider failures", func() {
		It("commits nothing when embedding fails on upsert", func() {
			embedder.FailOn = "nouvelle question"

			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "Nouvelle question ?", Answer: "x"})
			var embErr *facts.EmbeddingProviderError
			Expect(errors.As(err, &embErr)).To(BeTrue())
			Expect(facts.IsUnavailable(err)).To(BeTrue())

			all, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
			Expect(recorder.Changes()).To(BeEmpty())
		})

		It("keeps the previous answer when a refresh fails", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "old"})
			Expect(err).NotTo(HaveOccurred())

			embedder.Err = errors.New("connection refused")
			_, err = store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "new"})
			Expect(facts.IsUnavailable(err)).To(BeTrue())

			embedder.Err = nil
			match, err := store.Lookup(ctx, "q")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.Answer).To(Equal("old"))
		})

		It("reports lookup failures as unavailable, not as a miss", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())

			embedder.Err = errors.New("timeout")
			_, err = store.Lookup(ctx, "q")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, facts.ErrNotFound)).To(BeFalse())
			Expect(facts.IsUnavailable(err)).To(BeTrue())
		})
	})

	It("misses on an empty store", func() {
		_, err := store.Lookup(ctx, "anything")
		Expect(err).To(MatchError(facts.ErrNotFound))
	})

	It("teaches, answers and forgets end to end", func() {
		_, err := store.Upsert(ctx, facts.UpsertInput{
			Question: "Qui est Zorg ?",
			Answer:   "Zorg est le gardien du phare de l'île.",
		})
		Expect(err).NotTo(HaveOccurred())

		match, err := store.Lookup(ctx, "qui est zorg")
		Expect(err).NotTo(HaveOccurred())
		Expect(match.Answer).To(Equal("Zorg est le gardien du phare de l'île."))

		_, err = store.Lookup(ctx, "quelle heure est-il")
		Expect(err).To(MatchError(facts.ErrNotFound))

		deleted, err := store.Forget(ctx, "Qui est Zorg?")
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeTrue())

		_, err = store.Lookup(ctx, "qui est zorg")
		Expect(err).To(MatchError(facts.ErrNotFound))
	})

	It("answers a paraphrased question about the capital of Zorg", func() {
		trigrams := testutils.NewTrigramEmbedder()
		zorg, err := facts.NewStore(facts.Config{
			Driver:   driver,
			Embedder: trigrams,
			Now:      clock.Now,
		})
		Expect(err).NotTo(HaveOccurred())

		id, err := zorg.Upsert(ctx, facts.UpsertInput{
			Question: "Quelle est la capitale du pays imaginaire Zorg ?",
			Answer:   "Glorp",
		})
		Expect(err).NotTo(HaveOccurred())

		match, err := zorg.LookupWithThreshold(ctx, "capitale du pays imaginaire Zorg", 0.85)
		Expect(err).NotTo(HaveOccurred())
		Expect(match.FactID).To(Equal(id))
		Expect(match.Answer).To(Equal("Glorp"))
		Expect(match.Similarity).To(BeNumerically(">=", 0.85))
		Expect(match.Similarity).To(BeNumerically("<", 1))
	})
}
