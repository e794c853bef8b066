package facts_test

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/facts/inmemory"
	testutils "github.com/papercomputeco/aurion/pkg/utils/test"
)

// failingDriver fails every transaction.
type failingDriver struct {
	err error
}

func (d failingDriver) Transaction(context.Context, func(facts.Tx) error) error { return d.err }
func (d failingDriver) Close() error                                            { return nil }

var _ = Describe("Store", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		store    *facts.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()

		var err error
		store, err = facts.NewStore(facts.Config{
			Driver:   inmemory.NewDriver(),
			Embedder: embedder,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewStore", func() {
		It("requires a driver and an embedder", func() {
			_, err := facts.NewStore(facts.Config{Embedder: embedder})
			Expect(err).To(HaveOccurred())

			_, err = facts.NewStore(facts.Config{Driver: inmemory.NewDriver()})
			Expect(err).To(HaveOccurred())
		})

		It("defaults the threshold", func() {
			Expect(store.Threshold()).To(Equal(facts.DefaultThreshold))
		})

		It("rejects an out of range threshold", func() {
			_, err := facts.NewStore(facts.Config{Driver: inmemory.NewDriver(), Embedder: embedder, Threshold: 2})
			Expect(facts.IsValidation(err)).To(BeTrue())
		})

		It("applies the configured default source", func() {
			s, err := facts.NewStore(facts.Config{
				Driver:        inmemory.NewDriver(),
				Embedder:      embedder,
				DefaultSource: "cli",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())

			all, err := s.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all[0].Source).To(Equal("cli"))
		})
	})

	Describe("SetThreshold", func() {
		It("changes the threshold used by Lookup", func() {
			embedder.Set("stored", []float32{1, 0})
			embedder.Set("probe", []float32{4, 3})
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "stored", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Lookup(ctx, "probe")
			Expect(err).To(MatchError(facts.ErrNotFound))

			Expect(store.SetThreshold(0.75)).To(Succeed())
			Expect(store.Threshold()).To(Equal(0.75))

			match, err := store.Lookup(ctx, "probe")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.Answer).To(Equal("a"))
		})

		It("rejects values outside [0, 1]", func() {
			Expect(facts.IsValidation(store.SetThreshold(-0.1))).To(BeTrue())
			Expect(facts.IsValidation(store.SetThreshold(math.NaN()))).To(BeTrue())
			Expect(store.Threshold()).To(Equal(facts.DefaultThreshold))
		})
	})

	Describe("Upsert validation", func() {
		DescribeTable("rejects bad input without calling the embedder",
			func(in facts.UpsertInput, field string) {
				_, err := store.Upsert(ctx, in)

				var vErr *facts.ValidationError
				Expect(errors.As(err, &vErr)).To(BeTrue())
				Expect(vErr.Field).To(Equal(field))
				Expect(embedder.Calls()).To(BeEmpty())
			},
			Entry("blank question", facts.UpsertInput{Question: "   ", Answer: "a"}, "question"),
			Entry("blank answer", facts.UpsertInput{Question: "q", Answer: "\t"}, "answer"),
			Entry("zero ttl", facts.UpsertInput{Question: "q", Answer: "a", TTLDays: new(int)}, "ttl_days"),
			Entry("punctuation-only question", facts.UpsertInput{Question: "?!", Answer: "a"}, "question"),
		)

		It("trims the answer", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "  a  "})
			Expect(err).NotTo(HaveOccurred())

			match, err := store.Lookup(ctx, "q")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.Answer).To(Equal("a"))
		})

		It("embeds the normalized question", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "Qui est Zorg ?", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder.Calls()).To(Equal([]string{"qui est zorg"}))
		})
	})

	Describe("malformed embeddings", func() {
		DescribeTable("are provider errors",
			func(vector []float32) {
				embedder.Set("q", vector)

				_, err := store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a"})
				var embErr *facts.EmbeddingProviderError
				Expect(errors.As(err, &embErr)).To(BeTrue())

				all, err := store.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(BeEmpty())
			},
			Entry("empty", []float32{}),
			Entry("NaN", []float32{1, float32(math.NaN())}),
			Entry("infinite", []float32{float32(math.Inf(1)), 0}),
		)
	})

	Describe("Lookup", func() {
		It("rejects an empty question", func() {
			_, err := store.Lookup(ctx, " ? ")
			Expect(facts.IsValidation(err)).To(BeTrue())
		})

		It("returns the most similar fact", func() {
			embedder.Set("a", []float32{1, 0, 0})
			embedder.Set("b", []float32{0.9, 0.1, 0})
			embedder.Set("probe", []float32{0.85, 0.15, 0})

			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "a", Answer: "A"})
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Upsert(ctx, facts.UpsertInput{Question: "b", Answer: "B"})
			Expect(err).NotTo(HaveOccurred())

			match, err := store.Lookup(ctx, "probe")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.Answer).To(Equal("B"))
		})
	})

	Describe("Forget", func() {
		It("returns false for a question that normalizes to nothing", func() {
			deleted, err := store.Forget(ctx, "??")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeFalse())
		})
	})

	Describe("Live", func() {
		It("hides expired facts without sweeping them", func() {
			clock := testutils.NewClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
			s, err := facts.NewStore(facts.Config{
				Driver:   inmemory.NewDriver(),
				Embedder: embedder,
				Now:      clock.Now,
			})
			Expect(err).NotTo(HaveOccurred())

			one := 1
			_, err = s.Upsert(ctx, facts.UpsertInput{Question: "short lived", Answer: "a", TTLDays: &one})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Upsert(ctx, facts.UpsertInput{Question: "forever", Answer: "b"})
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(49 * time.Hour)

			live, err := s.Live(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(live).To(HaveLen(1))
			Expect(live[0].QuestionNorm).To(Equal("forever"))

			all, err := s.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})
	})

	Describe("storage failures", func() {
		It("wraps driver errors as unavailable", func() {
			s, err := facts.NewStore(facts.Config{
				Driver:   failingDriver{err: errors.New("disk I/O error")},
				Embedder: embedder,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a"})
			var storeErr *facts.StorageError
			Expect(errors.As(err, &storeErr)).To(BeTrue())
			Expect(storeErr.Op).To(Equal("upsert"))

			_, err = s.Lookup(ctx, "q")
			Expect(facts.IsUnavailable(err)).To(BeTrue())
			Expect(errors.Is(err, facts.ErrNotFound)).To(BeFalse())

			_, err = s.Forget(ctx, "q")
			Expect(facts.IsUnavailable(err)).To(BeTrue())
		})
	})
})
