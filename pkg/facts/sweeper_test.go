package facts_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/facts/inmemory"
	testutils "github.com/papercomputeco/aurion/pkg/utils/test"
)

var _ = Describe("Sweeper", func() {
	It("returns immediately when disabled", func() {
		s := facts.NewSweeper(nil, 0, nil)
		Expect(s.Run(context.Background())).To(Succeed())
	})

	It("removes expired facts in the background", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		clock := testutils.NewClock(time.Now())
		store, err := facts.NewStore(facts.Config{
			Driver:   inmemory.NewDriver(),
			Embedder: testutils.NewMockEmbedder(),
			Now:      clock.Now,
		})
		Expect(err).NotTo(HaveOccurred())

		ttl := 1
		_, err = store.Upsert(ctx, facts.UpsertInput{Question: "q", Answer: "a", TTLDays: &ttl})
		Expect(err).NotTo(HaveOccurred())
		clock.Advance(48 * time.Hour)

		done := make(chan error, 1)
		go func() {
			done <- facts.NewSweeper(store, 10*time.Millisecond, nil).Run(ctx)
		}()

		Eventually(func() ([]facts.Fact, error) {
			return store.List(ctx)
		}).WithTimeout(2 * time.Second).Should(BeEmpty())

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
