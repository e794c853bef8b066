package worker_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/eventstream"
	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/facts/inmemory"
	testutils "github.com/papercomputeco/aurion/pkg/utils/test"
	"github.com/papercomputeco/aurion/pkg/worker"
)

// newTestPool creates a worker pool backed by an in-memory publisher.
// Callers should "wp.Close()" to drain enqueued jobs before asserting published events.
func newTestPool(c *worker.Config) (*worker.Pool, *testutils.MemoryPublisher) {
	publisher := testutils.NewMemoryPublisher()
	if c == nil {
		c = &worker.Config{}
	}
	c.Publisher = publisher
	c.Logger, _ = zap.NewDevelopment()

	wp, err := worker.NewPool(c)
	Expect(err).NotTo(HaveOccurred())

	return wp, publisher
}

var _ = Describe("Worker Pool", func() {
	change := facts.Change{
		Kind: facts.ChangeUpserted,
		Fact: facts.Fact{ID: "f1", QuestionNorm: "q", Answer: "a"},
		At:   time.Unix(1735689600, 0),
	}

	It("requires a publisher", func() {
		_, err := worker.NewPool(&worker.Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			wp, publisher := newTestPool(nil)
			Expect(wp.Enqueue(worker.Job{Change: change})).To(BeTrue())
			wp.Close()

			Expect(publisher.Events()).To(HaveLen(1))
			Expect(publisher.Events()[0].EventType).To(Equal(eventstream.EventTypeFactUpserted))
			Expect(publisher.Events()[0].Fact.ID).To(Equal("f1"))
		})

		It("drops jobs when the queue is full", func() {
			publisher := testutils.NewMemoryPublisher()
			publisher.Block = make(chan struct{})

			wp, err := worker.NewPool(&worker.Config{
				Publisher:  publisher,
				NumWorkers: 1,
				QueueSize:  1,
				Logger:     zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())

			// The first job is picked up by the single worker and blocks; the
			// second fills the queue.
			Expect(wp.Enqueue(worker.Job{Change: change})).To(BeTrue())
			Eventually(func() bool {
				return wp.Enqueue(worker.Job{Change: change})
			}).Should(BeTrue())
			Expect(wp.Enqueue(worker.Job{Change: change})).To(BeFalse())

			close(publisher.Block)
			wp.Close()
			Expect(publisher.Events()).To(HaveLen(2))
		})

		It("drops jobs after Close", func() {
			wp, _ := newTestPool(nil)
			wp.Close()
			Expect(wp.Enqueue(worker.Job{Change: change})).To(BeFalse())
		})
	})

	It("keeps working after publish failures", func() {
		wp, publisher := newTestPool(&worker.Config{NumWorkers: 1})
		publisher.Err = testutils.ErrPublish

		wp.FactChanged(change)
		wp.Close()
		Expect(publisher.Events()).To(BeEmpty())
	})

	It("publishes every change made through a store", func() {
		wp, publisher := newTestPool(nil)

		store, err := facts.NewStore(facts.Config{
			Driver:   inmemory.NewDriver(),
			Embedder: testutils.NewMockEmbedder(),
			Observer: wp,
		})
		Expect(err).NotTo(HaveOccurred())

		ctx := context.Background()
		_, err = store.Upsert(ctx, facts.UpsertInput{Question: "Qui est Zorg ?", Answer: "le gardien"})
		Expect(err).NotTo(HaveOccurred())
		_, err = store.Forget(ctx, "qui est zorg")
		Expect(err).NotTo(HaveOccurred())

		wp.Close()

		var types []string
		for _, e := range publisher.Events() {
			types = append(types, e.EventType)
		}
		Expect(types).To(ConsistOf(eventstream.EventTypeFactUpserted, eventstream.EventTypeFactForgotten))
	})
})
