package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/facts/factstest"
	"github.com/papercomputeco/aurion/pkg/facts/sqlite"
	testutils "github.com/papercomputeco/aurion/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	Describe("conformance", func() {
		factstest.DescribeDriver(func() facts.Driver {
			driver, err := sqlite.NewDriver(context.Background(), ":memory:", nil)
			Expect(err).NotTo(HaveOccurred())
			return driver
		})
	})

	Describe("NewDriver", func() {
		It("requires a path", func() {
			_, err := sqlite.NewDriver(context.Background(), "", nil)
			Expect(err).To(HaveOccurred())
		})

		It("persists facts in a database file across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "facts.db")

			driver, err := sqlite.NewDriver(ctx, dbPath, nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())

			embedder := testutils.NewMockEmbedder()
			store, err := facts.NewStore(facts.Config{Driver: driver, Embedder: embedder})
			Expect(err).NotTo(HaveOccurred())

			ttl := 5
			id, err := store.Upsert(ctx, facts.UpsertInput{Question: "Qui est Zorg ?", Answer: "Le gardien", TTLDays: &ttl})
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Close()).To(Succeed())

			reopened, err := sqlite.NewDriver(ctx, dbPath, nil)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			store, err = facts.NewStore(facts.Config{Driver: reopened, Embedder: embedder})
			Expect(err).NotTo(HaveOccurred())

			match, err := store.Lookup(ctx, "qui est zorg")
			Expect(err).NotTo(HaveOccurred())
			Expect(match.FactID).To(Equal(id))
			Expect(match.UpdatedAt.Location()).To(Equal(time.UTC))
		})
	})

	Describe("schema", func() {
		var (
			ctx    context.Context
			driver *sqlite.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			var err error
			driver, err = sqlite.NewDriver(ctx, ":memory:", nil)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			driver.Close()
		})

		It("cascades fact deletion to the embedding", func() {
			err := driver.Transaction(ctx, func(tx facts.Tx) error {
				_, _, err := tx.Upsert(ctx, facts.Fact{
					ID:           "f1",
					QuestionNorm: "q",
					Answer:       "a",
					Source:       facts.DefaultSource,
					CreatedAt:    factstest.Epoch,
					UpdatedAt:    factstest.Epoch,
				}, []float32{1, 2, 3})
				if err != nil {
					return err
				}
				_, err = tx.Delete(ctx, "q")
				return err
			})
			Expect(err).NotTo(HaveOccurred())

			var n int
			Expect(driver.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM fact_embeddings`).Scan(&n)).To(Succeed())
			Expect(n).To(BeZero())
		})

		It("rejects an empty embedding blob", func() {
			err := driver.Transaction(ctx, func(tx facts.Tx) error {
				_, _, err := tx.Upsert(ctx, facts.Fact{
					ID:           "f1",
					QuestionNorm: "q",
					Answer:       "a",
					Source:       facts.DefaultSource,
					CreatedAt:    factstest.Epoch,
					UpdatedAt:    factstest.Epoch,
				}, []float32{})
				return err
			})
			Expect(err).To(HaveOccurred())

			var n int
			Expect(driver.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&n)).To(Succeed())
			Expect(n).To(BeZero())
		})
	})
})
