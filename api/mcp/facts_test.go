package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/facts/inmemory"
	aurionlogger "github.com/papercomputeco/aurion/pkg/logger"
	testutils "github.com/papercomputeco/aurion/pkg/utils/test"
)

func resultText(result *mcp.CallToolResult) string {
	ExpectWithOffset(1, result.Content).To(HaveLen(1))
	text, ok := result.Content[0].(*mcp.TextContent)
	ExpectWithOffset(1, ok).To(BeTrue())
	return text.Text
}

var _ = Describe("Fact tools", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		store    *facts.Store
		server   *Server
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

		server, err = NewServer(Config{Store: store, Logger: aurionlogger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("fact_teach", func() {
		It("stores the fact and returns its id", func() {
			ttl := 7
			result, out, err := server.handleTeach(ctx, nil, TeachInput{
				Question: "Who is Zorg?",
				Answer:   "Zorg is the moon base cat.",
				Source:   "mcp",
				TTLDays:  &ttl,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.ID).NotTo(BeEmpty())
			Expect(resultText(result)).To(ContainSubstring(out.ID))

			all, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Source).To(Equal("mcp"))
			Expect(*all[0].TTLDays).To(Equal(7))
		})

		It("reports validation errors to the client", func() {
			result, out, err := server.handleTeach(ctx, nil, TeachInput{Question: "q"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(out.ID).To(BeEmpty())
			Expect(resultText(result)).To(ContainSubstring("answer"))
		})

		It("hides provider failures behind memory unavailable", func() {
			embedder.Err = errors.New("connection refused")

			result, _, err := server.handleTeach(ctx, nil, TeachInput{Question: "q", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(resultText(result)).To(Equal("memory unavailable"))
		})
	})

	Describe("fact_lookup", func() {
		BeforeEach(func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "Who is Zorg?", Answer: "Zorg is the moon base cat."})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the remembered answer", func() {
			result, out, err := server.handleLookup(ctx, nil, LookupInput{Question: "who is zorg"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Found).To(BeTrue())
			Expect(out.Answer).To(Equal("Zorg is the moon base cat."))
			Expect(out.Question).To(Equal("who is zorg"))
			Expect(out.Source).To(Equal(facts.DefaultSource))
			Expect(out.Similarity).To(BeNumerically("~", 1, 1e-6))
		})

		It("reports a miss without an error", func() {
			result, out, err := server.handleLookup(ctx, nil, LookupInput{Question: "capital of peru"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Found).To(BeFalse())
			Expect(resultText(result)).To(Equal(`{"found":false}`))
		})

		It("honours a per-call threshold", func() {
			embedder.Set("who is zorg", []float32{1, 0})
			embedder.Set("zorg", []float32{4, 3})
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "who is zorg", Answer: "cat"})
			Expect(err).NotTo(HaveOccurred())

			_, out, err := server.handleLookup(ctx, nil, LookupInput{Question: "zorg"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Found).To(BeFalse())

			low := 0.75
			_, out, err = server.handleLookup(ctx, nil, LookupInput{Question: "zorg", Threshold: &low})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Found).To(BeTrue())
			Expect(out.Similarity).To(BeNumerically("~", 0.8, 1e-6))
		})

		It("rejects an out of range threshold", func() {
			bad := 1.5
			result, _, err := server.handleLookup(ctx, nil, LookupInput{Question: "zorg", Threshold: &bad})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(resultText(result)).To(ContainSubstring("threshold"))
		})
	})

	Describe("fact_forget", func() {
		It("reports whether a fact was removed", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "Who is Zorg?", Answer: "cat"})
			Expect(err).NotTo(HaveOccurred())

			_, out, err := server.handleForget(ctx, nil, ForgetInput{Question: "who is zorg"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Deleted).To(BeTrue())

			_, out, err = server.handleForget(ctx, nil, ForgetInput{Question: "who is zorg"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Deleted).To(BeFalse())
		})
	})

	Describe("over a client session", func() {
		var session *mcp.ClientSession

		BeforeEach(func() {
			serverTransport, clientTransport := mcp.NewInMemoryTransports()

			serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(serverSession.Close)

			client := mcp.NewClient(&mcp.Implementation{Name: "aurion-test", Version: "v0"}, nil)
			session, err = client.Connect(ctx, clientTransport, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(session.Close)

			_, err = store.Upsert(ctx, facts.UpsertInput{Question: "Who is Zorg?", Answer: "Zorg is the moon base cat."})
			Expect(err).NotTo(HaveOccurred())
		})

		lookup := func(question string) (*mcp.CallToolResult, map[string]any) {
			result, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      lookupToolName,
				Arguments: map[string]any{"question": question},
			})
			ExpectWithOffset(1, err).NotTo(HaveOccurred())
			structured, ok := result.StructuredContent.(map[string]any)
			ExpectWithOffset(1, ok).To(BeTrue())
			return result, structured
		}

		It("returns a hit as structured content", func() {
			result, structured := lookup("who is zorg")
			Expect(result.IsError).To(BeFalse())
			Expect(structured).To(HaveKeyWithValue("found", true))
			Expect(structured).To(HaveKeyWithValue("answer", "Zorg is the moon base cat."))
		})

		It("returns a miss without marking memory unavailable", func() {
			result, structured := lookup("capital of peru")
			Expect(result.IsError).To(BeFalse())
			Expect(structured).To(HaveKeyWithValue("found", false))
			Expect(structured).NotTo(HaveKey("unavailable"))
		})

		It("tells an embedder outage apart from a miss", func() {
			embedder.Err = errors.New("ollama embeddings down")

			result, structured := lookup("who is zorg")
			Expect(result.IsError).To(BeTrue())
			Expect(structured).To(HaveKeyWithValue("found", false))
			Expect(structured).To(HaveKeyWithValue("unavailable", true))
		})
	})
})
