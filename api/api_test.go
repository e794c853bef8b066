package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/facts/inmemory"
	"github.com/papercomputeco/aurion/pkg/llm"
	testutils "github.com/papercomputeco/aurion/pkg/utils/test"
)

var _ = Describe("Fact API", func() {
	var (
		server   *Server
		store    *facts.Store
		embedder *testutils.MockEmbedder
		clock    *testutils.Clock
		ctx      context.Context
	)

	call := func(method, path, body string) (int, []byte) {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, b
	}

	errorOf := func(body []byte) string {
		var e llm.ErrorResponse
		Expect(json.Unmarshal(body, &e)).To(Succeed())
		return e.Error
	}

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		clock = testutils.NewClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))

		var err error
		store, err = facts.NewStore(facts.Config{
			Driver:   inmemory.NewDriver(),
			Embedder: embedder,
			Now:      clock.Now,
		})
		Expect(err).NotTo(HaveOccurred())

		logger, _ := zap.NewDevelopment()
		server, err = NewServer(Config{ListenAddr: ":0"}, store, logger)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Shutdown()
	})

	It("requires a store", func() {
		_, err := NewServer(Config{}, nil, nil)
		Expect(err).To(HaveOccurred())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			status, body := call(http.MethodGet, "/ping", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("POST /v1/facts", func() {
		It("teaches a fact and returns its id", func() {
			status, body := call(http.MethodPost, "/v1/facts", `{"question":"Who is Zorg?","answer":"Zorg is the moon base cat.","source":"api","ttl_days":3}`)
			Expect(status).To(Equal(http.StatusOK))

			var out UpsertFactResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.ID).NotTo(BeEmpty())

			all, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].ID).To(Equal(out.ID))
			Expect(all[0].QuestionNorm).To(Equal("who is zorg"))
			Expect(all[0].Source).To(Equal("api"))
			Expect(*all[0].TTLDays).To(Equal(3))
		})

		It("keeps the id when the same question is taught again", func() {
			_, first := call(http.MethodPost, "/v1/facts", `{"question":"Who is Zorg?","answer":"a cat"}`)
			_, second := call(http.MethodPost, "/v1/facts", `{"question":"who is zorg","answer":"a dog"}`)
			Expect(first).To(MatchJSON(second))
		})

		It("rejects invalid input with 400", func() {
			status, body := call(http.MethodPost, "/v1/facts", `{"question":"q","answer":"  "}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorOf(body)).To(ContainSubstring("answer"))
		})

		It("rejects malformed JSON with 400", func() {
			status, body := call(http.MethodPost, "/v1/facts", `{"question":`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorOf(body)).To(Equal("invalid request body"))
		})

		It("returns 503 when the embedder is down", func() {
			embedder.Err = errors.New("connection refused")

			status, body := call(http.MethodPost, "/v1/facts", `{"question":"q","answer":"a"}`)
			Expect(status).To(Equal(http.StatusServiceUnavailable))
			Expect(errorOf(body)).To(Equal("memory unavailable"))
		})
	})

	Describe("POST /v1/facts/lookup", func() {
		BeforeEach(func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "Who is Zorg?", Answer: "Zorg is the moon base cat."})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the match", func() {
			status, body := call(http.MethodPost, "/v1/facts/lookup", `{"question":"who is zorg"}`)
			Expect(status).To(Equal(http.StatusOK))

			var match facts.Match
			Expect(json.Unmarshal(body, &match)).To(Succeed())
			Expect(match.Answer).To(Equal("Zorg is the moon base cat."))
			Expect(match.Question).To(Equal("who is zorg"))
			Expect(match.Similarity).To(BeNumerically("~", 1, 1e-6))
		})

		It("returns 404 on a miss", func() {
			status, body := call(http.MethodPost, "/v1/facts/lookup", `{"question":"capital of peru"}`)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(errorOf(body)).To(Equal("no matching memory"))
		})

		It("honours the threshold in the request", func() {
			embedder.Set("probe", []float32{4, 3})
			embedder.Set("stored", []float32{1, 0})
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "stored", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())

			status, _ := call(http.MethodPost, "/v1/facts/lookup", `{"question":"probe"}`)
			Expect(status).To(Equal(http.StatusNotFound))

			status, _ = call(http.MethodPost, "/v1/facts/lookup", `{"question":"probe","threshold":0.8}`)
			Expect(status).To(Equal(http.StatusOK))
		})

		It("rejects a threshold outside [0, 1]", func() {
			status, _ := call(http.MethodPost, "/v1/facts/lookup", `{"question":"zorg","threshold":2}`)
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		It("returns 503, not 404, when the embedder is down", func() {
			embedder.Err = errors.New("connection refused")

			status, body := call(http.MethodPost, "/v1/facts/lookup", `{"question":"who is zorg"}`)
			Expect(status).To(Equal(http.StatusServiceUnavailable))
			Expect(errorOf(body)).To(Equal("memory unavailable"))
		})
	})

	Describe("GET /v1/facts", func() {
		It("lists live facts with their expiry", func() {
			one := 1
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "forever", Answer: "a"})
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Upsert(ctx, facts.UpsertInput{Question: "today only", Answer: "b", TTLDays: &one})
			Expect(err).NotTo(HaveOccurred())

			status, body := call(http.MethodGet, "/v1/facts", "")
			Expect(status).To(Equal(http.StatusOK))

			var out ListFactsResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Facts).To(HaveLen(2))
			Expect(out.Facts[0].Question).To(Equal("forever"))
			Expect(out.Facts[0].ExpiresAt).To(BeNil())
			Expect(out.Facts[1].ExpiresAt).NotTo(BeNil())
			Expect(out.Facts[1].ExpiresAt.Equal(clock.Now().Add(24 * time.Hour))).To(BeTrue())
			Expect(string(body)).NotTo(ContainSubstring("vector"))

			clock.Advance(25 * time.Hour)

			_, body = call(http.MethodGet, "/v1/facts", "")
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Facts).To(HaveLen(1))
		})

		It("returns an empty list rather than null", func() {
			_, body := call(http.MethodGet, "/v1/facts", "")
			Expect(body).To(MatchJSON(`{"facts":[]}`))
		})
	})

	Describe("DELETE /v1/facts", func() {
		It("forgets a fact once", func() {
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "Who is Zorg?", Answer: "cat"})
			Expect(err).NotTo(HaveOccurred())

			status, body := call(http.MethodDelete, "/v1/facts", `{"question":"who is zorg?"}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"deleted":true}`))

			_, body = call(http.MethodDelete, "/v1/facts", `{"question":"who is zorg?"}`)
			Expect(body).To(MatchJSON(`{"deleted":false}`))
		})
	})

	Describe("POST /v1/facts/sweep", func() {
		It("removes expired facts", func() {
			one := 1
			_, err := store.Upsert(ctx, facts.UpsertInput{Question: "today only", Answer: "b", TTLDays: &one})
			Expect(err).NotTo(HaveOccurred())

			_, body := call(http.MethodPost, "/v1/facts/sweep", "")
			Expect(body).To(MatchJSON(`{"expired":0}`))

			clock.Advance(25 * time.Hour)

			status, body := call(http.MethodPost, "/v1/facts/sweep", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"expired":1}`))
		})
	})

	Describe("/mcp", func() {
		It("is mounted", func() {
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")

			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).NotTo(Equal(http.StatusNotFound))
		})
	})
})
