// Package header provides header filtering for the aurion proxy.
//
// This proxy sits between a client and the upstream Ollama runtime like so:
//
//	Client <--> Proxy <--> Upstream Ollama
//
// and headers are handled accordingly as each leg negotiates compression, hops,
// encoding, etc. independently.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

const (
	// MemoryHeader reports how fact memory handled a request: MemoryHit,
	// MemoryMiss or MemoryUnavailable. Clients send MemoryOff on the request to
	// bypass memory for that call.
	MemoryHeader = "X-Aurion-Memory"

	// SimilarityHeader carries the cosine similarity of a memory hit.
	SimilarityHeader = "X-Aurion-Similarity"

	// FactIDHeader carries the id of the fact that answered or was taught.
	FactIDHeader = "X-Aurion-Fact-Id"
)

// Values of MemoryHeader.
const (
	MemoryHit         = "hit"
	MemoryMiss        = "miss"
	MemoryUnavailable = "unavailable"
	MemoryOff         = "off"
)

// skipRequest is the set of request headers (client --> proxy --> upstream)
// that are not forwarded to the upstream.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// The Host header is rewritten by Go's http.Transport to match the
	// upstream URL.
	"Host": {},

	// Accept-Encoding is stripped so that Go's http.Transport adds its own
	// "Accept-Encoding: gzip" and transparently decompresses the upstream
	// response.
	"Accept-Encoding": {},

	// Memory bypass is an instruction to the proxy, not to Ollama.
	MemoryHeader: {},
}

// skipResponse is the set of upstream response headers (client <-- proxy <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// The proxy always reads a decompressed body. Fiber's compress middleware
	// sets the correct Content-Encoding when it re-compresses the response.
	"Content-Encoding": {},

	// Fiber computes the final Content-Length from the body it actually sends.
	"Content-Length": {},

	// Memory headers are owned by the proxy.
	MemoryHeader:     {},
	SimilarityHeader: {},
	FactIDHeader:     {},
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the proxy should not forward
// to the upstream.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies response headers from the upstream
// http.Response to the Fiber context, filtering headers that the proxy should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// MemoryBypassed reports whether the client asked to skip fact memory.
func MemoryBypassed(c *fiber.Ctx) bool {
	return strings.EqualFold(strings.TrimSpace(c.Get(MemoryHeader)), MemoryOff)
}
