package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aurion/pkg/eventstream"
	"github.com/papercomputeco/aurion/pkg/facts"
)

var _ = Describe("FactEvent", func() {
	now := time.Unix(1735689600, 0).UTC()
	fact := facts.Fact{
		ID:           "f1",
		QuestionNorm: "qui est zorg",
		Answer:       "le gardien",
		Source:       facts.DefaultSource,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	It("marshals with expected top-level keys", func() {
		event := eventstream.NewFactEvent(facts.Change{Kind: facts.ChangeUpserted, Fact: fact, Created: true, At: now})

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKeyWithValue("schema_version", BeNumerically("==", eventstream.SchemaVersionV1)))
		Expect(got).To(HaveKeyWithValue("event_type", eventstream.EventTypeFactUpserted))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKeyWithValue("created", true))
		Expect(got).To(HaveKey("fact"))
		Expect(got["fact"]).To(HaveKeyWithValue("answer", "le gardien"))
	})

	DescribeTable("maps change kinds to event types",
		func(kind facts.ChangeKind, eventType string) {
			event := eventstream.NewFactEvent(facts.Change{Kind: kind, Fact: fact, At: now})
			Expect(event.EventType).To(Equal(eventType))
		},
		Entry("upserted", facts.ChangeUpserted, eventstream.EventTypeFactUpserted),
		Entry("forgotten", facts.ChangeForgotten, eventstream.EventTypeFactForgotten),
		Entry("expired", facts.ChangeExpired, eventstream.EventTypeFactExpired),
	)

	It("omits the answer for deletions", func() {
		event := eventstream.NewFactEvent(facts.Change{Kind: facts.ChangeForgotten, Fact: fact, At: now})
		Expect(event.Fact.Answer).To(BeEmpty())
		Expect(event.Fact.QuestionNorm).To(Equal("qui est zorg"))
	})

	It("assigns a fresh id to every event", func() {
		a := eventstream.NewFactEvent(facts.Change{Kind: facts.ChangeUpserted, Fact: fact, At: now})
		b := eventstream.NewFactEvent(facts.Change{Kind: facts.ChangeUpserted, Fact: fact, At: now})
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})
})
