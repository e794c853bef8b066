package facts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aurion/pkg/facts"
)

var _ = Describe("Normalize", func() {
	DescribeTable("canonical form",
		func(in, want string) {
			Expect(facts.Normalize(in)).To(Equal(want))
		},
		Entry("lower-cases and strips the question mark", "Qui est Zorg ?", "qui est zorg"),
		Entry("collapses inner whitespace", "  qui   est\tzorg\n", "qui est zorg"),
		Entry("reads hyphens as spaces", "Qui es-tu ?", "qui es tu"),
		Entry("strips french quotes and inverted marks", "«¿Dónde está?»", "dónde está"),
		Entry("strips curly quotes", "“l’heure”", "lheure"),
		Entry("strips parentheses and separators", "a (b), c; d: e!", "a b c d e"),
		Entry("keeps other symbols", "2+2=4 & co", "2+2=4 & co"),
		Entry("empty input", "", ""),
		Entry("punctuation only", " ?! ... ", ""),
	)

	It("is idempotent", func() {
		for _, in := range []string{
			"Qui est Zorg ?",
			"  L'HEURE -- à Paris ?? ",
			"«Quoi»",
			"multi\n\nline\tinput",
		} {
			once := facts.Normalize(in)
			Expect(facts.Normalize(once)).To(Equal(once), "input %q", in)
		}
	})
})
