package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/aurion/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("Step", func() {
		It("returns the error from fn and marks the line", func() {
			var buf bytes.Buffer
			boom := errors.New("boom")

			err := cliui.Step(&buf, "Opening fact store", func() error { return boom })
			Expect(err).To(MatchError(boom))
			Expect(buf.String()).To(ContainSubstring("Opening fact store"))
			Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
		})

		It("marks success", func() {
			var buf bytes.Buffer
			Expect(cliui.Step(&buf, "ok", func() error { return nil })).To(Succeed())
			Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
		})
	})

	DescribeTable("FormatDuration",
		func(d time.Duration, want string) {
			Expect(cliui.FormatDuration(d)).To(Equal(want))
		},
		Entry("milliseconds", 12*time.Millisecond, "12ms"),
		Entry("seconds", 3200*time.Millisecond, "3.2s"),
	)

	DescribeTable("Mask",
		func(in, want string) {
			Expect(cliui.Mask(in)).To(Equal(want))
		},
		Entry("empty", "", ""),
		Entry("short", "abc", "***"),
		Entry("key", "sk-test-1234", "********1234"),
	)

	DescribeTable("Truncate",
		func(in string, n int, want string) {
			Expect(cliui.Truncate(in, n)).To(Equal(want))
		},
		Entry("fits", "qui est zorg", 20, "qui est zorg"),
		Entry("cut", "zorg is the moon base cat", 10, "zorg is..."),
		Entry("newlines", "a\nb", 10, "a b"),
		Entry("multibyte", "ééééé", 4, "é..."),
	)
})
