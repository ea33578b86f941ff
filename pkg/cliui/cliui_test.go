package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rxrank/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("FormatDuration", func() {
		It("uses milliseconds below one second", func() {
			Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		})

		It("uses one decimal of seconds above one second", func() {
			Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
		})
	})

	Describe("Mark", func() {
		It("distinguishes success from failure", func() {
			Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
			Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
		})
	})

	Describe("Step", func() {
		It("returns the function error and writes one final line for non-terminals", func() {
			var buf bytes.Buffer
			err := cliui.Step(&buf, "loading embeddings", func() error {
				return errors.New("boom")
			})
			Expect(err).To(MatchError("boom"))
			Expect(buf.String()).To(ContainSubstring("loading embeddings"))
			Expect(bytes.Count(buf.Bytes(), []byte("\n"))).To(Equal(1))
		})
	})

	Describe("IsTerminal", func() {
		It("is false for in-memory writers", func() {
			Expect(cliui.IsTerminal(&bytes.Buffer{})).To(BeFalse())
		})
	})

	Describe("RankedList", func() {
		It("numbers rows and prints four decimal scores", func() {
			var buf bytes.Buffer
			cliui.RankedList(&buf, []cliui.Row{
				{Label: "C0000102", Score: 1.5},
				{Label: "C0000100", Score: 0.25, Note: "fallback"},
			})

			out := buf.String()
			Expect(out).To(ContainSubstring("1."))
			Expect(out).To(ContainSubstring("C0000102"))
			Expect(out).To(ContainSubstring("1.5000"))
			Expect(out).To(ContainSubstring("0.2500"))
			Expect(out).To(ContainSubstring("fallback"))
		})
	})

	Describe("KeyValue", func() {
		It("writes the key and value", func() {
			var buf bytes.Buffer
			cliui.KeyValue(&buf, "patients", 3)
			Expect(buf.String()).To(ContainSubstring("patients:"))
			Expect(buf.String()).To(ContainSubstring("3"))
		})
	})
})
