package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("aspirin", 10)).To(Equal("aspirin"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		Expect(Truncate("acetaminophen 500mg tablet", 13)).To(Equal("acetaminophen..."))
	})

	It("counts runes rather than bytes", func() {
		Expect(Truncate("ßßßß", 2)).To(Equal("ßß..."))
	})
})
