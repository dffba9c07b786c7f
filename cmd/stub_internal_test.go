package cmd

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/luma/xdrprobe/internal/env"
)

var _ = Describe("stub listenAddr()", func() {
	var (
		c    *cobra.Command
		conf *env.Config
	)

	BeforeEach(func() {
		c = &cobra.Command{Use: "stub"}
		registerStubFlags(c)

		conf = &env.Config{Host: "10.0.0.5", Port: 7001}
	})

	It("uses the configuration when no flags are given", func() {
		Expect(c.ParseFlags(nil)).To(Succeed())

		host, port := listenAddr(c, conf)
		Expect(host).To(Equal("10.0.0.5"))
		Expect(port).To(Equal(7001))
	})

	It("lets flags override the configuration", func() {
		Expect(c.ParseFlags([]string{"--host", "0.0.0.0", "--port", "7100"})).To(Succeed())

		host, port := listenAddr(c, conf)
		Expect(host).To(Equal("0.0.0.0"))
		Expect(port).To(Equal(7100))
	})

	It("overrides each setting independently", func() {
		Expect(c.ParseFlags([]string{"-p", "0"})).To(Succeed())

		host, port := listenAddr(c, conf)
		Expect(host).To(Equal("10.0.0.5"))
		Expect(port).To(Equal(0))
	})
})
