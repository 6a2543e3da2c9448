package simsearchcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	simsearchcmder "github.com/papercomputeco/simsearch/cmd/simsearch"
)

var _ = Describe("NewSimsearchCmd", func() {
	It("registers every subcommand", func() {
		cmd := simsearchcmder.NewSimsearchCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("init", "config", "reset", "index", "search", "status", "serve", "version"))
	})

	It("has global debug and config-dir flags", func() {
		cmd := simsearchcmder.NewSimsearchCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("prints the version", func() {
		cmd := simsearchcmder.NewSimsearchCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"version"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Version: dev"))
	})

	It("runs reset, index, search and status end to end against one config dir", func() {
		configDir := GinkgoT().TempDir()
		csvPath := filepath.Join(GinkgoT().TempDir(), "articles.csv")
		Expect(os.WriteFile(csvPath, []byte("id,title,content\n"+
			"1,Climate and farming,Drought hurts crop yields\n"+
			"2,Language models,Transformers predict tokens\n"), 0o644)).To(Succeed())

		run := func(args ...string) string {
			cmd := simsearchcmder.NewSimsearchCmd()
			out := &bytes.Buffer{}
			cmd.SetOut(out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(append([]string{"--config-dir", configDir}, args...))
			ExpectWithOffset(1, cmd.Execute()).To(Succeed())
			return out.String()
		}

		run("init")
		Expect(run("index", "--reset", csvPath)).To(ContainSubstring("Indexed 2 of 2 documents"))
		Expect(run("search", "drought farming", "--top", "1", "--quiet")).To(Equal("1\n"))
		Expect(run("status")).To(MatchRegexp(`Documents:[^\n]*\b2\n`))
		Expect(filepath.Join(configDir, "simsearch.sqlite")).To(BeAnExistingFile())
	})
})
