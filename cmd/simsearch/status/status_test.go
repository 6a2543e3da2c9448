package statuscmder_test

import (
	"bytes"
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/cmd/simsearch/stack"
	statuscmder "github.com/papercomputeco/simsearch/cmd/simsearch/status"
	"github.com/papercomputeco/simsearch/pkg/config"
	"github.com/papercomputeco/simsearch/pkg/dotdir"
	"github.com/papercomputeco/simsearch/pkg/logger"
	"github.com/papercomputeco/simsearch/pkg/vector"
	"github.com/papercomputeco/simsearch/pkg/vector/memory"
)

var _ = Describe("Run", func() {
	var (
		ctx       context.Context
		s         *stack.Stack
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		cfg := config.NewDefaultConfig()
		cfg.Store.Provider = "memory"

		var err error
		s, err = stack.New(ctx, cfg, configDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = s.Close() })
	})

	It("reports a missing index", func() {
		Expect(statuscmder.Run(ctx, out, s, configDir)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("documents"))
		Expect(out.String()).To(ContainSubstring("Index does not exist"))
	})

	It("reports the count and schema of an existing index", func() {
		Expect(s.Manager.EnsureIndex(ctx, s.Schema)).To(Succeed())
		_, err := s.Indexer.IndexBatch(ctx, "documents", []vector.Document{
			{ID: "1", Fields: map[string]string{"title": "Sea levels"}},
			{ID: "2", Fields: map[string]string{"title": "Heat"}},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(statuscmder.Run(ctx, out, s, configDir)).To(Succeed())
		Expect(out.String()).To(MatchRegexp(`Documents:[^\n]*\b2\n`))
		Expect(out.String()).To(ContainSubstring("384"))
		Expect(out.String()).To(ContainSubstring("cosine"))
		Expect(out.String()).To(ContainSubstring("title, content"))
	})

	It("warns when the recorded model differs from the configured one", func() {
		Expect(s.Manager.EnsureIndex(ctx, s.Schema)).To(Succeed())
		Expect(dotdir.NewManager().SaveIndexRecord(configDir, &dotdir.IndexRecord{
			Name:    "documents",
			Model:   "openai:text-embedding-3-small",
			ResetAt: time.Now(),
		})).To(Succeed())

		Expect(statuscmder.Run(ctx, out, s, configDir)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("openai:text-embedding-3-small"))
		Expect(out.String()).To(ContainSubstring("run \"simsearch reset\" before indexing"))
	})

	It("surfaces store failures", func() {
		s.Driver.(*memory.Driver).FailNext(nil)

		Expect(statuscmder.Run(ctx, out, s, configDir)).To(MatchError(vector.ErrStoreUnavailable))
	})
})
