package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var (
		origHome   string
		origSQLite string
		origCwd    string
		tmpDir     string
	)

	BeforeEach(func() {
		origHome = os.Getenv("HOME")
		origSQLite = os.Getenv("SIMSEARCH_SQLITE")
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tmpDir, err = os.MkdirTemp("", "simsearch-cwd-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = os.RemoveAll(tmpDir)
		})

		Expect(os.Setenv("HOME", tmpDir)).To(Succeed())
		Expect(os.Setenv("SIMSEARCH_SQLITE", "")).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Setenv("HOME", origHome)).To(Succeed())
		Expect(os.Setenv("SIMSEARCH_SQLITE", origSQLite)).To(Succeed())
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	It("returns the override unchanged", func() {
		path, err := ResolveSQLitePath("/tmp/override.sqlite", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/override.sqlite"))
	})

	It("prefers SIMSEARCH_SQLITE when set", func() {
		Expect(os.Setenv("SIMSEARCH_SQLITE", "/tmp/custom.sqlite")).To(Succeed())

		path, err := ResolveSQLitePath("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.sqlite"))
	})

	It("uses the local .simsearch directory when present", func() {
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".simsearch"), 0o755)).To(Succeed())

		path, err := ResolveSQLitePath("", "")
		Expect(err).NotTo(HaveOccurred())

		resolved, err := filepath.EvalSymlinks(filepath.Dir(path))
		Expect(err).NotTo(HaveOccurred())
		expected, err := filepath.EvalSymlinks(filepath.Join(tmpDir, ".simsearch"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved).To(Equal(expected))
		Expect(filepath.Base(path)).To(Equal(DefaultFile))
	})

	It("uses the config dir override", func() {
		dir := filepath.Join(tmpDir, "state")

		path, err := ResolveSQLitePath("", dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(path)).To(Equal(DefaultFile))
		Expect(dir).To(BeADirectory())
	})

	It("falls back to the working directory", func() {
		path, err := ResolveSQLitePath("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(DefaultFile))
	})
})
