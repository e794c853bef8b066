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
		origXDG    string
		origDB     string
		origSQLite string
		origCwd    string
		homeDir    string
		cwd        string
	)

	BeforeEach(func() {
		origHome = os.Getenv("HOME")
		origXDG = os.Getenv("XDG_DATA_HOME")
		origDB = os.Getenv("AURION_DB")
		origSQLite = os.Getenv("AURION_SQLITE")
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		homeDir, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		cwd, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		Expect(os.Setenv("HOME", homeDir)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", "")).To(Succeed())
		Expect(os.Setenv("AURION_DB", "")).To(Succeed())
		Expect(os.Setenv("AURION_SQLITE", "")).To(Succeed())
		Expect(os.Chdir(cwd)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Setenv("HOME", origHome)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", origXDG)).To(Succeed())
		Expect(os.Setenv("AURION_DB", origDB)).To(Succeed())
		Expect(os.Setenv("AURION_SQLITE", origSQLite)).To(Succeed())
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	It("returns the override untouched", func() {
		path, err := ResolveSQLitePath("/data/facts.db", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/data/facts.db"))
	})

	It("prefers AURION_SQLITE when set", func() {
		Expect(os.Setenv("AURION_SQLITE", "/tmp/custom.db")).To(Succeed())
		Expect(os.Setenv("AURION_DB", "/tmp/other.db")).To(Succeed())

		path, err := ResolveSQLitePath("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("resolves ~/.aurion/aurion.db when present", func() {
		dbPath := filepath.Join(homeDir, ".aurion", "aurion.db")
		Expect(os.MkdirAll(filepath.Dir(dbPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(dbPath, []byte("test"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})

	It("prefers a local database over the home one", func() {
		homeDB := filepath.Join(homeDir, ".aurion", "aurion.db")
		Expect(os.MkdirAll(filepath.Dir(homeDB), 0o755)).To(Succeed())
		Expect(os.WriteFile(homeDB, []byte("test"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(cwd, "aurion.db"), []byte("test"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("aurion.db"))
	})

	It("falls back to the config directory", func() {
		configDir := filepath.Join(cwd, "conf")

		path, err := ResolveSQLitePath("", configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(configDir, "aurion.db")))
	})
})
