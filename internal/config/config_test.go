package config

import (
	"os"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("splitNonEmpty", func() {
	ginkgo.It("splits on the separator and drops empty segments", func() {
		gomega.Expect(splitNonEmpty("/a:/b::/c", ":")).To(gomega.Equal([]string{"/a", "/b", "/c"}))
	})

	ginkgo.It("returns nil for an empty string", func() {
		gomega.Expect(splitNonEmpty("", ":")).To(gomega.BeNil())
	})
})

var _ = ginkgo.Describe("expandHome", func() {
	ginkgo.It("expands a leading ~ to the user's home directory", func() {
		home, err := os.UserHomeDir()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(expandHome("~/apps")).To(gomega.Equal(home + "/apps"))
	})

	ginkgo.It("leaves an absolute path untouched", func() {
		gomega.Expect(expandHome("/opt/apps")).To(gomega.Equal("/opt/apps"))
	})
})

var _ = ginkgo.Describe("Config accessors", func() {
	var cfg *Config

	ginkgo.BeforeEach(func() {
		cfg = &Config{}
	})

	ginkgo.Context("DataDirs with XDG_DATA_DIRS unset", func() {
		ginkgo.It("defaults to the freedesktop standard pair", func() {
			gomega.Expect(cfg.DataDirs()).To(gomega.Equal([]string{"/usr/local/share", "/usr/share"}))
		})
	})

	ginkgo.Context("RuntimeDir with XDG_RUNTIME_DIR unset", func() {
		ginkgo.It("returns empty, leaving the /tmp fallback to the caller", func() {
			gomega.Expect(cfg.RuntimeDir()).To(gomega.Equal(""))
		})
	})

	ginkgo.Context("DefaultRoots", func() {
		ginkgo.BeforeEach(func() {
			cfg.static.DataHome = "/home/u/.local/share"
			cfg.static.DataDirs = "/usr/local/share:/usr/share"
		})

		ginkgo.It("orders XDG_DATA_HOME before XDG_DATA_DIRS before extra roots", func() {
			cfg.dynamic.extraRoots = []string{"/extra"}
			gomega.Expect(cfg.DefaultRoots()).To(gomega.Equal([]string{
				"/home/u/.local/share/applications",
				"/usr/local/share/applications",
				"/usr/share/applications",
				"/extra",
			}))
		})
	})
})
