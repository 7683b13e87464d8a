package desktopentry

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/dskidx/dskidx/internal/model"
)

var _ = ginkgo.Describe("Parse", func() {
	var (
		data        []byte
		localeChain []string
		entry       *model.Entry
		err         error
	)

	parseIt := func() {
		entry, err = Parse(data, "test-app", "/apps/test-app.desktop", localeChain)
	}

	ginkgo.BeforeEach(func() {
		localeChain = nil
	})

	ginkgo.Context("with a minimal valid entry", func() {
		ginkgo.BeforeEach(func() {
			data = []byte("[Desktop Entry]\nName=Test App\nExec=test-app %U\nTerminal=false\n")
			parseIt()
		})

		ginkgo.It("succeeds", func() {
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("extracts the name and exec", func() {
			gomega.Expect(entry.Name).To(gomega.Equal("Test App"))
			gomega.Expect(entry.Exec).To(gomega.Equal("test-app %U"))
		})

		ginkgo.It("defaults Terminal/Hidden/NoDisplay to false", func() {
			gomega.Expect(entry.Terminal).To(gomega.BeFalse())
			gomega.Expect(entry.Hidden).To(gomega.BeFalse())
			gomega.Expect(entry.NoDisplay).To(gomega.BeFalse())
		})
	})

	ginkgo.Context("without a [Desktop Entry] group", func() {
		ginkgo.BeforeEach(func() {
			data = []byte("[Desktop Action foo]\nName=Foo\n")
			parseIt()
		})

		ginkgo.It("reports a parse error", func() {
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Context("with locale-suffixed Name fields", func() {
		ginkgo.BeforeEach(func() {
			data = []byte("[Desktop Entry]\nName=Editor\nName[de_DE]=Editor (DE)\nName[de]=Editor (de)\nExec=editor\n")
		})

		ginkgo.It("picks the most specific match in the chain", func() {
			localeChain = []string{"de_DE", "de"}
			parseIt()
			gomega.Expect(entry.Name).To(gomega.Equal("Editor (DE)"))
		})

		ginkgo.It("falls back to a less specific chain entry", func() {
			localeChain = []string{"de_AT", "de"}
			parseIt()
			gomega.Expect(entry.Name).To(gomega.Equal("Editor (de)"))
		})

		ginkgo.It("falls back to the unsuffixed value when nothing in the chain matches", func() {
			localeChain = []string{"fr_FR", "fr"}
			parseIt()
			gomega.Expect(entry.Name).To(gomega.Equal("Editor"))
		})
	})

	ginkgo.Context("with Categories/Keywords/MimeType semicolon lists", func() {
		ginkgo.BeforeEach(func() {
			data = []byte("[Desktop Entry]\nName=App\nExec=app\nCategories=Utility;Development;;\nKeywords=foo\\;bar;baz\n")
			parseIt()
		})

		ginkgo.It("drops trailing empty segments", func() {
			gomega.Expect(entry.Categories).To(gomega.Equal([]string{"Utility", "Development"}))
		})

		ginkgo.It("honors escaped semicolons", func() {
			gomega.Expect(entry.Keywords).To(gomega.Equal([]string{"foo;bar", "baz"}))
		})
	})

	ginkgo.Context("with a declared action", func() {
		ginkgo.BeforeEach(func() {
			data = []byte("[Desktop Entry]\nName=App\nExec=app\nActions=NewWindow;\n\n[Desktop Action NewWindow]\nName=New Window\nExec=app --new-window\n")
			parseIt()
		})

		ginkgo.It("resolves the action group", func() {
			gomega.Expect(entry.Actions).To(gomega.HaveLen(1))
			gomega.Expect(entry.Actions[0].ID).To(gomega.Equal("NewWindow"))
			gomega.Expect(entry.Actions[0].Exec).To(gomega.Equal("app --new-window"))
		})
	})

	ginkgo.Context("with an action listed in Actions but missing its group", func() {
		ginkgo.BeforeEach(func() {
			data = []byte("[Desktop Entry]\nName=App\nExec=app\nActions=Missing;\n")
			parseIt()
		})

		ginkgo.It("silently omits the unresolvable action", func() {
			gomega.Expect(entry.Actions).To(gomega.BeEmpty())
		})
	})

	ginkgo.Context("with Hidden=true", func() {
		ginkgo.BeforeEach(func() {
			data = []byte("[Desktop Entry]\nName=App\nExec=app\nHidden=true\n")
			parseIt()
		})

		ginkgo.It("sets Hidden", func() {
			gomega.Expect(entry.Hidden).To(gomega.BeTrue())
		})
	})
})

var _ = ginkgo.Describe("LocaleChain", func() {
	ginkgo.It("expands lang_COUNTRY@MODIFIER into the full specificity chain", func() {
		gomega.Expect(LocaleChain("de_DE.UTF-8@euro")).To(gomega.Equal(
			[]string{"de_DE@euro", "de_DE", "de@euro", "de"},
		))
	})

	ginkgo.It("expands a bare language code", func() {
		gomega.Expect(LocaleChain("fr")).To(gomega.Equal([]string{"fr"}))
	})

	ginkgo.It("treats C and POSIX as no locale", func() {
		gomega.Expect(LocaleChain("C")).To(gomega.BeNil())
		gomega.Expect(LocaleChain("POSIX")).To(gomega.BeNil())
	})

	ginkgo.It("treats an empty string as no locale", func() {
		gomega.Expect(LocaleChain("")).To(gomega.BeNil())
	})
})

var _ = ginkgo.Describe("EffectiveLocaleChain", func() {
	ginkgo.It("prefers LC_MESSAGES over LC_ALL and LANG", func() {
		gomega.Expect(EffectiveLocaleChain("de_DE", "fr_FR", "es_ES")).To(gomega.Equal([]string{"de_DE", "de"}))
	})

	ginkgo.It("falls back to LANG when LC_MESSAGES and LC_ALL are unset", func() {
		gomega.Expect(EffectiveLocaleChain("", "", "ja_JP")).To(gomega.Equal([]string{"ja_JP", "ja"}))
	})
})
