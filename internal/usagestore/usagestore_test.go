package usagestore

import (
	"os"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Store", func() {
	var (
		dir   string
		store *Store
	)

	ginkgo.BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "dskidx-usagestore-test-*")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		store, err = Open(dir)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	})

	ginkgo.AfterEach(func() {
		store.Close()
		os.RemoveAll(dir)
	})

	ginkgo.Context("before any launch is recorded", func() {
		ginkgo.It("returns a zero record for Get", func() {
			rec := store.Get("app.desktop")
			gomega.Expect(rec.Count).To(gomega.BeZero())
			gomega.Expect(rec.LastLaunchNS).To(gomega.BeZero())
		})
	})

	ginkgo.Context("after recording launches", func() {
		ginkgo.BeforeEach(func() {
			gomega.Expect(store.RecordLaunch("app.desktop", 1000)).To(gomega.Succeed())
			gomega.Expect(store.RecordLaunch("app.desktop", 2000)).To(gomega.Succeed())
		})

		ginkgo.It("increments the count", func() {
			rec := store.Get("app.desktop")
			gomega.Expect(rec.Count).To(gomega.BeEquivalentTo(2))
		})

		ginkgo.It("tracks the most recent launch timestamp", func() {
			rec := store.Get("app.desktop")
			gomega.Expect(rec.LastLaunchNS).To(gomega.BeEquivalentTo(2000))
		})

		ginkgo.It("surfaces the record via All", func() {
			all := store.All()
			gomega.Expect(all).To(gomega.HaveKey("app.desktop"))
			gomega.Expect(all["app.desktop"].Count).To(gomega.BeEquivalentTo(2))
		})
	})

	ginkgo.Context("persistence across Close/Open", func() {
		ginkgo.BeforeEach(func() {
			gomega.Expect(store.RecordLaunch("app.desktop", 1000)).To(gomega.Succeed())
			gomega.Expect(store.Close()).To(gomega.Succeed())

			var err error
			store, err = Open(dir)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("retains the recorded launch", func() {
			rec := store.Get("app.desktop")
			gomega.Expect(rec.Count).To(gomega.BeEquivalentTo(1))
		})
	})
})
