package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/dskidx/dskidx/internal/model"
	"github.com/dskidx/dskidx/internal/parsecache"
)

var _ = ginkgo.Describe("Registry", func() {
	var (
		buildCalls atomic.Int32
		reg        *Registry
	)

	ginkgo.BeforeEach(func() {
		buildCalls.Store(0)
		reg = New(nil, func(key model.IndexKey, _ *parsecache.Cache) (*model.Index, error) {
			buildCalls.Add(1)
			return &model.Index{Key: key}, nil
		})
	})

	ginkgo.Context("a single key requested once", func() {
		ginkgo.It("builds exactly once", func() {
			_, err := reg.GetOrBuild(model.IndexKey{Roots: []string{"/a"}})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(buildCalls.Load()).To(gomega.BeEquivalentTo(1))
		})
	})

	ginkgo.Context("the same key requested repeatedly", func() {
		ginkgo.It("builds only once, reusing the published index", func() {
			key := model.IndexKey{Roots: []string{"/a"}}
			_, err := reg.GetOrBuild(key)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			_, err = reg.GetOrBuild(key)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			_, err = reg.GetOrBuild(key)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(buildCalls.Load()).To(gomega.BeEquivalentTo(1))
		})
	})

	ginkgo.Context("concurrent callers for the same key", func() {
		ginkgo.It("share exactly one build", func() {
			key := model.IndexKey{Roots: []string{"/concurrent"}}
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = reg.GetOrBuild(key)
				}()
			}
			wg.Wait()
			gomega.Expect(buildCalls.Load()).To(gomega.BeEquivalentTo(1))
		})
	})

	ginkgo.Context("distinct keys", func() {
		ginkgo.It("build independently", func() {
			_, err := reg.GetOrBuild(model.IndexKey{Roots: []string{"/a"}})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			_, err = reg.GetOrBuild(model.IndexKey{Roots: []string{"/b"}})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(buildCalls.Load()).To(gomega.BeEquivalentTo(2))
		})
	})

	ginkgo.Context("Status", func() {
		ginkgo.It("reports the count of published indexes", func() {
			gomega.Expect(reg.Status()).To(gomega.Equal(0))
			_, _ = reg.GetOrBuild(model.IndexKey{Roots: []string{"/a"}})
			gomega.Expect(reg.Status()).To(gomega.Equal(1))
		})
	})

	ginkgo.Context("Invalidate", func() {
		ginkgo.It("forces a rebuild on the next GetOrBuild", func() {
			key := model.IndexKey{Roots: []string{"/a"}}
			_, _ = reg.GetOrBuild(key)
			reg.Invalidate(key)
			_, _ = reg.GetOrBuild(key)
			gomega.Expect(buildCalls.Load()).To(gomega.BeEquivalentTo(2))
		})
	})

	ginkgo.Context("a build that fails", func() {
		ginkgo.BeforeEach(func() {
			reg = New(nil, func(key model.IndexKey, _ *parsecache.Cache) (*model.Index, error) {
				buildCalls.Add(1)
				return nil, fmt.Errorf("boom")
			})
		})

		ginkgo.It("propagates the error and does not publish", func() {
			key := model.IndexKey{Roots: []string{"/a"}}
			_, err := reg.GetOrBuild(key)
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(reg.Status()).To(gomega.Equal(0))
		})

		ginkgo.It("retries the build on the next call", func() {
			key := model.IndexKey{Roots: []string{"/a"}}
			_, _ = reg.GetOrBuild(key)
			_, _ = reg.GetOrBuild(key)
			gomega.Expect(buildCalls.Load()).To(gomega.BeEquivalentTo(2))
		})
	})
})
