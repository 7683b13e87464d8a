package direrr

import (
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Error", func() {
	ginkgo.It("includes the cause in Error() when wrapped", func() {
		cause := errors.New("disk full")
		err := Wrap(KindIO, "saving cache", cause)
		gomega.Expect(err.Error()).To(gomega.Equal("saving cache: disk full"))
	})

	ginkgo.It("omits the cause when built with New", func() {
		err := New(KindNotFound, "no such entry")
		gomega.Expect(err.Error()).To(gomega.Equal("no such entry"))
	})

	ginkgo.It("unwraps to the cause", func() {
		cause := errors.New("disk full")
		err := Wrap(KindIO, "saving cache", cause)
		gomega.Expect(errors.Unwrap(err)).To(gomega.Equal(cause))
	})
})

var _ = ginkgo.Describe("KindOf", func() {
	ginkgo.It("extracts the kind from a direct *Error", func() {
		gomega.Expect(KindOf(New(KindAlreadyRunning, "x"))).To(gomega.Equal(KindAlreadyRunning))
	})

	ginkgo.It("extracts the kind through an errors.Join wrapper", func() {
		wrapped := errors.Join(New(KindParse, "bad file"))
		gomega.Expect(KindOf(wrapped)).To(gomega.Equal(KindParse))
	})

	ginkgo.It("defaults to KindIO for an unrelated error", func() {
		gomega.Expect(KindOf(errors.New("plain"))).To(gomega.Equal(KindIO))
	})
})

var _ = ginkgo.Describe("NotFound", func() {
	ginkgo.It("reports true for a NotFound-kinded error", func() {
		gomega.Expect(NotFound(New(KindNotFound, "x"))).To(gomega.BeTrue())
	})

	ginkgo.It("reports false for any other kind", func() {
		gomega.Expect(NotFound(New(KindIO, "x"))).To(gomega.BeFalse())
	})
})
