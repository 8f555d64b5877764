package survload_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	survload "github.com/civicdata/survload/pkg"
	"github.com/civicdata/survload/pkg/config"
)

type fakeIngester struct {
	called bool
	err    error
}

func (f *fakeIngester) Ingest() error {
	f.called = true
	return f.err
}

type fakeReindexer struct {
	dropped, reindexed bool
}

func (f *fakeReindexer) Drop() error {
	f.dropped = true
	return nil
}

func (f *fakeReindexer) Reindex() error {
	f.reindexed = true
	return nil
}

var _ = Describe("SurvLoad", func() {
	It("generates a new instance of SurvLoad", func() {
		sl := survload.New(config.New())
		Expect(sl).ToNot(BeNil())
	})

	It("delegates ingestion to the Ingester", func() {
		sl := survload.New(config.New())
		ing := &fakeIngester{}
		Expect(sl.Ingest(ing)).To(Succeed())
		Expect(ing.called).To(BeTrue())

		ing = &fakeIngester{err: errors.New("boom")}
		Expect(sl.Ingest(ing)).To(HaveOccurred())
	})

	It("delegates index maintenance to the Reindexer", func() {
		sl := survload.New(config.New())
		rx := &fakeReindexer{}
		Expect(sl.Reindex(rx)).To(Succeed())
		Expect(rx.reindexed).To(BeTrue())
	})
})
