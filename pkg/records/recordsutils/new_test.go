package recordsutils_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rxrank/pkg/logger"
	"github.com/papercomputeco/rxrank/pkg/records"
	"github.com/papercomputeco/rxrank/pkg/records/recordsutils"
)

var _ = Describe("NewReader", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("returns the empty reader for none and for an empty provider", func() {
		for _, p := range []string{"", recordsutils.ProviderNone} {
			r, err := recordsutils.NewReader(ctx, &recordsutils.NewReaderOpts{ProviderType: p})
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(Equal(records.None{}))
		}
	})

	It("loads the file provider from a records artifact", func() {
		path := filepath.Join(GinkgoT().TempDir(), "records.json")
		Expect(os.WriteFile(path, []byte(`{"records":[
			{"patient_id":"7","kind":"drug","code":"RX1","name":"aspirin"}
		]}`), 0o600)).To(Succeed())

		r, err := recordsutils.NewReader(ctx, &recordsutils.NewReaderOpts{
			ProviderType: recordsutils.ProviderFile,
			Artifact:     path,
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		out, err := r.Records(ctx, "7", "", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
	})

	It("opens a sqlite importer", func() {
		imp, err := recordsutils.NewImporter(ctx, &recordsutils.NewReaderOpts{
			ProviderType: recordsutils.ProviderSQLite,
			DSN:          ":memory:",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(imp.Close()).To(Succeed())
	})

	It("requires provider settings", func() {
		_, err := recordsutils.NewReader(ctx, &recordsutils.NewReaderOpts{ProviderType: recordsutils.ProviderFile})
		Expect(err).To(HaveOccurred())

		_, err = recordsutils.NewReader(ctx, &recordsutils.NewReaderOpts{ProviderType: recordsutils.ProviderSQLite})
		Expect(err).To(MatchError(ContainSubstring("dsn")))

		_, err = recordsutils.NewReader(ctx, &recordsutils.NewReaderOpts{ProviderType: recordsutils.ProviderNeo4j})
		Expect(err).To(MatchError(ContainSubstring("neo4j")))
	})

	It("rejects unknown providers", func() {
		_, err := recordsutils.NewReader(ctx, &recordsutils.NewReaderOpts{ProviderType: "mongo"})
		Expect(err).To(MatchError(ContainSubstring("unknown records provider")))
	})
})
