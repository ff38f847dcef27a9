package scorerepo

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pointsledger/receipt-processor/internal/domain"
	"github.com/pointsledger/receipt-processor/internal/ports/out/scorerepo"
)

var _ = Describe("Repo", func() {
	var (
		ctx    context.Context
		dbPath string
		repo   *Repo
	)

	BeforeEach(func() {
		ctx = context.Background()
		dbPath = filepath.Join(GinkgoT().TempDir(), "scores.db")
		var err error
		repo, err = Open(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if repo != nil {
			repo.Close()
		}
	})

	Describe("Put", func() {
		var (
			rec domain.ScoreRecord
			err error
		)

		BeforeEach(func() {
			rec = domain.ScoreRecord{
				ID:        "0b6e4c2e-4e0a-4d4b-9d53-1f0c1f3a9a11",
				Points:    28,
				CreatedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			}
		})

		JustBeforeEach(func() {
			err = repo.Put(ctx, rec)
		})

		When("the id is new", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should be readable immediately", func() {
				got, getErr := repo.Get(ctx, rec.ID)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(got).To(Equal(rec))
			})
		})

		When("the id already exists", func() {
			JustBeforeEach(func() {
				dup := rec
				dup.Points = 99
				err = repo.Put(ctx, dup)
			})

			It("should return ErrAlreadyExists", func() {
				Expect(err).To(MatchError(scorerepo.ErrAlreadyExists))
			})

			It("should keep the original points", func() {
				got, getErr := repo.Get(ctx, rec.ID)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(got.Points).To(Equal(28))
			})
		})

		When("the id is empty", func() {
			BeforeEach(func() {
				rec.ID = ""
			})

			It("should return ErrInvalidID", func() {
				Expect(err).To(MatchError(scorerepo.ErrInvalidID))
			})
		})
	})

	Describe("Get", func() {
		When("the id was never stored", func() {
			It("should return ErrNotFound", func() {
				_, err := repo.Get(ctx, "never-issued")
				Expect(err).To(MatchError(scorerepo.ErrNotFound))
			})
		})
	})

	Describe("reopening the file", func() {
		It("should keep previously stored scores", func() {
			Expect(repo.Put(ctx, domain.ScoreRecord{ID: "r-1", Points: 109, CreatedAt: time.Unix(100, 0).UTC()})).To(Succeed())
			Expect(repo.Close()).To(Succeed())

			var err error
			repo, err = Open(dbPath)
			Expect(err).NotTo(HaveOccurred())

			got, err := repo.Get(ctx, "r-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Points).To(Equal(109))
		})
	})
})
