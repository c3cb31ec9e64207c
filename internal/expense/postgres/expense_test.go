package postgres

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	"github.com/frahmantamala/office-erp/internal/core/database/dbtest"
	expenseDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/expense"
	"github.com/frahmantamala/office-erp/internal/expense"
)

func TestExpenseRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ExpenseRepository Suite")
}

var _ = Describe("ExpenseRepository", func() {
	var (
		ctx  context.Context
		db   *gorm.DB
		repo *ExpenseRepository
	)

	all := authz.Scope{Visibility: authz.Visibility{All: true}}

	newExpense := func(addedBy int64, category string, daysAgo int) *expenseDatamodel.OfficeExpense {
		exp := &expenseDatamodel.OfficeExpense{
			AddedBy:     addedBy,
			AmountIDR:   100000,
			Description: "Test expense",
			Category:    category,
			ExpenseDate: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysAgo),
		}
		Expect(repo.Create(ctx, exp)).To(Succeed())
		return exp
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		repo = NewExpenseRepository(db)
	})

	AfterEach(func() {
		Expect(dbtest.Close(db)).To(Succeed())
	})

	Describe("Create", func() {
		It("should create an expense successfully", func() {
			exp := newExpense(1, "supplies", 1)
			Expect(exp.ID).To(BeNumerically(">", 0))
			Expect(exp.CreatedAt).NotTo(BeZero())
		})
	})

	Describe("GetByID", func() {
		It("should retrieve expense by ID successfully", func() {
			created := newExpense(1, "travel", 1)

			retrieved, err := repo.GetByID(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.AddedBy).To(Equal(created.AddedBy))
			Expect(retrieved.Category).To(Equal("travel"))
		})

		It("should return ErrExpenseNotFound for non-existent ID", func() {
			retrieved, err := repo.GetByID(ctx, 99999)
			Expect(err).To(Equal(expense.ErrExpenseNotFound))
			Expect(retrieved).To(BeNil())
		})
	})

	Describe("GetScoped", func() {
		It("should hide rows outside the scope", func() {
			created := newExpense(7, "travel", 1)
			own := authz.Scope{
				Visibility: authz.Visibility{Own: true},
				Filter:     authz.RowFilter{OwnerColumn: "added_by", OwnerValue: int64(8)},
			}

			_, err := repo.GetScoped(ctx, created.ID, own)
			Expect(err).To(Equal(expense.ErrExpenseNotFound))

			own.Filter.OwnerValue = int64(7)
			got, err := repo.GetScoped(ctx, created.ID, own)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(created.ID))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			newExpense(1, "supplies", 10)
			newExpense(1, "travel", 5)
			newExpense(2, "supplies", 1)
		})

		It("should filter by category and date range", func() {
			from := time.Date(2024, 6, 22, 0, 0, 0, 0, time.UTC)
			rows, total, err := repo.List(ctx, expense.ListFilter{Category: "supplies", From: &from, Limit: 20}, all)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(rows[0].AddedBy).To(Equal(int64(2)))
		})

		It("should count every match while paging", func() {
			rows, total, err := repo.List(ctx, expense.ListFilter{Limit: 2}, all)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(3)))
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].ExpenseDate.After(rows[1].ExpenseDate)).To(BeTrue())
		})
	})

	Describe("Update", func() {
		It("should update expense successfully", func() {
			created := newExpense(1, "travel", 1)
			created.Description = "Updated description"
			created.AmountIDR = 200000

			Expect(repo.Update(ctx, created)).To(Succeed())

			retrieved, err := repo.GetByID(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Description).To(Equal("Updated description"))
			Expect(retrieved.AmountIDR).To(Equal(int64(200000)))
		})
	})

	Describe("Delete", func() {
		It("should delete inside a transaction", func() {
			created := newExpense(1, "travel", 1)
			err := database.NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error {
				return repo.Delete(ctx, created.ID)
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = repo.GetByID(ctx, created.ID)
			Expect(err).To(Equal(expense.ErrExpenseNotFound))
		})

		It("should report missing rows", func() {
			Expect(repo.Delete(ctx, 424242)).To(Equal(expense.ErrExpenseNotFound))
		})
	})
})
