package authz_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frahmantamala/office-erp/internal/authz"
	expenseDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/expense"
)

var _ = Describe("Narrow", func() {
	var db *gorm.DB

	managedBy := func(manager int64) func() (string, []any) {
		return authz.ManagedBy("added_by", &manager)
	}

	ids := func(q *gorm.DB) []int64 {
		var out []int64
		Expect(q.Model(&expenseDatamodel.OfficeExpense{}).Order("id").Pluck("id", &out).Error).To(Succeed())
		return out
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.Exec("CREATE TABLE employee_managers (manager_employee_id INTEGER, employee_id INTEGER)").Error).To(Succeed())
		Expect(db.AutoMigrate(&expenseDatamodel.OfficeExpense{})).To(Succeed())

		for _, addedBy := range []int64{100, 200, 300} {
			Expect(db.Create(&expenseDatamodel.OfficeExpense{
				AddedBy:     addedBy,
				AmountIDR:   1000,
				Description: "paper",
				ExpenseDate: time.Now(),
			}).Error).To(Succeed())
		}
		Expect(db.Exec("INSERT INTO employee_managers VALUES (100, 200)").Error).To(Succeed())
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	It("leaves the query unfiltered for the all scope", func() {
		Expect(ids(authz.Narrow(db, authz.Visibility{All: true}, authz.RowFilter{}))).To(HaveLen(3))
	})

	It("filters to owned rows for the own scope", func() {
		filter := authz.RowFilter{OwnerColumn: "added_by", OwnerValue: int64(100)}
		Expect(ids(authz.Narrow(db, authz.Visibility{Own: true}, filter))).To(Equal([]int64{1}))
	})

	It("combines own and assigned with OR", func() {
		filter := authz.RowFilter{OwnerColumn: "added_by", OwnerValue: int64(100), Assigned: managedBy(100)}
		Expect(ids(authz.Narrow(db, authz.Visibility{Own: true, Assigned: true}, filter))).To(Equal([]int64{1, 2}))
	})

	It("keeps the OR grouped when other conditions are present", func() {
		filter := authz.RowFilter{OwnerColumn: "added_by", OwnerValue: int64(100), Assigned: managedBy(100)}
		q := authz.Narrow(db.Where("id > ?", 1), authz.Visibility{Own: true, Assigned: true}, filter)
		Expect(ids(q)).To(Equal([]int64{2}))
	})

	It("returns nothing when the subject owns nothing", func() {
		filter := authz.RowFilter{OwnerColumn: "added_by", OwnerValue: authz.OwnerRef(nil)}
		Expect(ids(authz.Narrow(db, authz.Visibility{Own: true}, filter))).To(BeEmpty())
	})

	It("returns nothing when no scope is granted", func() {
		filter := authz.RowFilter{OwnerColumn: "added_by", OwnerValue: int64(100), Assigned: managedBy(100)}
		Expect(ids(authz.Narrow(db, authz.Visibility{}, filter))).To(BeEmpty())
	})

	It("decides single rows with Permits", func() {
		Expect(authz.Visibility{Own: true}.Permits(true, false)).To(BeTrue())
		Expect(authz.Visibility{Own: true}.Permits(false, true)).To(BeFalse())
		Expect(authz.Visibility{Assigned: true}.Permits(false, true)).To(BeTrue())
		Expect(authz.Visibility{All: true}.Permits(false, false)).To(BeTrue())
	})

	It("skips the assigned scope for subjects without an employee record", func() {
		filter := authz.RowFilter{OwnerColumn: "added_by", Assigned: authz.ManagedBy("added_by", nil)}
		Expect(ids(authz.Narrow(db, authz.Visibility{Own: true, Assigned: true}, filter))).To(BeEmpty())
	})

	It("applies a Scope", func() {
		scope := authz.Scope{
			Visibility: authz.Visibility{Assigned: true},
			Filter:     authz.RowFilter{Assigned: managedBy(100)},
		}
		Expect(ids(scope.Apply(db))).To(Equal([]int64{2}))
	})
})
