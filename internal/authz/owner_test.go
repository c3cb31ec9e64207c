package authz_test

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/office-erp/internal/authz"
)

var _ = Describe("OwnerLookup", func() {
	var (
		ctx    context.Context
		rawDB  *sql.DB
		mock   sqlmock.Sqlmock
		lookup *authz.OwnerLookup
		emp    int64
		sub    authz.Subject
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		rawDB, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		lookup = authz.NewOwnerLookup(sqlx.NewDb(rawDB, "sqlmock"))
		emp = 100
		sub = activeSubject(1)
		sub.EmployeeID = &emp
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		rawDB.Close()
	})

	It("marks the submitter of an expense as its owner", func() {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT added_by FROM office_expenses WHERE id = ?`)).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"added_by"}).AddRow(100))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM employee_managers`)).
			WithArgs(int64(100), int64(100)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		rel, err := lookup.Relation(ctx, authz.ResourceOfficeExpenses, 9, sub)
		Expect(err).NotTo(HaveOccurred())
		Expect(rel).To(Equal(authz.RowRelation{Exists: true, IsOwner: true}))
	})

	It("marks salary records of managed employees as assigned", func() {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT employee_id FROM salary_records WHERE id = ?`)).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"employee_id"}).AddRow(200))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM employee_managers`)).
			WithArgs(int64(100), int64(200)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		rel, err := lookup.Relation(ctx, authz.ResourceSalaryRecords, 4, sub)
		Expect(err).NotTo(HaveOccurred())
		Expect(rel).To(Equal(authz.RowRelation{Exists: true, IsAssigned: true}))
	})

	It("skips the manager lookup for subjects without an employee record", func() {
		sub.EmployeeID = nil
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT added_by FROM office_expenses WHERE id = ?`)).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"added_by"}).AddRow(100))

		rel, err := lookup.Relation(ctx, authz.ResourceOfficeExpenses, 9, sub)
		Expect(err).NotTo(HaveOccurred())
		Expect(rel).To(Equal(authz.RowRelation{Exists: true}))
	})

	It("reports shared notes as assigned", func() {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_by FROM notebook_notes WHERE id = ?`)).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"created_by"}).AddRow(42))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM notebook_note_shares`)).
			WithArgs(int64(3), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		rel, err := lookup.Relation(ctx, authz.ResourceNotebookNotes, 3, sub)
		Expect(err).NotTo(HaveOccurred())
		Expect(rel).To(Equal(authz.RowRelation{Exists: true, IsAssigned: true}))
	})

	It("reports missing rows without an error", func() {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT employee_id FROM users WHERE id = ?`)).
			WithArgs(int64(77)).
			WillReturnError(sql.ErrNoRows)

		rel, err := lookup.Relation(ctx, authz.ResourceUsers, 77, sub)
		Expect(err).NotTo(HaveOccurred())
		Expect(rel.Exists).To(BeFalse())
	})

	It("wraps database failures", func() {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_by FROM notebook_notes WHERE id = ?`)).
			WithArgs(int64(3)).
			WillReturnError(errStoreDown)

		_, err := lookup.Relation(ctx, authz.ResourceNotebookNotes, 3, sub)
		Expect(err).To(MatchError(ContainSubstring("lookup note 3")))
	})
})
