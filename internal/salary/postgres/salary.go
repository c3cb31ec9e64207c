package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	salaryDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/salary"
	"github.com/frahmantamala/office-erp/internal/salary"
)

type SalaryRepository struct {
	db *gorm.DB
}

func NewSalaryRepository(db *gorm.DB) *SalaryRepository {
	return &SalaryRepository{db: db}
}

func (r *SalaryRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *SalaryRepository) Create(ctx context.Context, rec *salaryDatamodel.SalaryRecord) error {
	return r.conn(ctx).Create(rec).Error
}

func (r *SalaryRepository) GetByID(ctx context.Context, id int64) (*salaryDatamodel.SalaryRecord, error) {
	return r.first(r.conn(ctx).Where("id = ?", id))
}

func (r *SalaryRepository) GetScoped(ctx context.Context, id int64, scope authz.Scope) (*salaryDatamodel.SalaryRecord, error) {
	return r.first(scope.Apply(r.conn(ctx).Where("id = ?", id)))
}

// PeriodTaken reports whether employeeID already has a record for period, ignoring exceptID.
func (r *SalaryRepository) PeriodTaken(ctx context.Context, employeeID int64, period string, exceptID int64) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&salaryDatamodel.SalaryRecord{}).
		Where("employee_id = ? AND period = ? AND id <> ?", employeeID, period, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (r *SalaryRepository) List(ctx context.Context, filter salary.ListFilter, scope authz.Scope) ([]*salaryDatamodel.SalaryRecord, int64, error) {
	q := scope.Apply(r.conn(ctx).Model(&salaryDatamodel.SalaryRecord{}))
	if filter.EmployeeID != nil {
		q = q.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.Period != "" {
		q = q.Where("period = ?", filter.Period)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*salaryDatamodel.SalaryRecord
	err := q.Order("period DESC").
		Order("employee_id").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	return rows, total, err
}

func (r *SalaryRepository) Update(ctx context.Context, rec *salaryDatamodel.SalaryRecord) error {
	return r.conn(ctx).Model(&salaryDatamodel.SalaryRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"period":         rec.Period,
			"basic_idr":      rec.BasicIDR,
			"allowances_idr": rec.AllowancesIDR,
			"deductions_idr": rec.DeductionsIDR,
			"net_idr":        rec.NetIDR,
			"note":           rec.Note,
			"updated_at":     rec.UpdatedAt,
		}).Error
}

func (r *SalaryRepository) Delete(ctx context.Context, id int64) error {
	res := r.conn(ctx).Delete(&salaryDatamodel.SalaryRecord{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return salary.ErrRecordNotFound
	}
	return nil
}

func (r *SalaryRepository) first(q *gorm.DB) (*salaryDatamodel.SalaryRecord, error) {
	var rec salaryDatamodel.SalaryRecord
	if err := q.First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, salary.ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}
