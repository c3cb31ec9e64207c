package salary

import (
	"context"
	"time"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	salaryDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/salary"
)

type Record struct {
	ID            int64     `json:"id"`
	EmployeeID    int64     `json:"employee_id"`
	Period        string    `json:"period"`
	BasicIDR      int64     `json:"basic_idr"`
	AllowancesIDR int64     `json:"allowances_idr"`
	DeductionsIDR int64     `json:"deductions_idr"`
	NetIDR        int64     `json:"net_idr"`
	Note          string    `json:"note,omitempty"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ListFilter struct {
	EmployeeID *int64
	Period     string
	Limit      int
	Offset     int
}

type RepositoryAPI interface {
	Create(ctx context.Context, r *salaryDatamodel.SalaryRecord) error
	GetByID(ctx context.Context, id int64) (*salaryDatamodel.SalaryRecord, error)
	GetScoped(ctx context.Context, id int64, scope authz.Scope) (*salaryDatamodel.SalaryRecord, error)
	PeriodTaken(ctx context.Context, employeeID int64, period string, exceptID int64) (bool, error)
	List(ctx context.Context, filter ListFilter, scope authz.Scope) ([]*salaryDatamodel.SalaryRecord, int64, error)
	Update(ctx context.Context, r *salaryDatamodel.SalaryRecord) error
	Delete(ctx context.Context, id int64) error
}

var (
	ErrRecordNotFound    = internal.NewNotFoundError("Salary record not found", internal.ErrCodeSalaryRecordNotFound)
	ErrDuplicatePeriod   = internal.NewConflictError("A salary record already exists for this employee and period", internal.ErrCodeDuplicateSalary)
	ErrNegativeNetSalary = internal.NewValidationFieldError("deductions_idr", "deductions cannot exceed basic salary plus allowances", internal.ErrCodeAmountTooHigh)
)

// RowFilter relates salary records to s: own records are paid to s's employee record,
// assigned records to employees s manages.
func RowFilter(s authz.Subject) authz.RowFilter {
	return authz.RowFilter{
		OwnerColumn: "employee_id",
		OwnerValue:  authz.OwnerRef(s.EmployeeID),
		Assigned:    authz.ManagedBy("employee_id", s.EmployeeID),
	}
}

// Net is the take-home amount.
func Net(basic, allowances, deductions int64) int64 {
	return basic + allowances - deductions
}

func (r *Record) recompute() error {
	r.NetIDR = Net(r.BasicIDR, r.AllowancesIDR, r.DeductionsIDR)
	if r.NetIDR < 0 {
		return ErrNegativeNetSalary
	}
	return nil
}

func NewRecord(createdBy int64, dto CreateRecordDTO) (*Record, error) {
	now := time.Now()
	r := &Record{
		EmployeeID:    dto.EmployeeID,
		Period:        dto.Period,
		BasicIDR:      dto.BasicIDR,
		AllowancesIDR: dto.AllowancesIDR,
		DeductionsIDR: dto.DeductionsIDR,
		Note:          dto.Note,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.recompute(); err != nil {
		return nil, err
	}
	return r, nil
}

// Apply copies the fields present in dto and recomputes the net amount.
func (r *Record) Apply(dto UpdateRecordDTO) error {
	if dto.Period != nil {
		r.Period = *dto.Period
	}
	if dto.BasicIDR != nil {
		r.BasicIDR = *dto.BasicIDR
	}
	if dto.AllowancesIDR != nil {
		r.AllowancesIDR = *dto.AllowancesIDR
	}
	if dto.DeductionsIDR != nil {
		r.DeductionsIDR = *dto.DeductionsIDR
	}
	if dto.Note != nil {
		r.Note = *dto.Note
	}
	r.UpdatedAt = time.Now()
	return r.recompute()
}

func ToDataModel(r *Record) *salaryDatamodel.SalaryRecord {
	return &salaryDatamodel.SalaryRecord{
		ID:            r.ID,
		EmployeeID:    r.EmployeeID,
		Period:        r.Period,
		BasicIDR:      r.BasicIDR,
		AllowancesIDR: r.AllowancesIDR,
		DeductionsIDR: r.DeductionsIDR,
		NetIDR:        r.NetIDR,
		Note:          r.Note,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func FromDataModel(r *salaryDatamodel.SalaryRecord) *Record {
	return &Record{
		ID:            r.ID,
		EmployeeID:    r.EmployeeID,
		Period:        r.Period,
		BasicIDR:      r.BasicIDR,
		AllowancesIDR: r.AllowancesIDR,
		DeductionsIDR: r.DeductionsIDR,
		NetIDR:        r.NetIDR,
		Note:          r.Note,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*salaryDatamodel.SalaryRecord) []*Record {
	out := make([]*Record, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out
}
