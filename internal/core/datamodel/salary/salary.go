package salary

import "time"

type SalaryRecord struct {
	ID            int64     `gorm:"primaryKey"`
	EmployeeID    int64     `gorm:"column:employee_id;not null;uniqueIndex:idx_salary_employee_period"`
	Period        string    `gorm:"column:period;not null;uniqueIndex:idx_salary_employee_period"`
	BasicIDR      int64     `gorm:"column:basic_idr;not null"`
	AllowancesIDR int64     `gorm:"column:allowances_idr;not null"`
	DeductionsIDR int64     `gorm:"column:deductions_idr;not null"`
	NetIDR        int64     `gorm:"column:net_idr;not null"`
	Note          string    `gorm:"column:note"`
	CreatedBy     int64     `gorm:"column:created_by;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SalaryRecord) TableName() string {
	return "salary_records"
}
