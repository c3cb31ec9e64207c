package user

import "time"

const (
	StatusActive    = "Active"
	StatusInactive  = "Inactive"
	StatusSuspended = "Suspended"
)

type User struct {
	ID           int64     `gorm:"primaryKey"`
	Username     string    `gorm:"column:username;uniqueIndex;not null"`
	Email        string    `gorm:"column:email"`
	FullName     string    `gorm:"column:full_name;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	EmployeeID   *int64    `gorm:"column:employee_id;uniqueIndex"`
	Status       string    `gorm:"column:status;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// EmployeeManager links an employee to the employee who manages them. It backs the
// "assigned" scope of salary records, expenses and users.
type EmployeeManager struct {
	ID                int64     `gorm:"primaryKey"`
	ManagerEmployeeID int64     `gorm:"column:manager_employee_id;not null;uniqueIndex:idx_manager_employee"`
	EmployeeID        int64     `gorm:"column:employee_id;not null;uniqueIndex:idx_manager_employee"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (EmployeeManager) TableName() string {
	return "employee_managers"
}
