package expense

import "time"

type OfficeExpense struct {
	ID              int64     `gorm:"primaryKey"`
	AddedBy         int64     `gorm:"column:added_by;not null;index"`
	AmountIDR       int64     `gorm:"column:amount_idr;not null"`
	Description     string    `gorm:"column:description;not null"`
	Category        string    `gorm:"column:category;index"`
	ReceiptURL      *string   `gorm:"column:receipt_url"`
	ReceiptFileName *string   `gorm:"column:receipt_filename"`
	ExpenseDate     time.Time `gorm:"column:expense_date;type:date"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (OfficeExpense) TableName() string {
	return "office_expenses"
}
