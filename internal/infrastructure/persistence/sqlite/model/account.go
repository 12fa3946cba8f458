package model

type Account struct {
	AccountID uint64 `gorm:"column:account_id;primaryKey;autoIncrement"`
	Name      string `gorm:"column:name;type:text;not null;uniqueIndex"`
	Balance   int64  `gorm:"column:balance;not null;default:0"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (Account) TableName() string {
	return "accounts"
}
