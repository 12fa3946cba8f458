package model

type AuditRecord struct {
	AuditID   uint64 `gorm:"column:audit_id;primaryKey;autoIncrement"`
	Ref       string `gorm:"column:ref;type:text;not null;index"`
	Actor     string `gorm:"column:actor;type:text;not null"`
	Action    string `gorm:"column:action;type:text;not null"`
	Outcome   string `gorm:"column:outcome;type:text;not null"`
	Detail    string `gorm:"column:detail;type:text;not null;default:''"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}
