package model

type KV struct {
	Key       string  `gorm:"column:key;type:text;primaryKey"`
	Value     string  `gorm:"column:value;type:text;not null"`
	ExpiresAt *string `gorm:"column:expires_at;type:text"`
	UpdatedAt string  `gorm:"column:updated_at;type:text;not null"`
}

func (KV) TableName() string {
	return "kv"
}

// All lists every model for schema migration.
func All() []any {
	return []any{
		&Account{},
		&Entry{},
		&AuditRecord{},
		&KV{},
	}
}
