package model

// Entry is one signed balance movement. A transfer writes two entries that share a
// TransferRef.
type Entry struct {
	EntryID     uint64 `gorm:"column:entry_id;primaryKey;autoIncrement"`
	Account     string `gorm:"column:account;type:text;not null;index"`
	Amount      int64  `gorm:"column:amount;not null"`
	TransferRef string `gorm:"column:transfer_ref;type:text;not null;default:''"`
	Memo        string `gorm:"column:memo;type:text;not null;default:''"`
	CreatedAt   string `gorm:"column:created_at;type:text;not null"`
}

func (Entry) TableName() string {
	return "entries"
}
