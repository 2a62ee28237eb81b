package model

// ConfigEntry is one key/value settings row. Values are stored as strings
// and parsed into a typed policy snapshot by core/policy.
type ConfigEntry struct {
	Key       string `gorm:"primaryKey;size:64" json:"key"`
	Value     string `gorm:"not null" json:"value"`
	UpdatedAt int64  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the table name aligned with the raw-SQL schema.
func (ConfigEntry) TableName() string { return "config" }
