package models

import "time"

// Known AppSetting keys.
const (
	SettingAPITokenHash = "api_token_hash"
)

// AppSetting stores small persistent key/value settings in SQLite, such as
// the API token hash. It is intentionally generic to avoid adding new tables
// for every tiny feature.
type AppSetting struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
