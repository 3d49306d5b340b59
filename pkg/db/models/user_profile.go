package models

import "time"

// UserProfile carries auxiliary metadata for a user key. Profiles live
// independently of assignments; a user may have a profile with zero plans.
type UserProfile struct {
	UserKey      string    `gorm:"column:user_key;primaryKey"`
	Name         string    `gorm:"column:name;default:''"`
	Email        string    `gorm:"column:email;default:''"`
	Notes        string    `gorm:"column:notes;default:''"`
	NativeUserID int64     `gorm:"column:native_user_id;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
