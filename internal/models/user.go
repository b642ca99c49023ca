package models

import (
	"time"

	"gorm.io/gorm"
)

// User account record.
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`                       // primary key
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`          // login email
	PasswordHash string         `gorm:"not null" json:"-"`                          // bcrypt hash, never returned
	Name         string         `gorm:"default:''" json:"name"`                     // display name
	Role         string         `gorm:"not null;default:'customer'" json:"role"`    // customer / admin
	LastLoginAt  *time.Time     `json:"last_login_at"`                              // last successful login
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                    // created timestamp
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                    // updated timestamp
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                             // soft delete
}

// TableName sets the table name.
func (User) TableName() string {
	return "users"
}
