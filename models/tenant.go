package models

import (
	"time"

	"gorm.io/gorm"
)

type Tenant struct {
	ID        string         `gorm:"primary_key;size:36" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name" validate:"required"`
	Email     string         `gorm:"size:255" json:"email"`
	Phone     string         `gorm:"size:50" json:"phone"`
	Gstin     string         `gorm:"size:50" json:"gstin"`
	Address   string         `gorm:"type:text" json:"address"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
