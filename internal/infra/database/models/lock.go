package models

import (
	"time"
)

type EditLock struct {
	Collection  string    `json:"collection" gorm:"type:text;primaryKey"`
	ContentID   string    `json:"contentId" gorm:"type:text;primaryKey"`
	LockedBy    string    `json:"lockedBy" gorm:"type:text;index;not null"`
	DisplayName string    `json:"displayName" gorm:"type:text"`
	LockedAt    time.Time `json:"lockedAt" gorm:"type:timestamp with time zone;not null"`
}
