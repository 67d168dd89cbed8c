package models

import (
	"time"
)

type Conflict struct {
	ID             string     `json:"id" gorm:"primaryKey;type:text"`
	Collection     string     `json:"collection" gorm:"type:text;not null"`
	ContentID      string     `json:"contentId" gorm:"type:text;index;not null"`
	LocalChange    string     `json:"localChange" gorm:"type:text;not null"`
	ServerSnapshot string     `json:"serverSnapshot" gorm:"type:text;not null"`
	BaseUpdatedAt  time.Time  `json:"baseUpdatedAt" gorm:"type:timestamp with time zone"`
	Strategy       string     `json:"strategy" gorm:"type:text"`
	Resolved       bool       `json:"resolved" gorm:"type:boolean;not null;default:false;index"`
	CreatedAt      time.Time  `json:"createdAt" gorm:"->;<-:create;type:timestamp with time zone;not null"`
	CreatedBy      string     `json:"createdBy" gorm:"type:text"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty" gorm:"type:timestamp with time zone"`
	ResolvedBy     string     `json:"resolvedBy,omitempty" gorm:"type:text"`
}
