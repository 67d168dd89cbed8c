package models

import (
	"time"
)

type Content struct {
	ID         string     `json:"id" gorm:"primaryKey;type:text"`
	Collection string     `json:"collection" gorm:"type:text;index:idx_content_collection;not null"`
	Status     string     `json:"status" gorm:"type:text;index"`
	Category   string     `json:"category" gorm:"type:text;index"`
	Fields     string     `json:"fields" gorm:"type:text;not null"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"->;<-:create;type:timestamp with time zone;not null"`
	CreatedBy  string     `json:"createdBy" gorm:"->;<-:create;type:text"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"type:timestamp with time zone;not null"`
	UpdatedBy  string     `json:"updatedBy" gorm:"type:text"`
	MergedAt   *time.Time `json:"mergedAt,omitempty" gorm:"type:timestamp with time zone"`
	MergedBy   string     `json:"mergedBy,omitempty" gorm:"type:text"`
}

type History struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Collection    string    `json:"collection" gorm:"type:text;index:idx_history_doc;not null"`
	ContentID     string    `json:"contentId" gorm:"type:text;index:idx_history_doc;not null"`
	Action        string    `json:"action" gorm:"type:text;not null"`
	Actor         string    `json:"actor" gorm:"type:text"`
	ChangedFields string    `json:"changedFields" gorm:"type:text"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
