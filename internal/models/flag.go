package models

import "time"

// Flag is an out-of-band problem report against one task of a discussion.
// TaskID is the task judged defective, which may be upstream of the task the
// reporter was working on. An unresolved flag suppresses automatic status
// correction for its task.
type Flag struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	DiscussionID      string `gorm:"size:32;index;not null"`
	TaskID            int    `gorm:"not null;index"`
	Category          string `gorm:"size:32;not null"`
	Reason            string `gorm:"type:text;not null"`
	WorkflowScenario  string `gorm:"size:32"`
	FlaggedFromTaskID int
	FlaggedBy         string `gorm:"size:64"`
	FlaggedByRole     string `gorm:"size:32"`
	Resolved          bool   `gorm:"default:false;index"`
	ResolvedBy        string `gorm:"size:64"`
	ResolvedAt        *time.Time
	CreatedAt         time.Time
}
