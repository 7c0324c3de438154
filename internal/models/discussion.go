package models

import "time"

// Discussion is the unit of review in Quorum: one ingested GitHub discussion
// that moves through the three annotation tasks.
type Discussion struct {
	ID           string `gorm:"primaryKey;size:32"`
	Title        string `gorm:"not null"`
	URL          string `gorm:"size:512"`
	Repository   string `gorm:"size:128;index"`
	Language     string `gorm:"size:64"`
	Release      string `gorm:"size:128"`
	QuestionBody string `gorm:"type:text"`
	BatchID      string `gorm:"size:64;index"`
	SkipToTask3  bool   `gorm:"default:false"`
	Archived     bool   `gorm:"default:false;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Tasks []TaskSlot `gorm:"foreignKey:DiscussionID"`
}

// TaskSlot holds the per-task workflow state of a discussion. Each discussion
// owns exactly three slots (task IDs 1..3). AnnotatorCount is a cached
// projection over the annotations table, recomputed on every annotation
// write rather than incremented in place.
type TaskSlot struct {
	DiscussionID       string `gorm:"primaryKey;size:32"`
	TaskID             int    `gorm:"primaryKey"`
	Status             string `gorm:"size:32;default:locked;index"`
	AnnotatorCount     int    `gorm:"default:0"`
	RequiredAnnotators int    `gorm:"not null"`
	UpdatedAt          time.Time
}
