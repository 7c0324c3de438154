package models

import "time"

// AuthorOverride marks a consensus written by an explicit pod-lead/admin
// action rather than the aggregation engine.
const AuthorOverride = "override"

// AuthorAuto marks a consensus synthesized by the consensus engine from
// agreeing annotations.
const AuthorAuto = "auto"

// Consensus is the official judgment for one task of one discussion. At most
// one row exists per (discussion, task); writing a new one replaces the prior
// one wholesale.
type Consensus struct {
	DiscussionID string `gorm:"primaryKey;size:32"`
	TaskID       int    `gorm:"primaryKey"`
	Data         string `gorm:"type:json"`
	Stars        int    `gorm:"default:0"`
	Comment      string `gorm:"type:text"`
	AuthorID     string `gorm:"size:64;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DataMap unmarshals the consensus JSON payload.
func (c *Consensus) DataMap() (map[string]interface{}, error) {
	return unmarshalData(c.Data)
}

// SetData marshals m into the consensus JSON payload.
func (c *Consensus) SetData(m map[string]interface{}) error {
	s, err := marshalData(m)
	if err != nil {
		return err
	}
	c.Data = s
	return nil
}
