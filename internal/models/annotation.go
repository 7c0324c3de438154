package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Annotation is a single annotator's submission for one task of one
// discussion. At most one row exists per (discussion, user, task); a later
// submission replaces the earlier one in place.
type Annotation struct {
	DiscussionID string `gorm:"primaryKey;size:32"`
	UserID       string `gorm:"primaryKey;size:64"`
	TaskID       int    `gorm:"primaryKey"`
	Data         string `gorm:"type:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DataMap unmarshals the annotation's JSON payload.
func (a *Annotation) DataMap() (map[string]interface{}, error) {
	return unmarshalData(a.Data)
}

// SetData marshals m into the annotation's JSON payload.
func (a *Annotation) SetData(m map[string]interface{}) error {
	s, err := marshalData(m)
	if err != nil {
		return err
	}
	a.Data = s
	return nil
}

func unmarshalData(s string) (map[string]interface{}, error) {
	if s == "" {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("models: unmarshal data: %w", err)
	}
	return m, nil
}

func marshalData(m map[string]interface{}) (string, error) {
	if m == nil {
		m = map[string]interface{}{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("models: marshal data: %w", err)
	}
	return string(b), nil
}
