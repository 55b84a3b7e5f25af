package models

import "time"

// Feedback is append-only.
type Feedback struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	MemberID  string    `gorm:"column:member_id;type:varchar(128);not null;index" json:"member_id"`
	Rating    int       `gorm:"column:rating;type:smallint;not null" json:"rating"`
	Comment   string    `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func (Feedback) TableName() string {
	return "feedback"
}
