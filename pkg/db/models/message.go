package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one inbound mail delivered to an Email.
type Message struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	EmailID     uuid.UUID `gorm:"type:uuid;column:email_id;not null"`
	FromAddress string    `gorm:"column:from_address;not null"`
	Subject     string    `gorm:"column:subject;not null"`
	Content     string    `gorm:"column:content;not null"`
	HTML        string    `gorm:"column:html;not null"`
	ReceivedAt  time.Time `gorm:"column:received_at;not null"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
