package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is an in-app message for a single recipient.
type Notification struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID  `gorm:"column:recipient_id;type:uuid;not null;index" json:"recipient_id"`
	Event       string     `gorm:"column:event;type:text;not null" json:"event"`
	Title       string     `gorm:"column:title;type:text;not null" json:"title"`
	Message     string     `gorm:"column:message;type:text;not null" json:"message"`
	Link        *string    `gorm:"column:link;type:text" json:"link,omitempty"`
	ReadAt      *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
