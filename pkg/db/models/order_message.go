package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderMessage is a chat line exchanged on a service order.
type OrderMessage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index:ix_order_messages_order_created,priority:1" json:"order_id"`
	SenderID  uuid.UUID `gorm:"column:sender_id;type:uuid;not null" json:"sender_id"`
	Body      string    `gorm:"column:body;type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:ix_order_messages_order_created,priority:2" json:"created_at"`
}

func (m *OrderMessage) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
