package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/enums"
)

// Review is written once per order and author role.
type Review struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID        `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_reviews_order_role,priority:1" json:"order_id"`
	AuthorRole enums.ReviewRole `gorm:"column:author_role;type:text;not null;uniqueIndex:ux_reviews_order_role,priority:2" json:"author_role"`
	AuthorID   uuid.UUID        `gorm:"column:author_id;type:uuid;not null" json:"author_id"`
	SubjectID  uuid.UUID        `gorm:"column:subject_id;type:uuid;not null;index" json:"subject_id"`
	Rating     int              `gorm:"column:rating;not null" json:"rating"`
	Comment    string           `gorm:"column:comment;type:text;not null;default:''" json:"comment"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
