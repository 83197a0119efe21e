package notifications

import (
	"context"
	"strings"

	"github.com/codinglabe/believe-app/pkg/db/models"
)

// StoreChannel persists in-app notifications.
type StoreChannel struct {
	repo Repository
}

func NewStoreChannel(repo Repository) *StoreChannel {
	return &StoreChannel{repo: repo}
}

func (c *StoreChannel) Name() string { return "store" }

func (c *StoreChannel) Deliver(ctx context.Context, event Event, recipient Recipient) error {
	row := &models.Notification{
		RecipientID: recipient.UserID,
		Event:       event.Name,
		Title:       event.Title,
		Message:     event.Message,
	}
	if link := strings.TrimSpace(event.Link); link != "" {
		row.Link = &link
	}
	return c.repo.Create(ctx, row)
}
