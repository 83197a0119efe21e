package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/db/dbtest"
	"github.com/codinglabe/believe-app/pkg/db/models"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
)

func setupNotificationsDB(t *testing.T) *gorm.DB {
	return dbtest.Open(t, &models.Notification{})
}

func TestStoreChannelAndInbox(t *testing.T) {
	ctx := context.Background()
	db := setupNotificationsDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)

	recipient := Recipient{UserID: uuid.New()}
	other := Recipient{UserID: uuid.New()}
	dispatcher := NewDispatcher(nil, nil, NewStoreChannel(repo))

	for i := 0; i < 3; i++ {
		dispatcher.Notify(ctx, Event{Name: "service_order_delivered", Title: "Delivered", Message: "Your order was delivered", Link: "/orders/1"}, recipient)
		time.Sleep(2 * time.Millisecond)
	}
	dispatcher.Notify(ctx, Event{Name: "review_submitted", Title: "Review"}, other)

	count, err := svc.UnreadCount(ctx, recipient.UserID)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	page, err := svc.List(ctx, ListParams{RecipientID: recipient.UserID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	require.NotNil(t, page.Items[0].Link)
	require.True(t, !page.Items[0].CreatedAt.Before(page.Items[1].CreatedAt))

	rest, err := svc.List(ctx, ListParams{RecipientID: recipient.UserID, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.Empty(t, rest.NextCursor)

	require.NoError(t, svc.MarkRead(ctx, recipient.UserID, page.Items[0].ID))
	require.NoError(t, svc.MarkRead(ctx, recipient.UserID, page.Items[0].ID), "marking twice is a no-op")

	count, err = svc.UnreadCount(ctx, recipient.UserID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	err = svc.MarkRead(ctx, other.UserID, page.Items[1].ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "other users cannot read someone else's notification")

	updated, err := svc.MarkAllRead(ctx, recipient.UserID)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated)

	unread, err := svc.List(ctx, ListParams{RecipientID: recipient.UserID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread.Items)

	count, err = svc.UnreadCount(ctx, other.UserID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestServiceValidation(t *testing.T) {
	svc, err := NewService(NewRepository(setupNotificationsDB(t)))
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.List(context.Background(), ListParams{RecipientID: uuid.New(), Cursor: "%%%"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = NewService(nil)
	require.Error(t, err)
}
