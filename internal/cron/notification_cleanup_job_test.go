package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/internal/notifications"
	"github.com/codinglabe/believe-app/pkg/db"
	"github.com/codinglabe/believe-app/pkg/db/dbtest"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/logger"
)

func TestNotificationCleanupJobDeletesOnlyOldReadRows(t *testing.T) {
	conn := dbtest.Open(t, &models.Notification{})
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-100 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	rows := []*models.Notification{
		{Event: "a", Title: "old read", ReadAt: &old},
		{Event: "b", Title: "recent read", ReadAt: &recent},
		{Event: "c", Title: "old unread"},
	}
	for _, n := range rows {
		n.Message = n.Title
		if err := conn.Create(n).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.Nop(),
		DB:         db.FromGorm(conn),
		Repository: notifications.NewRepository(conn),
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	job := jobIface.(*notificationCleanupJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var remaining []models.Notification
	if err := conn.Order("title").Find(&remaining).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(remaining) != 2 || remaining[0].Title != "old unread" || remaining[1].Title != "recent read" {
		t.Fatalf("unexpected remaining rows %+v", remaining)
	}
}

type failingCleanupRepo struct{}

func (failingCleanupRepo) DeleteReadBefore(context.Context, *gorm.DB, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.Nop(),
		DB:         passthroughTx{},
		Repository: failingCleanupRepo{},
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
