package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/order/models"
)

// LedgerRepo keeps the ids of provider events that were fully handled.
type LedgerRepo struct {
	DB *gorm.DB
}

func (r *LedgerRepo) Seen(ctx context.Context, eventID string) (bool, error) {
	var ev models.WebhookEvent
	err := r.DB.WithContext(ctx).Where("event_id = ?", eventID).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record stores the event id. Recording an id twice is not an error.
func (r *LedgerRepo) Record(ctx context.Context, eventID, eventType string, at time.Time) error {
	ev := models.WebhookEvent{EventID: eventID, Type: eventType, ProcessedAt: at}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ev).Error
}
