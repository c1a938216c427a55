package notifications

import (
	"context"
	"strings"
)

// Service delivers in-app notices to employees. Delivery failures never
// undo the change that triggered them; callers log and continue.
type Service struct {
	store StoreAPI
}

func New(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) Notify(ctx context.Context, tenantID, userID, ntype, title, body string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	return s.store.CreateNotification(ctx, tenantID, userID, ntype, title, body)
}

func (s *Service) List(ctx context.Context, tenantID, userID string, limit, offset int) ([]Notification, int, error) {
	total, err := s.store.CountNotifications(ctx, tenantID, userID)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListNotifications(ctx, tenantID, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	return s.store.MarkRead(ctx, tenantID, userID, notificationID)
}
