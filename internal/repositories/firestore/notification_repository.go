package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/cafeluna/api/internal/domain"
	pfirestore "github.com/cafeluna/api/internal/platform/firestore"
	"github.com/cafeluna/api/internal/repositories"
)

const (
	notificationsCollection     = "notifications"
	defaultNotificationPageSize = 50
)

// NotificationRepository stores customer-facing status notifications.
type NotificationRepository struct {
	base *pfirestore.BaseRepository[notificationDocument]
}

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[notificationDocument](provider, notificationsCollection, nil, nil)
	return &NotificationRepository{base: base}, nil
}

// Append stores a new notification record.
func (r *NotificationRepository) Append(ctx context.Context, notification domain.Notification) error {
	if r == nil || r.base == nil {
		return errors.New("notification repository not initialised")
	}
	notificationID := strings.TrimSpace(notification.ID)
	if notificationID == "" {
		return errors.New("notification repository: notification id is required")
	}
	if strings.TrimSpace(notification.UserID) == "" {
		return errors.New("notification repository: user id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, notificationID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeNotificationDocument(notification)); err != nil {
		return pfirestore.WrapError("notifications.append", err)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Notification], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Notification]{}, errors.New("notification repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[domain.Notification]{}, errors.New("notification repository: user id is required")
	}

	limit := pager.PageSize
	if limit <= 0 {
		limit = defaultNotificationPageSize
	}
	fetchLimit := limit + 1

	var startAfter []any
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tokenTime, tokenID, err := decodeTimeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Notification]{}, fmt.Errorf("notification repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", uid).
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeTimeToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Notification, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeNotificationDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Notification]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type notificationDocument struct {
	UserID      string    `firestore:"userId"`
	OrderID     string    `firestore:"orderId"`
	OrderNumber string    `firestore:"orderNumber,omitempty"`
	Message     string    `firestore:"message"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func encodeNotificationDocument(notification domain.Notification) notificationDocument {
	return notificationDocument{
		UserID:      strings.TrimSpace(notification.UserID),
		OrderID:     strings.TrimSpace(notification.OrderID),
		OrderNumber: strings.TrimSpace(notification.OrderNumber),
		Message:     notification.Message,
		Status:      string(notification.Status),
		CreatedAt:   notification.CreatedAt.UTC(),
	}
}

func decodeNotificationDocument(id string, doc notificationDocument) domain.Notification {
	return domain.Notification{
		ID:          strings.TrimSpace(id),
		UserID:      doc.UserID,
		OrderID:     doc.OrderID,
		OrderNumber: doc.OrderNumber,
		Message:     doc.Message,
		Status:      domain.OrderStatus(doc.Status),
		CreatedAt:   doc.CreatedAt,
	}
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)
