package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/cafeluna/api/internal/domain"
	pfirestore "github.com/cafeluna/api/internal/platform/firestore"
	"github.com/cafeluna/api/internal/repositories"
)

const (
	ordersCollection         = "orders"
	orderHistorySubCol       = "history"
	maxStatusFilterValues    = 10
	defaultOrderListPageSize = 50
)

// OrderRepository persists order headers with a status history subcollection.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order document. The ID must be unique.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := tx.Create(docRef, doc); err != nil {
			return pfirestore.WrapError("orders.insert", err)
		}
		return nil
	}
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the persisted order state with the provided snapshot.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	if _, err := r.base.Set(ctx, orderID, encodeOrderDocument(order)); err != nil {
		return err
	}
	return nil
}

// FindByID fetches a single order header. History is loaded separately.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(doc.ID, doc.Data), nil
}

// List returns orders matching the filter ordered by creation time.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = defaultOrderListPageSize
	}
	fetchLimit := limit + 1

	direction := firestore.Desc
	if filter.SortOrder == domain.SortAsc {
		direction = firestore.Asc
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeTimeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statusFilters := normaliseFilterValues(filter.Status)
	userID := strings.TrimSpace(filter.UserID)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			values := statusFilters
			if len(values) > maxStatusFilterValues {
				values = values[:maxStatusFilterValues]
			}
			q = q.Where("status", "in", values)
		}
		if filter.DateRange.From != nil && !filter.DateRange.From.IsZero() {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil && !filter.DateRange.To.IsZero() {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}

		q = q.OrderBy("createdAt", direction).OrderBy(firestore.DocumentID, direction)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeTimeToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// AppendHistory writes one status-change record under the order document.
func (r *OrderRepository) AppendHistory(ctx context.Context, change domain.StatusChange) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(change.OrderID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	changeID := strings.TrimSpace(change.ID)
	if changeID == "" {
		return errors.New("order repository: status change id is required")
	}

	orderRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	ref := orderRef.Collection(orderHistorySubCol).Doc(changeID)
	doc := encodeStatusChangeDocument(change)

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := tx.Create(ref, doc); err != nil {
			return pfirestore.WrapError("orders.history.append", err)
		}
		return nil
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.history.append", err)
	}
	return nil
}

// ListHistory returns the order's status changes oldest first.
func (r *OrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("order repository: order id is required")
	}

	orderRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return nil, err
	}

	iter := orderRef.Collection(orderHistorySubCol).OrderBy("recordedAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var changes []domain.StatusChange
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.history.list", err)
		}
		var doc statusChangeDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("order repository: decode history %s: %w", snapshot.Ref.ID, err)
		}
		changes = append(changes, decodeStatusChangeDocument(snapshot.Ref.ID, orderID, doc))
	}
	return changes, nil
}

type orderDocument struct {
	OrderNumber   string              `firestore:"orderNumber"`
	UserID        string              `firestore:"userId,omitempty"`
	Status        string              `firestore:"status"`
	PaymentMethod string              `firestore:"paymentMethod"`
	Currency      string              `firestore:"currency"`
	Subtotal      int64               `firestore:"subtotal"`
	Discount      int64               `firestore:"discount"`
	Total         int64               `firestore:"total"`
	Items         []orderItemDocument `firestore:"items"`
	Note          string              `firestore:"note,omitempty"`
	CreatedAt     time.Time           `firestore:"createdAt"`
	UpdatedAt     time.Time           `firestore:"updatedAt"`
	DeliveredAt   *time.Time          `firestore:"deliveredAt,omitempty"`
	CancelledAt   *time.Time          `firestore:"cancelledAt,omitempty"`
}

type orderItemDocument struct {
	BeverageID   string   `firestore:"beverageId"`
	BeverageName string   `firestore:"beverageName"`
	AddOnNames   []string `firestore:"addOnNames,omitempty"`
	Quantity     int      `firestore:"quantity"`
	UnitPrice    int64    `firestore:"unitPrice"`
	Total        int64    `firestore:"total"`
	Note         string   `firestore:"note,omitempty"`
}

type statusChangeDocument struct {
	Previous   string    `firestore:"previous,omitempty"`
	New        string    `firestore:"new"`
	Note       string    `firestore:"note,omitempty"`
	RecordedAt time.Time `firestore:"recordedAt"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			BeverageID:   strings.TrimSpace(item.BeverageID),
			BeverageName: strings.TrimSpace(item.BeverageName),
			AddOnNames:   append([]string(nil), item.AddOnNames...),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Total:        item.Total,
			Note:         strings.TrimSpace(item.Note),
		})
	}

	return orderDocument{
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		UserID:        strings.TrimSpace(order.UserID),
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		Currency:      strings.ToUpper(strings.TrimSpace(order.Currency)),
		Subtotal:      order.Totals.Subtotal,
		Discount:      order.Totals.Discount,
		Total:         order.Totals.Total,
		Items:         items,
		Note:          strings.TrimSpace(order.Note),
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
		DeliveredAt:   normaliseTimePointer(order.DeliveredAt),
		CancelledAt:   normaliseTimePointer(order.CancelledAt),
	}
}

func decodeOrderDocument(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			BeverageID:   item.BeverageID,
			BeverageName: item.BeverageName,
			AddOnNames:   append([]string(nil), item.AddOnNames...),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Total:        item.Total,
			Note:         item.Note,
		})
	}

	return domain.Order{
		ID:            strings.TrimSpace(id),
		OrderNumber:   doc.OrderNumber,
		UserID:        doc.UserID,
		Status:        domain.OrderStatus(doc.Status),
		PaymentMethod: domain.PaymentMethod(doc.PaymentMethod),
		Currency:      doc.Currency,
		Totals: domain.OrderTotals{
			Subtotal: doc.Subtotal,
			Discount: doc.Discount,
			Total:    doc.Total,
		},
		Items:       items,
		Note:        doc.Note,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		DeliveredAt: normaliseTimePointer(doc.DeliveredAt),
		CancelledAt: normaliseTimePointer(doc.CancelledAt),
	}
}

func encodeStatusChangeDocument(change domain.StatusChange) statusChangeDocument {
	doc := statusChangeDocument{
		New:        string(change.New),
		Note:       strings.TrimSpace(change.Note),
		RecordedAt: change.RecordedAt.UTC(),
	}
	if change.Previous != nil {
		doc.Previous = string(*change.Previous)
	}
	return doc
}

func decodeStatusChangeDocument(id, orderID string, doc statusChangeDocument) domain.StatusChange {
	change := domain.StatusChange{
		ID:         id,
		OrderID:    orderID,
		New:        domain.OrderStatus(doc.New),
		Note:       doc.Note,
		RecordedAt: doc.RecordedAt,
	}
	if doc.Previous != "" {
		previous := domain.OrderStatus(doc.Previous)
		change.Previous = &previous
	}
	return change
}

func normaliseTimePointer(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	ts := value.UTC()
	return &ts
}

func normaliseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	normalised := make([]string, 0, len(values))
	seen := make(map[string]struct{})
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalised = append(normalised, trimmed)
	}
	return normalised
}

func encodeTimeToken(ts time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", ts.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeTimeToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
