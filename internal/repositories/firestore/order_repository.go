package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/zainahstore/api/internal/domain"
	pfirestore "github.com/zainahstore/api/internal/platform/firestore"
	"github.com/zainahstore/api/internal/repositories"
)

const defaultOrdersCollection = "orders"

// OrderRepository persists reconciled orders keyed by their checkout reference.
type OrderRepository struct {
	provider   *pfirestore.Provider
	collection string
	base       *pfirestore.Collection[domain.Order]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider, collection string) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = defaultOrdersCollection
	}

	encoder := func(ctx context.Context, value domain.Order) (any, error) {
		return encodeOrderDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.Order, error) {
		return decodeOrderSnapshot(snap)
	}

	base := pfirestore.NewCollection[domain.Order](provider, collection, encoder, decoder)
	return &OrderRepository{provider: provider, collection: collection, base: base}, nil
}

// FindByID loads an order by its document identifier.
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
	return doc.Data, nil
}

// FindByReference returns the order persisted for a checkout reference.
func (r *OrderRepository) FindByReference(ctx context.Context, referenceID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return domain.Order{}, errors.New("order repository: reference id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("referenceId", "==", referenceID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.find_by_reference", status.Error(codes.NotFound, "order not found"))
	}
	return docs[0].Data, nil
}

// UpsertByReference atomically inserts or merges the order stored for the
// supplied reference. The merge callback receives the current state read
// inside the transaction, so concurrent confirmations for the same reference
// serialise instead of clobbering each other.
func (r *OrderRepository) UpsertByReference(ctx context.Context, referenceID string, merge repositories.OrderMergeFunc) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return domain.Order{}, errors.New("order repository: reference id is required")
	}
	if merge == nil {
		return domain.Order{}, errors.New("order repository: merge function is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	var result domain.Order
	err = pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		coll := client.Collection(r.collection)
		query := coll.Where("referenceId", "==", referenceID).Limit(1)

		snaps, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}

		var existing *domain.Order
		var docRef *firestore.DocumentRef
		if len(snaps) > 0 {
			decoded, err := decodeOrderSnapshot(snaps[0])
			if err != nil {
				return err
			}
			existing = &decoded
			docRef = snaps[0].Ref
		}

		merged, err := merge(existing)
		if err != nil {
			return err
		}
		merged.ReferenceID = referenceID

		if docRef == nil {
			id := strings.TrimSpace(merged.ID)
			if id == "" {
				return errors.New("order repository: merged order id is required")
			}
			docRef = coll.Doc(id)
		} else {
			merged.ID = docRef.ID
		}

		result = merged
		return tx.Set(docRef, encodeOrderDocument(merged))
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

// ListByEmail returns the customer's orders, newest first.
func (r *OrderRepository) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("order repository: email is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("email", "==", email).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return collectOrders(docs), nil
}

// ListByStatus returns orders in the supplied lifecycle state, newest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, orderStatus domain.OrderStatus) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	if orderStatus == "" {
		return nil, errors.New("order repository: status is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("status", "==", string(orderStatus)).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return collectOrders(docs), nil
}

// UpdateStatus transitions the order's lifecycle state.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, orderStatus domain.OrderStatus, updatedAt time.Time) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(orderStatus)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	}
	if err := r.base.Update(ctx, orderID, updates, firestore.Exists); err != nil {
		return domain.Order{}, err
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data, nil
}

// Delete removes the order permanently. Missing orders are reported as not found.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	docRef, err := r.base.Doc(ctx, orderID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("orders.delete", err)
	}
	return nil
}

func collectOrders(docs []pfirestore.Document[domain.Order]) []domain.Order {
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data)
	}
	return orders
}

func decodeOrderSnapshot(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, err
	}
	doc.ID = snap.Ref.ID
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = snap.CreateTime
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = snap.UpdateTime
	}
	return decodeOrderDocument(doc), nil
}

func encodeOrderDocument(order domain.Order) orderDocument {
	products := make([]orderProductDocument, 0, len(order.Products))
	for _, product := range order.Products {
		products = append(products, encodeOrderProduct(product))
	}

	return orderDocument{
		ReferenceID:      strings.TrimSpace(order.ReferenceID),
		PaymentSessionID: strings.TrimSpace(order.PaymentSessionID),
		Status:           string(order.Status),
		Products:         products,
		Amount:           order.Amount,
		ShippingFee:      order.ShippingFee,
		CustomerName:     strings.TrimSpace(order.CustomerName),
		Phone:            strings.TrimSpace(order.Phone),
		Email:            strings.ToLower(strings.TrimSpace(order.Email)),
		Country:          strings.TrimSpace(order.Country),
		Wilayat:          strings.TrimSpace(order.Wilayat),
		Description:      strings.TrimSpace(order.Description),
		DepositMode:      order.DepositMode,
		RemainingAmount:  order.RemainingAmount,
		GiftCard:         encodeGiftCard(order.GiftCard),
		PaidAt:           cloneOrderTime(order.PaidAt),
		CreatedAt:        order.CreatedAt.UTC(),
		UpdatedAt:        order.UpdatedAt.UTC(),
	}
}

func decodeOrderDocument(doc orderDocument) domain.Order {
	products := make([]domain.OrderProduct, 0, len(doc.Products))
	for _, product := range doc.Products {
		products = append(products, decodeOrderProduct(product))
	}

	return domain.Order{
		ID:               doc.ID,
		ReferenceID:      doc.ReferenceID,
		PaymentSessionID: doc.PaymentSessionID,
		Status:           domain.OrderStatus(doc.Status),
		Products:         products,
		Amount:           doc.Amount,
		ShippingFee:      doc.ShippingFee,
		CustomerName:     doc.CustomerName,
		Phone:            doc.Phone,
		Email:            doc.Email,
		Country:          doc.Country,
		Wilayat:          doc.Wilayat,
		Description:      doc.Description,
		DepositMode:      doc.DepositMode,
		RemainingAmount:  doc.RemainingAmount,
		GiftCard:         decodeGiftCard(doc.GiftCard),
		PaidAt:           cloneOrderTime(doc.PaidAt),
		CreatedAt:        doc.CreatedAt.UTC(),
		UpdatedAt:        doc.UpdatedAt.UTC(),
	}
}

func encodeOrderProduct(product domain.OrderProduct) orderProductDocument {
	return orderProductDocument{
		ProductID:    strings.TrimSpace(product.ProductID),
		Name:         strings.TrimSpace(product.Name),
		Price:        product.Price,
		Quantity:     product.Quantity,
		Category:     strings.TrimSpace(product.Category),
		Image:        strings.TrimSpace(product.Image),
		Measurements: normalizeMeasurements(product.Measurements),
		GiftCard:     encodeGiftCard(product.GiftCard),
	}
}

func decodeOrderProduct(doc orderProductDocument) domain.OrderProduct {
	return domain.OrderProduct{
		ProductID:    doc.ProductID,
		Name:         doc.Name,
		Price:        doc.Price,
		Quantity:     doc.Quantity,
		Category:     doc.Category,
		Image:        doc.Image,
		Measurements: doc.Measurements,
		GiftCard:     decodeGiftCard(doc.GiftCard),
	}
}

func encodeGiftCard(card *domain.GiftCard) *giftCardDocument {
	card = domain.NormalizeGiftCard(card)
	if card == nil {
		return nil
	}
	return &giftCardDocument{
		From:  card.From,
		To:    card.To,
		Phone: card.Phone,
		Note:  card.Note,
	}
}

func decodeGiftCard(doc *giftCardDocument) *domain.GiftCard {
	if doc == nil {
		return nil
	}
	return domain.NormalizeGiftCard(&domain.GiftCard{
		From:  doc.From,
		To:    doc.To,
		Phone: doc.Phone,
		Note:  doc.Note,
	})
}

// normalizeMeasurements trims measurement keys and values and drops entries
// left empty, so documents never carry blank map keys.
func normalizeMeasurements(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		normalized[key] = value
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func cloneOrderTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	cloned := value.UTC()
	return &cloned
}

type orderDocument struct {
	ID               string                 `firestore:"-"`
	ReferenceID      string                 `firestore:"referenceId"`
	PaymentSessionID string                 `firestore:"paymentSessionId,omitempty"`
	Status           string                 `firestore:"status"`
	Products         []orderProductDocument `firestore:"products"`
	Amount           float64                `firestore:"amount"`
	ShippingFee      float64                `firestore:"shippingFee"`
	CustomerName     string                 `firestore:"customerName"`
	Phone            string                 `firestore:"phone"`
	Email            string                 `firestore:"email"`
	Country          string                 `firestore:"country"`
	Wilayat          string                 `firestore:"wilayat,omitempty"`
	Description      string                 `firestore:"description,omitempty"`
	DepositMode      bool                   `firestore:"depositMode"`
	RemainingAmount  float64                `firestore:"remainingAmount"`
	GiftCard         *giftCardDocument      `firestore:"giftCard,omitempty"`
	PaidAt           *time.Time             `firestore:"paidAt,omitempty"`
	CreatedAt        time.Time              `firestore:"createdAt"`
	UpdatedAt        time.Time              `firestore:"updatedAt"`
}

type orderProductDocument struct {
	ProductID    string            `firestore:"productId"`
	Name         string            `firestore:"name"`
	Price        float64           `firestore:"price"`
	Quantity     int               `firestore:"quantity"`
	Category     string            `firestore:"category,omitempty"`
	Image        string            `firestore:"image,omitempty"`
	Measurements map[string]string `firestore:"measurements,omitempty"`
	GiftCard     *giftCardDocument `firestore:"giftCard,omitempty"`
}

type giftCardDocument struct {
	From  string `firestore:"from"`
	To    string `firestore:"to"`
	Phone string `firestore:"phone"`
	Note  string `firestore:"note"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
