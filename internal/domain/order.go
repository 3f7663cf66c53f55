package domain

import (
	"strings"
	"time"
)

const (
	// GulfRegionSelector is the storefront value customers pick when shipping
	// to a GCC country; the concrete country arrives in a companion field.
	GulfRegionSelector = "دول الخليج"
	// CountryUAE receives a reduced gulf shipping rate.
	CountryUAE = "الإمارات"
)

// OrderStatus describes lifecycle states for storefront orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCompleted indicates payment was confirmed by the gateway.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusShipped indicates the order left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the customer received the order.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled indicates the order was abandoned or voided.
	OrderStatusCanceled OrderStatus = "canceled"
)

// ValidOrderStatus reports whether the supplied status is a known lifecycle state.
func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// GiftCard carries the optional gift message attached to a cart line or an order.
type GiftCard struct {
	From  string
	To    string
	Phone string
	Note  string
}

// NormalizeGiftCard trims all card fields and returns nil when every field is
// blank. A card with at least one populated field keeps all four fields so the
// persisted shape stays uniform.
func NormalizeGiftCard(card *GiftCard) *GiftCard {
	if card == nil {
		return nil
	}
	normalized := GiftCard{
		From:  strings.TrimSpace(card.From),
		To:    strings.TrimSpace(card.To),
		Phone: strings.TrimSpace(card.Phone),
		Note:  strings.TrimSpace(card.Note),
	}
	if normalized == (GiftCard{}) {
		return nil
	}
	return &normalized
}

// CartItem is a single storefront cart line submitted at checkout.
// Price is the unit price in OMR.
type CartItem struct {
	ProductID    string
	Name         string
	Price        float64
	Quantity     int
	Category     string
	Image        string
	Measurements map[string]string
	GiftCard     *GiftCard
}

// OrderProduct is the normalised cart line persisted on orders.
type OrderProduct struct {
	ProductID    string
	Name         string
	Price        float64
	Quantity     int
	Category     string
	Image        string
	Measurements map[string]string
	GiftCard     *GiftCard
}

// ToOrderProduct converts a cart line to its persisted form, normalising the
// gift card along the way.
func (i CartItem) ToOrderProduct() OrderProduct {
	return OrderProduct{
		ProductID:    strings.TrimSpace(i.ProductID),
		Name:         strings.TrimSpace(i.Name),
		Price:        i.Price,
		Quantity:     i.Quantity,
		Category:     strings.TrimSpace(i.Category),
		Image:        strings.TrimSpace(i.Image),
		Measurements: i.Measurements,
		GiftCard:     NormalizeGiftCard(i.GiftCard),
	}
}

// NormalizeCountry collapses the regional selector to the concrete gulf
// country the customer chose. Non-regional values pass through trimmed.
func NormalizeCountry(country, gulfCountry string) string {
	country = strings.TrimSpace(country)
	gulfCountry = strings.TrimSpace(gulfCountry)
	if country == GulfRegionSelector && gulfCountry != "" {
		return gulfCountry
	}
	return country
}

// DraftOrder is a checkout attempt staged between session creation and payment
// confirmation. Monetary fields are in OMR except AmountToCharge, which is the
// baisa amount sent to the gateway.
type DraftOrder struct {
	ReferenceID     string
	Products        []OrderProduct
	AmountToCharge  int64
	ShippingFee     float64
	CustomerName    string
	Phone           string
	Email           string
	Country         string
	Wilayat         string
	Description     string
	DepositMode     bool
	RemainingAmount float64
	GiftCard        *GiftCard
	CreatedAt       time.Time
}

// Order is the durable record reconciled from a draft and gateway truth.
// Amount is the paid amount in OMR reported by the gateway.
type Order struct {
	ID               string
	ReferenceID      string
	PaymentSessionID string
	Status           OrderStatus
	Products         []OrderProduct
	Amount           float64
	ShippingFee      float64
	CustomerName     string
	Phone            string
	Email            string
	Country          string
	Wilayat          string
	Description      string
	DepositMode      bool
	RemainingAmount  float64
	GiftCard         *GiftCard
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
