package domain

import (
	"strings"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusContacted  OrderStatus = "contacted"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// DeliveryStatus is the sub-state of a delivery assignment.
type DeliveryStatus string

const (
	DeliveryAssigned       DeliveryStatus = "assigned"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
	DeliveryFailed         DeliveryStatus = "failed"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// OrderSource tells whether an order came from a cart or a direct buy-now.
type OrderSource string

const (
	SourceCart   OrderSource = "cart"
	SourceBuyNow OrderSource = "buy_now"
)

// TrackingCodeLength is the suffix length encoded in delivery QR codes.
const TrackingCodeLength = 12

// Contact holds inline customer fields captured at order time.
type Contact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	City    string `json:"city,omitempty"`
	Address string `json:"address,omitempty"`
}

// PhoneDigits keeps only the ASCII digits of a phone number.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CardDetails are captured for card orders but never charged. Only the last
// four digits of the number are kept.
type CardDetails struct {
	Holder string `json:"holder"`
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
}

// DeliveryAssignment relates an order or request to a delivery agent.
type DeliveryAssignment struct {
	AgentID    string         `json:"agentId"`
	Status     DeliveryStatus `json:"status"`
	Notes      string         `json:"notes,omitempty"`
	AssignedAt time.Time      `json:"assignedAt"`
}

// OrderLine carries the price captured when the order was placed.
type OrderLine struct {
	ProductID       string `json:"productId"`
	SKU             string `json:"sku"`
	Name            string `json:"name"`
	Quantity        int    `json:"quantity"`
	ListPriceCents  int64  `json:"listPriceCents"`
	DiscountPercent int    `json:"discountPercent"`
	UnitPriceCents  int64  `json:"unitPriceCents"`
	LineTotalCents  int64  `json:"lineTotalCents"`
}

type Order struct {
	ID                 string              `json:"id"`
	ProjectID          string              `json:"-"`
	CustomerID         *string             `json:"customerId,omitempty"`
	Contact            Contact             `json:"contact"`
	Notes              string              `json:"notes,omitempty"`
	Lines              []OrderLine         `json:"lines"`
	Currency           string              `json:"currency"`
	TotalCents         int64               `json:"totalCents"`
	PaymentMethod      PaymentMethod       `json:"paymentMethod"`
	PaymentStatus      string              `json:"paymentStatus"`
	Card               *CardDetails        `json:"card,omitempty"`
	Source             OrderSource         `json:"source"`
	Status             OrderStatus         `json:"status"`
	Delivery           *DeliveryAssignment `json:"delivery,omitempty"`
	ContactConsent     bool                `json:"contactConsent"`
	IdempotencyKey     string              `json:"-"`
	// IdempotencyScope names the caller the key belongs to; keys only collide
	// within one scope.
	IdempotencyScope   string              `json:"-"`
	// RequestFingerprint hashes the checkout request that created the order.
	RequestFingerprint string              `json:"-"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// TrackingCode is the identifier suffix printed into delivery QR codes.
func (o Order) TrackingCode() string {
	return TrackingCode(o.ID)
}

// AssignedTo reports whether agentID holds the delivery assignment.
func (o Order) AssignedTo(agentID string) bool {
	return agentID != "" && o.Delivery != nil && o.Delivery.AgentID == agentID
}

// OwnedBy reports whether the order belongs to customerID.
func (o Order) OwnedBy(customerID string) bool {
	return customerID != "" && o.CustomerID != nil && *o.CustomerID == customerID
}

// TrackingCode returns the last TrackingCodeLength characters of id.
func TrackingCode(id string) string {
	if len(id) <= TrackingCodeLength {
		return id
	}
	return id[len(id)-TrackingCodeLength:]
}

// OrderFilter narrows operator listings.
type OrderFilter struct {
	Status     OrderStatus
	CustomerID string
	AgentID    string
	Limit      int
	Offset     int
}
