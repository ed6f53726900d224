package domain

import "time"

// RequestKind distinguishes the lightweight order variants.
type RequestKind string

const (
	// KindOrderRequest is a buy-now lead placed without a cart.
	KindOrderRequest RequestKind = "order_request"
	// KindInquiry is a "contact me about this product" request.
	KindInquiry RequestKind = "inquiry"
)

// RequestStatus spans both reduced enums; which values apply depends on the kind.
type RequestStatus string

const (
	RequestNew        RequestStatus = "new"
	RequestContacted  RequestStatus = "contacted"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
	RequestInProgress RequestStatus = "in_progress"
	RequestConverted  RequestStatus = "converted"
	RequestClosed     RequestStatus = "closed"
)

// Request is an OrderRequest or a ProductInquiry.
type Request struct {
	ID             string              `json:"id"`
	ProjectID      string              `json:"-"`
	Kind           RequestKind         `json:"kind"`
	CustomerID     *string             `json:"customerId,omitempty"`
	ProductID      string              `json:"productId"`
	ProductName    string              `json:"productName"`
	Quantity       int                 `json:"quantity"`
	UnitPriceCents int64               `json:"unitPriceCents"`
	TotalCents     int64               `json:"totalCents"`
	Currency       string              `json:"currency"`
	Contact        Contact             `json:"contact"`
	Message        string              `json:"message,omitempty"`
	ContactConsent bool                `json:"contactConsent"`
	Status         RequestStatus       `json:"status"`
	Delivery       *DeliveryAssignment `json:"delivery,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// AssignedTo reports whether agentID holds the delivery assignment.
func (r Request) AssignedTo(agentID string) bool {
	return agentID != "" && r.Delivery != nil && r.Delivery.AgentID == agentID
}

// RequestFilter narrows operator listings.
type RequestFilter struct {
	Kind    RequestKind
	Status  RequestStatus
	AgentID string
	Limit   int
	Offset  int
}
