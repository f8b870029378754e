package domain

// UserSnapshot is the point-in-time view of a user owned by the users service.
type UserSnapshot struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

// ProductSnapshot is the point-in-time view of a product owned by the products
// service. It may be stale by the time a later checkout step runs.
type ProductSnapshot struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Stock     int    `json:"stock"`
	Active    bool   `json:"active"`
}

// PaymentRequest is what the checkout sends to the payment gateway.
type PaymentRequest struct {
	OrderID int64  `json:"orderId"`
	UserID  int64  `json:"userId"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
}

// PaymentReceipt is the gateway's answer. Accepted=false is a business decline.
type PaymentReceipt struct {
	Accepted       bool   `json:"accepted"`
	TransactionRef string `json:"transactionRef,omitempty"`
	AuthCode       string `json:"authCode,omitempty"`
	Reason         string `json:"reason,omitempty"`
}
