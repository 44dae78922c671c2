package models

import "time"

// OrderStatus values mirror the merchant dashboard lifecycle. New
// orders start at QR Generated; the merchant marks them Completed once
// the customer finishes onboarding through the QR link.
type OrderStatus string

const (
	OrderStatusQRGenerated OrderStatus = "QR Generated"
	OrderStatusProcessed   OrderStatus = "Processed"
	OrderStatusCompleted   OrderStatus = "Completed"
	OrderStatusOnHold      OrderStatus = "On Hold"
	OrderStatusSettled     OrderStatus = "Settled"
	OrderStatusRejected    OrderStatus = "Rejected"
)

// Order is the provisioning artifact record. QRURL is the opaque link
// encoded into the QR code shown to the customer.
type Order struct {
	OrderID     string      `json:"order_id" dynamodbav:"order_id"`
	CustomerID  string      `json:"customer_id" dynamodbav:"customer_id"`
	PhoneNumber string      `json:"phone_number" dynamodbav:"phone_number"`
	Name        string      `json:"name" dynamodbav:"name"`
	Status      OrderStatus `json:"status" dynamodbav:"status"`
	QRURL       string      `json:"qr_url" dynamodbav:"qr_url"`
	CreatedAt   time.Time   `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" dynamodbav:"updated_at"`
}

func (o *Order) GetPK() string {
	return "ORDER#" + o.OrderID
}

func (o *Order) GetSK() string {
	return "METADATA"
}
