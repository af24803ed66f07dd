package models

import "time"

// CartItem is one line of a user's cart.
type CartItem struct {
	ID         string    `json:"id" bson:"id"`
	UserID     string    `json:"user_id" bson:"user_id"`
	MenuItemID string    `json:"menu_section_id" bson:"menu_item_id"`
	Name       string    `json:"name" bson:"name"`
	Quantity   int       `json:"quantity" bson:"quantity"`
	Price      float64   `json:"price" bson:"price"`
	State      string    `json:"state" bson:"state"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updated_at"`
}

const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderPreparing = "preparing"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

type OrderLine struct {
	MenuItemID string  `json:"menuItemId" bson:"menu_item_id"`
	Name       string  `json:"name" bson:"name"`
	Quantity   int     `json:"quantity" bson:"quantity"`
	Price      float64 `json:"price" bson:"price"`
}

// Order represents a finalized order.
type Order struct {
	ID            string      `json:"id" bson:"id"`
	UserID        string      `json:"userId" bson:"user_id"`
	Items         []OrderLine `json:"items" bson:"items"`
	AddressID     string      `json:"addressId,omitempty" bson:"address_id,omitempty"`
	Total         float64     `json:"total" bson:"total"`
	Status        string      `json:"status" bson:"status"`
	PayPalOrderID string      `json:"paypalOrderId,omitempty" bson:"paypal_order_id,omitempty"`
	CreatedAt     time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time   `json:"updatedAt" bson:"updated_at"`
}
