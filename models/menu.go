package models

import (
	"errors"
	"time"
)

// LocationPrice overrides price and availability at one restaurant location.
type LocationPrice struct {
	Location  string  `json:"location" bson:"location" validate:"required"`
	Price     float64 `json:"price" bson:"price" validate:"gte=0"`
	Available bool    `json:"available" bson:"available"`
}

type MenuItem struct {
	ID            string          `json:"id" bson:"id"`
	Name          string          `json:"name" bson:"name" validate:"required"`
	Category      string          `json:"category" bson:"category" validate:"required"`
	Description   string          `json:"description,omitempty" bson:"description,omitempty"`
	Price         float64         `json:"price" bson:"price" validate:"gt=0"`
	DiscountPrice float64         `json:"discount_price,omitempty" bson:"discount_price,omitempty" validate:"gte=0"`
	Vegan         bool            `json:"vegan" bson:"vegan"`
	Rating        float64         `json:"rating" bson:"rating" validate:"gte=0,lte=5"`
	ReviewCount   int             `json:"reviewCount" bson:"review_count"`
	Image         string          `json:"image,omitempty" bson:"image,omitempty"`
	Thumbnail     string          `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	IsOffer       bool            `json:"isOffer" bson:"is_offer"`
	IsActive      bool            `json:"is_active" bson:"is_active"`
	IsFeatured    bool            `json:"is_featured" bson:"is_featured"`
	IsNew         bool            `json:"is_new" bson:"is_new"`
	Locations     []LocationPrice `json:"locations,omitempty" bson:"locations,omitempty" validate:"dive"`
}

var ErrDiscountAbovePrice = errors.New("discount_price must not exceed price")

// Check enforces the cross-field rules struct tags cannot express.
func (m *MenuItem) Check() error {
	if m.DiscountPrice > m.Price {
		return ErrDiscountAbovePrice
	}
	return nil
}

// EffectivePrice is the price charged at location, or the discounted base
// price when no location override exists. ok is false when the item is not
// available at location.
func (m *MenuItem) EffectivePrice(location string) (price float64, ok bool) {
	if location != "" {
		for _, lp := range m.Locations {
			if lp.Location == location {
				return lp.Price, lp.Available
			}
		}
	}
	if m.DiscountPrice > 0 {
		return m.DiscountPrice, true
	}
	return m.Price, true
}

// Review is one customer's rating of a menu item.
type Review struct {
	ID         string    `json:"id" bson:"id"`
	MenuItemID string    `json:"menuItemId" bson:"menu_item_id"`
	UserID     string    `json:"userId" bson:"user_id"`
	Username   string    `json:"username,omitempty" bson:"username,omitempty"`
	Rating     int       `json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	Comment    string    `json:"comment" bson:"comment" validate:"required,max=2000"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}
