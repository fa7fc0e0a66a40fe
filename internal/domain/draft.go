package domain

import "time"

// Draft is a saved, un-submitted order template. Drafts never transition
// state; promoting one simply feeds its request into CreateOrder.
type Draft struct {
	ID        string             `json:"id"`
	Name      string             `json:"name,omitempty"`
	Request   CreateOrderRequest `json:"request"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
