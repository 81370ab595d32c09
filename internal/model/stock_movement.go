package model

import "github.com/google/uuid"

type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

const (
	ReasonReservation = "reservation"
	ReasonRevert      = "revert"
	ReasonRestock     = "restock"
)

// StockMovement logs every change to a product's stock.
type StockMovement struct {
	BaseModel
	ProductID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"product_id"`
	Product    *Product     `json:"product,omitempty"`
	OrderID    *uuid.UUID   `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Type       MovementType `gorm:"type:varchar(10);not null" json:"type"`
	Quantity   int          `gorm:"not null" json:"quantity"`
	StockAfter int          `gorm:"not null" json:"stock_after"`
	Reason     string       `gorm:"type:varchar(20);not null" json:"reason"`
}
