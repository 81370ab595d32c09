package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending     OrderStatus = "pending"
	OrderUnfulfilled OrderStatus = "unfulfilled"
	OrderFulfilled   OrderStatus = "fulfilled"
	OrderIncomplete  OrderStatus = "incomplete"
)

// TaxRate is applied to the order subtotal at checkout.
var TaxRate = decimal.RequireFromString("0.07")

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderUnfulfilled, OrderFulfilled, OrderIncomplete:
		return true
	}
	return false
}

// ReleasesStock reports whether moving into s gives reserved stock back.
func (s OrderStatus) ReleasesStock() bool {
	return s == OrderUnfulfilled || s == OrderIncomplete
}

// HoldsStock reports whether an order in status s still has stock reserved.
func (s OrderStatus) HoldsStock() bool {
	return s == OrderPending || s == OrderUnfulfilled
}

type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

type Order struct {
	BaseModel
	OrderNumber string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"order_number"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User     `json:"user,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Tax         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`

	Status        OrderStatus `gorm:"type:varchar(20);not null;index;default:'pending'" json:"status"`
	StockReleased bool        `gorm:"not null;default:false" json:"stock_released"`

	ShippingAddress datatypes.JSONType[ShippingAddress] `json:"shipping_address"`
	PaymentMethod   string                              `gorm:"type:varchar(30)" json:"payment_method"`
	Notes           string                              `gorm:"type:text" json:"notes,omitempty"`
}

// OrderItem snapshots the product at checkout time.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key;" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product        `json:"product,omitempty"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Image     string          `gorm:"type:text" json:"image,omitempty"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
	Position  int             `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time       `json:"created_at"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ApplyTotals recomputes line totals, subtotal, tax and total from the items.
func (o *Order) ApplyTotals() {
	subtotal := decimal.Zero
	for i := range o.Items {
		line := o.Items[i].Price.Mul(decimal.NewFromInt(int64(o.Items[i].Quantity)))
		o.Items[i].LineTotal = line
		subtotal = subtotal.Add(line)
	}
	o.Subtotal = subtotal
	o.Tax = subtotal.Mul(TaxRate).Round(2)
	o.TotalAmount = o.Subtotal.Add(o.Tax)
}

// FormatOrderNumber renders ORD + yyMMdd + a zero-padded daily sequence.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("ORD%s%03d", day.Format("060102"), seq)
}

// OrderSequence is the per-day counter backing order numbers.
type OrderSequence struct {
	Day       string `gorm:"type:varchar(6);primaryKey"`
	Value     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
