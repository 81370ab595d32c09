package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Product struct {
	BaseModel
	SKU         string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Stock       int             `gorm:"not null;default:0" json:"stock" validate:"gte=0"`
	Unit        string          `gorm:"type:varchar(20)" json:"unit"`

	// HasStock is derived from Stock whenever the row is loaded or written.
	HasStock bool `gorm:"-" json:"has_stock"`

	CategoryID *uuid.UUID                  `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category   *Category                   `json:"category,omitempty" validate:"-"`
	Images     datatypes.JSONSlice[string] `json:"images"`
}

func (p *Product) AfterFind(tx *gorm.DB) error {
	p.syncHasStock()
	return nil
}

func (p *Product) AfterSave(tx *gorm.DB) error {
	p.syncHasStock()
	return nil
}

func (p *Product) syncHasStock() {
	p.HasStock = p.Stock > 0
}

// SetStock changes stock and keeps HasStock consistent on the in-memory value.
func (p *Product) SetStock(stock int) {
	p.Stock = stock
	p.syncHasStock()
}

// PrimaryImage returns the first image URL, if any.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
