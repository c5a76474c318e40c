package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one line of a session cart. LineKey is the identity of the line:
// additions with the same key merge, different keys never do.
type CartLine struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	SessionID  string          `gorm:"not null;size:64;uniqueIndex:idx_cart_lines_session_line_key" json:"-"`
	LineKey    string          `gorm:"not null;size:512;uniqueIndex:idx_cart_lines_session_line_key" json:"line_key"`
	ProductID  string          `gorm:"not null;size:64;index" json:"product_id"`
	VariantID  *string         `gorm:"size:64" json:"variant_id,omitempty"`
	Attributes Attributes      `gorm:"serializer:json;type:text" json:"attributes"`
	Quantity   int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_price"`
	RemoteID   string          `gorm:"size:64" json:"remote_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (CartLine) TableName() string {
	return "cart_lines"
}

// Subtotal is UnitPrice × Quantity
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
