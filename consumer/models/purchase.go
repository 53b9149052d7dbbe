package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the merchant category code agreed with the transport layer.
// The numbering is an external contract.
type Category int

const (
	CategoryFood      Category = 1
	CategoryDrugstore Category = 2
	CategoryFuel      Category = 3
)

func (c Category) String() string {
	switch c {
	case CategoryFood:
		return "food"
	case CategoryDrugstore:
		return "drugstore"
	case CategoryFuel:
		return "fuel"
	}
	return "unknown"
}

type BuyRequest struct {
	Category           Category
	MerchantName       string
	CardNumber         int64
	ProductDescription string
	Amount             decimal.Decimal
}

// Extract is the immutable record of a successful purchase.
type Extract struct {
	ID                 string          `json:"id"`
	MerchantName       string          `json:"establishment_name"`
	ProductDescription string          `json:"product_description"`
	DateBuy            time.Time       `json:"date_buy"`
	CardNumber         int64           `json:"card_number"`
	Amount             decimal.Decimal `json:"value"`
}
