package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurseType identifies one of the three balances held by a Card.
type PurseType string

const (
	PurseFood      PurseType = "food"
	PurseFuel      PurseType = "fuel"
	PurseDrugstore PurseType = "drugstore"
)

// PurseTypes lists every purse a card carries.
var PurseTypes = []PurseType{PurseFood, PurseFuel, PurseDrugstore}

type Purse struct {
	Number  int64           `json:"number"`
	Balance decimal.Decimal `json:"balance"`
}

func (p Purse) Equal(o Purse) bool {
	return p.Number == o.Number && p.Balance.Equal(o.Balance)
}

// Card holds the three independent purses of a consumer. It is created and
// destroyed together with its Consumer.
type Card struct {
	Food      Purse `json:"food"`
	Fuel      Purse `json:"fuel"`
	Drugstore Purse `json:"drugstore"`
}

// Purse returns the slot for t, or nil for an unknown type.
func (c *Card) Purse(t PurseType) *Purse {
	switch t {
	case PurseFood:
		return &c.Food
	case PurseFuel:
		return &c.Fuel
	case PurseDrugstore:
		return &c.Drugstore
	}
	return nil
}

// Numbers returns the card number of every purse keyed by purse type.
func (c Card) Numbers() map[PurseType]int64 {
	return map[PurseType]int64{
		PurseFood:      c.Food.Number,
		PurseFuel:      c.Fuel.Number,
		PurseDrugstore: c.Drugstore.Number,
	}
}

// Equal compares numbers and balances of all three purses.
func (c Card) Equal(o Card) bool {
	return c.Food.Equal(o.Food) && c.Fuel.Equal(o.Fuel) && c.Drugstore.Equal(o.Drugstore)
}

type Address struct {
	Street     string `json:"street,omitempty"`
	Number     int    `json:"number,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// Profile is the mutable part of a consumer record.
type Profile struct {
	Name           string     `json:"name"`
	DocumentNumber string     `json:"document_number,omitempty"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	MobilePhone    string     `json:"mobile_phone,omitempty"`
	ResidencePhone string     `json:"residence_phone,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Email          string     `json:"email,omitempty"`
	Address        Address    `json:"address"`
}

type Consumer struct {
	ID string `json:"id"`
	Profile
	Card Card `json:"card"`
}

// Clone returns a deep copy so stored records cannot be altered through
// returned values.
func (c *Consumer) Clone() *Consumer {
	cp := *c
	if c.BirthDate != nil {
		bd := *c.BirthDate
		cp.BirthDate = &bd
	}
	return &cp
}
