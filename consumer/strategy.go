package consumer

import (
	"context"
	"fmt"

	"github.com/alovak/purseflow/consumer/models"
	"github.com/shopspring/decimal"
)

// Strategy debits the purse a merchant category is allowed to spend from.
type Strategy interface {
	Purse() models.PurseType
	// Debit takes amount from the purse numbered cardNumber and returns the
	// amount actually debited.
	Debit(ctx context.Context, store Store, cardNumber int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// purseStrategy debits only the purse of its own type; a number that belongs
// to another purse type is reported as ErrCardNotFound.
type purseStrategy struct {
	purse models.PurseType
}

var (
	FoodStrategy      Strategy = purseStrategy{purse: models.PurseFood}
	DrugstoreStrategy Strategy = purseStrategy{purse: models.PurseDrugstore}
	FuelStrategy      Strategy = purseStrategy{purse: models.PurseFuel}
)

var strategies = map[models.Category]Strategy{
	models.CategoryFood:      FoodStrategy,
	models.CategoryDrugstore: DrugstoreStrategy,
	models.CategoryFuel:      FuelStrategy,
}

// ResolveStrategy returns the strategy registered for an establishment
// category code.
func ResolveStrategy(category models.Category) (Strategy, error) {
	s, ok := strategies[category]
	if !ok {
		return nil, fmt.Errorf("category %d: %w", int(category), models.ErrUnknownCategory)
	}
	return s, nil
}

func (s purseStrategy) Purse() models.PurseType { return s.purse }

func (s purseStrategy) Debit(ctx context.Context, store Store, cardNumber int64, amount decimal.Decimal) (decimal.Decimal, error) {
	consumer, err := store.FindByPurse(ctx, s.purse, cardNumber)
	if err != nil {
		return decimal.Zero, err
	}

	purse := consumer.Card.Purse(s.purse)
	if purse.Balance.LessThan(amount) {
		return decimal.Zero, models.ErrInsufficientBalance
	}
	purse.Balance = purse.Balance.Sub(amount)

	if err := store.SaveConsumer(ctx, consumer); err != nil {
		return decimal.Zero, fmt.Errorf("saving consumer: %w", err)
	}
	return amount, nil
}

func (s purseStrategy) String() string {
	return string(s.purse) + " strategy"
}
