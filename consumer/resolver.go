package consumer

import (
	"context"
	"errors"

	"github.com/alovak/purseflow/consumer/models"
)

// resolveOrder is the order purses are searched when only a card number is
// known. Card numbers are unique across all purses, so at most one search can
// match and the order only decides which lookup runs first.
var resolveOrder = []models.PurseType{
	models.PurseDrugstore,
	models.PurseFood,
	models.PurseFuel,
}

// PurseMatch is the single purse owning a card number.
type PurseMatch struct {
	Consumer *models.Consumer
	Purse    models.PurseType
}

// ResolvePurse finds the consumer and purse type owning cardNumber.
func ResolvePurse(ctx context.Context, store Store, cardNumber int64) (PurseMatch, error) {
	for _, purse := range resolveOrder {
		consumer, err := store.FindByPurse(ctx, purse, cardNumber)
		if errors.Is(err, models.ErrCardNotFound) {
			continue
		}
		if err != nil {
			return PurseMatch{}, err
		}
		return PurseMatch{Consumer: consumer, Purse: purse}, nil
	}
	return PurseMatch{}, models.ErrCardNotFound
}
