package consumer

import (
	"context"
	"testing"

	"github.com/alovak/purseflow/consumer/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestResolveStrategy(t *testing.T) {
	cases := []struct {
		category models.Category
		purse    models.PurseType
	}{
		{models.CategoryFood, models.PurseFood},
		{models.CategoryDrugstore, models.PurseDrugstore},
		{models.CategoryFuel, models.PurseFuel},
	}
	for _, c := range cases {
		s, err := ResolveStrategy(c.category)
		require.NoError(t, err)
		require.Equal(t, c.purse, s.Purse())
	}

	for _, category := range []models.Category{0, 4, -1} {
		_, err := ResolveStrategy(category)
		require.ErrorIs(t, err, models.ErrUnknownCategory)
	}
}

func TestStrategy_Debit(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	require.NoError(t, repo.CreateConsumer(ctx, &models.Consumer{
		ID:      "c1",
		Profile: models.Profile{Name: "Jane"},
		Card: models.Card{
			Food:      models.Purse{Number: 111, Balance: decimal.RequireFromString("10.50")},
			Fuel:      models.Purse{Number: 222, Balance: decimal.NewFromInt(3)},
			Drugstore: models.Purse{Number: 333},
		},
	}))

	var debited decimal.Decimal
	err := repo.Atomically(ctx, func(store Store) error {
		var err error
		debited, err = FoodStrategy.Debit(ctx, store, 111, decimal.RequireFromString("0.50"))
		return err
	})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("0.50").Equal(debited))

	err = repo.Atomically(ctx, func(store Store) error {
		_, err := FuelStrategy.Debit(ctx, store, 222, decimal.RequireFromString("3.01"))
		return err
	})
	require.ErrorIs(t, err, models.ErrInsufficientBalance)

	err = repo.Atomically(ctx, func(store Store) error {
		_, err := DrugstoreStrategy.Debit(ctx, store, 111, decimal.NewFromInt(1))
		return err
	})
	require.ErrorIs(t, err, models.ErrCardNotFound)

	consumers, err := repo.ListConsumers(ctx)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10).Equal(consumers[0].Card.Food.Balance))
	require.True(t, decimal.NewFromInt(3).Equal(consumers[0].Card.Fuel.Balance))
}
