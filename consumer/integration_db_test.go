package consumer_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/alovak/purseflow/consumer"
	"github.com/alovak/purseflow/consumer/models"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// openTestDB skips unless DB_DSN is provided and REPO_BACKEND=pg.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("REPO_BACKEND") != "pg" {
		t.Skip("REPO_BACKEND != pg; skipping DB integration test")
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set; skipping DB integration test")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())
	return db
}

// TestPGRepository_PurchaseFlow runs a purchase, a top-up and the card
// guard against postgres. Generated card numbers keep runs independent.
func TestPGRepository_PurchaseFlow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	repo := consumer.NewPGRepository(db)
	require.NoError(t, repo.Migrate(ctx))
	svc := consumer.NewService(repo, consumer.DefaultConfig())

	jane, err := svc.CreateConsumer(ctx, models.Consumer{
		Profile: models.Profile{Name: "Jane"},
		Card: models.Card{
			Food: models.Purse{Balance: decimal.NewFromInt(50)},
		},
	})
	require.NoError(t, err)
	food := jane.Card.Food.Number

	extract, err := svc.Buy(ctx, models.BuyRequest{
		Category:     models.CategoryFood,
		MerchantName: "Market",
		CardNumber:   food,
		Amount:       decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(20).Equal(extract.Amount))

	_, err = svc.Buy(ctx, models.BuyRequest{Category: models.CategoryFood, CardNumber: food, Amount: decimal.NewFromInt(999)})
	require.ErrorIs(t, err, models.ErrInsufficientBalance)

	_, err = svc.Buy(ctx, models.BuyRequest{Category: models.CategoryFuel, CardNumber: food, Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, models.ErrCardNotFound)

	updated, err := svc.SetCardBalance(ctx, food, decimal.NewFromInt(15))
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(45).Equal(updated.Card.Food.Balance))

	extracts, err := svc.ListExtracts(ctx, food)
	require.NoError(t, err)
	require.Len(t, extracts, 1)
	require.Equal(t, extract.ID, extracts[0].ID)

	all, err := svc.ListExtracts(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, all)

	_, err = svc.UpdateConsumer(ctx, models.Consumer{ID: "not-a-uuid", Profile: models.Profile{Name: "X"}})
	require.ErrorIs(t, err, models.ErrConsumerNotFound)

	update := *updated.Clone()
	update.Card.Fuel.Number++
	_, err = svc.UpdateConsumer(ctx, update)
	require.ErrorIs(t, err, models.ErrCardMutationForbidden)

	update = *updated.Clone()
	update.Email = "jane@example.com"
	_, err = svc.UpdateConsumer(ctx, update)
	require.NoError(t, err)

	_, err = svc.CreateConsumer(ctx, models.Consumer{
		Profile: models.Profile{Name: "John"},
		Card:    models.Card{Drugstore: models.Purse{Number: food}},
	})
	require.ErrorIs(t, err, models.ErrCardNumberTaken)
}
