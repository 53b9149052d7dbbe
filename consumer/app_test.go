package consumer_test

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/alovak/purseflow/consumer"
	"github.com/alovak/purseflow/consumer/models"
	"github.com/alovak/purseflow/internal/consumerclient"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestApp_MemBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := consumer.DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.ISO8583Addr = "127.0.0.1:0"
	cfg.RepoBackend = "mem"
	cfg.AllowMemBackend = true

	app := consumer.NewApp(logger, cfg)
	require.NoError(t, app.Start())
	t.Cleanup(app.Shutdown)
	require.NotEmpty(t, app.ISO8583ServerAddr)

	base := "http://" + app.Addr
	for _, path := range []string{"/-/live", "/-/ready"} {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	ctx := context.Background()
	cli := consumerclient.New(base, nil)
	_, err := cli.CreateConsumer(ctx, models.Consumer{
		Profile: models.Profile{Name: "Jane"},
		Card:    models.Card{Food: models.Purse{Number: 111, Balance: decimal.NewFromInt(50)}},
	})
	require.NoError(t, err)

	_, err = cli.Buy(ctx, models.BuyRequest{Category: models.CategoryFood, CardNumber: 111, Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)

	consumers, err := cli.ListConsumers(ctx)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(30).Equal(consumers[0].Card.Food.Balance))
}

func TestApp_MemBackendMustBeAllowed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := consumer.DefaultConfig()
	cfg.RepoBackend = "mem"

	app := consumer.NewApp(logger, cfg)
	require.Error(t, app.Start())

	cfg.RepoBackend = "pg"
	require.ErrorContains(t, consumer.NewApp(logger, cfg).Start(), "DB_DSN")
}
