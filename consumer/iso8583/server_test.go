package iso8583_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/alovak/purseflow/consumer"
	purseiso "github.com/alovak/purseflow/consumer/iso8583"
	"github.com/alovak/purseflow/consumer/models"
	"github.com/moov-io/iso8583"
	connection "github.com/moov-io/iso8583-connection"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestServer_Authorization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := consumer.NewService(consumer.NewRepository(), consumer.DefaultConfig())

	created, err := svc.CreateConsumer(context.Background(), models.Consumer{
		Profile: models.Profile{Name: "Jane"},
		Card: models.Card{
			Food:      models.Purse{Number: 111, Balance: decimal.NewFromInt(50)},
			Fuel:      models.Purse{Number: 222, Balance: decimal.NewFromInt(10)},
			Drugstore: models.Purse{Number: 333},
		},
	})
	require.NoError(t, err)

	srv := purseiso.NewServer(logger, "127.0.0.1:0", svc)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Close() })

	conn, err := connection.New(srv.Addr, purseiso.Spec(), purseiso.ReadMessageLength, purseiso.WriteMessageLength)
	require.NoError(t, err)
	require.NoError(t, conn.Connect())
	t.Cleanup(func() { conn.Close() })

	send := func(stan int, pan, mcc string, amount int) *iso8583.Message {
		t.Helper()
		msg := iso8583.NewMessage(purseiso.Spec())
		msg.MTI("0100")
		require.NoError(t, msg.Field(2, pan))
		require.NoError(t, msg.Field(4, fmt.Sprintf("%d", amount)))
		require.NoError(t, msg.Field(11, fmt.Sprintf("%06d", stan)))
		require.NoError(t, msg.Field(18, mcc))
		require.NoError(t, msg.Field(43, "Market"))

		resp, err := conn.Send(msg)
		require.NoError(t, err)
		mti, err := resp.GetMTI()
		require.NoError(t, err)
		require.Equal(t, "0110", mti)
		return resp
	}
	responseCode := func(resp *iso8583.Message) string {
		code, err := resp.GetString(39)
		require.NoError(t, err)
		return code
	}

	t.Run("approved grocery purchase debits food purse", func(t *testing.T) {
		resp := send(1, "111", "5411", 2000)
		require.Equal(t, purseiso.ResponseApproved, responseCode(resp))

		authCode, err := resp.GetString(38)
		require.NoError(t, err)
		require.Len(t, authCode, 6)

		consumers, err := svc.ListAllConsumers(context.Background())
		require.NoError(t, err)
		require.Len(t, consumers, 1)
		require.Equal(t, created.ID, consumers[0].ID)
		require.True(t, decimal.NewFromInt(30).Equal(consumers[0].Card.Food.Balance))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		resp := send(2, "222", "5541", 5000)
		require.Equal(t, purseiso.ResponseInsufficientFunds, responseCode(resp))
	})

	t.Run("card of another purse type is invalid", func(t *testing.T) {
		resp := send(3, "111", "5912", 100)
		require.Equal(t, purseiso.ResponseInvalidCard, responseCode(resp))
	})

	t.Run("unknown merchant type is not permitted", func(t *testing.T) {
		resp := send(4, "111", "7995", 100)
		require.Equal(t, purseiso.ResponseNotPermitted, responseCode(resp))
	})
}

func TestCategoryForMCC(t *testing.T) {
	cases := []struct {
		mcc  string
		want models.Category
		ok   bool
	}{
		{"5411", models.CategoryFood, true},
		{"5812", models.CategoryFood, true},
		{"5912", models.CategoryDrugstore, true},
		{"5541", models.CategoryFuel, true},
		{"7995", 0, false},
	}
	for _, c := range cases {
		got, ok := purseiso.CategoryForMCC(c.mcc)
		require.Equal(t, c.ok, ok, c.mcc)
		require.Equal(t, c.want, got, c.mcc)
	}
}

func TestResponseCode(t *testing.T) {
	require.Equal(t, purseiso.ResponseApproved, purseiso.ResponseCode(nil))
	require.Equal(t, purseiso.ResponseInvalidCard, purseiso.ResponseCode(fmt.Errorf("x: %w", models.ErrCardNotFound)))
	require.Equal(t, purseiso.ResponseInsufficientFunds, purseiso.ResponseCode(models.ErrInsufficientBalance))
	require.Equal(t, purseiso.ResponseNotPermitted, purseiso.ResponseCode(models.ErrUnknownCategory))
	require.Equal(t, purseiso.ResponseSystemError, purseiso.ResponseCode(errors.New("db down")))
}

func TestAuthorizationCode(t *testing.T) {
	require.Equal(t, "1B4E28", purseiso.AuthorizationCode("1b4e28ba-2fa1-11d2-883f-0016d3cca427"))
	require.Equal(t, "AB0000", purseiso.AuthorizationCode("ab"))
}
