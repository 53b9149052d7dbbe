package consumerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alovak/purseflow/consumer/models"
	"github.com/shopspring/decimal"
)

// Client talks to the consumer HTTP API.
type Client struct {
	Base string
	HTTP *http.Client
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

// statusErrors maps API statuses back to the errors the server reported.
var statusErrors = map[int]error{
	http.StatusPaymentRequired: models.ErrInsufficientBalance,
	http.StatusForbidden:       models.ErrCardMutationForbidden,
	http.StatusConflict:        models.ErrCardNumberTaken,
}

func (c *Client) ListConsumers(ctx context.Context) ([]models.Consumer, error) {
	var out []models.Consumer
	if err := c.do(ctx, http.MethodGet, "/consumers/", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list consumers: %w", err)
	}
	return out, nil
}

func (c *Client) CreateConsumer(ctx context.Context, create models.Consumer) (*models.Consumer, error) {
	var out models.Consumer
	if err := c.do(ctx, http.MethodPost, "/consumers/", nil, create, &out); err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	return &out, nil
}

// UpdateConsumer replaces the profile of consumer update.ID. The card must be
// sent back unchanged.
func (c *Client) UpdateConsumer(ctx context.Context, update models.Consumer) (*models.Consumer, error) {
	var out models.Consumer
	if err := c.do(ctx, http.MethodPut, "/consumers/"+url.PathEscape(update.ID), nil, update, &out); err != nil {
		return nil, fmt.Errorf("update consumer: %w", err)
	}
	return &out, nil
}

func (c *Client) SetCardBalance(ctx context.Context, cardNumber int64, value decimal.Decimal) (*models.Consumer, error) {
	q := url.Values{}
	q.Set("cardNumber", strconv.FormatInt(cardNumber, 10))
	q.Set("value", value.String())

	var out models.Consumer
	if err := c.do(ctx, http.MethodPut, "/cards/balance", q, nil, &out); err != nil {
		return nil, fmt.Errorf("set card balance: %w", err)
	}
	return &out, nil
}

func (c *Client) Buy(ctx context.Context, req models.BuyRequest) (*models.Extract, error) {
	q := url.Values{}
	q.Set("establishmentType", strconv.Itoa(int(req.Category)))
	q.Set("establishmentName", req.MerchantName)
	q.Set("cardNumber", strconv.FormatInt(req.CardNumber, 10))
	q.Set("productDescription", req.ProductDescription)
	q.Set("value", req.Amount.String())

	var out models.Extract
	if err := c.do(ctx, http.MethodPost, "/buy", q, nil, &out); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	return &out, nil
}

// ListExtracts lists purchases of cardNumber, or all of them for 0.
func (c *Client) ListExtracts(ctx context.Context, cardNumber int64) ([]models.Extract, error) {
	q := url.Values{}
	if cardNumber != 0 {
		q.Set("cardNumber", strconv.FormatInt(cardNumber, 10))
	}

	var out []models.Extract
	if err := c.do(ctx, http.MethodGet, "/extracts", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list extracts: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(c.Base + path)
	if err != nil {
		return fmt.Errorf("parse base: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(b))
		if known, ok := statusErrors[resp.StatusCode]; ok {
			return fmt.Errorf("status=%d body=%s: %w", resp.StatusCode, msg, known)
		}
		if resp.StatusCode == http.StatusNotFound && strings.Contains(msg, models.ErrCardNotFound.Error()) {
			return fmt.Errorf("status=%d body=%s: %w", resp.StatusCode, msg, models.ErrCardNotFound)
		}
		if resp.StatusCode == http.StatusNotFound && strings.Contains(msg, models.ErrConsumerNotFound.Error()) {
			return fmt.Errorf("status=%d body=%s: %w", resp.StatusCode, msg, models.ErrConsumerNotFound)
		}
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
