package iso8583

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alovak/purseflow/consumer/models"
	"github.com/alovak/purseflow/internal/cardgen"
	"github.com/moov-io/iso8583"
	connection "github.com/moov-io/iso8583-connection"
	"github.com/moov-io/iso8583-connection/server"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

const (
	ResponseApproved          = "00"
	ResponseInvalidCard       = "14"
	ResponseInsufficientFunds = "51"
	ResponseNotPermitted      = "57"
	ResponseSystemError       = "96"

	productDescription = "card present purchase"
)

// Purchaser authorizes a purchase against a purse.
type Purchaser interface {
	Buy(ctx context.Context, req models.BuyRequest) (*models.Extract, error)
}

// Server accepts 0100 authorization requests and answers with 0110.
type Server struct {
	Addr string

	logger    *slog.Logger
	purchaser Purchaser
	server    *server.Server
}

func NewServer(logger *slog.Logger, addr string, purchaser Purchaser) *Server {
	return &Server{
		Addr:      addr,
		logger:    logger.With(slog.String("component", "iso8583")),
		purchaser: purchaser,
	}
}

func (s *Server) Start() error {
	s.server = server.New(spec, ReadMessageLength, WriteMessageLength,
		connection.InboundMessageHandler(s.handleRequest),
	)

	if err := s.server.Start(s.Addr); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	s.Addr = s.server.Addr
	s.logger.Info("iso8583 server started", slog.String("addr", s.Addr))

	return nil
}

func (s *Server) Close() error {
	if s.server != nil {
		s.server.Close()
	}
	return nil
}

func (s *Server) handleRequest(c *connection.Connection, message *iso8583.Message) {
	mti, err := message.GetMTI()
	if err != nil {
		s.logger.Error("getting MTI", slog.Any("err", err))
		return
	}
	if mti != "0100" {
		s.logger.Info("unsupported message", slog.String("mti", mti))
		return
	}

	response, err := s.authorize(message)
	if err != nil {
		s.logger.Error("building authorization response", slog.Any("err", err))
		return
	}

	if err := c.Reply(response); err != nil {
		s.logger.Error("replying to authorization request", slog.Any("err", err))
	}
}

func (s *Server) authorize(request *iso8583.Message) (*iso8583.Message, error) {
	response := iso8583.NewMessage(spec)
	response.MTI("0110")
	for _, id := range []int{2, 4, 11} {
		if v, err := request.GetString(id); err == nil && v != "" {
			if err := response.Field(id, v); err != nil {
				return nil, fmt.Errorf("copying field %d: %w", id, err)
			}
		}
	}

	code, authCode := s.decide(request)
	if err := response.Field(39, code); err != nil {
		return nil, fmt.Errorf("setting response code: %w", err)
	}
	if authCode != "" {
		if err := response.Field(38, authCode); err != nil {
			return nil, fmt.Errorf("setting authorization code: %w", err)
		}
	}

	return response, nil
}

// decide runs the purchase and returns the response code and, when
// approved, the authorization code.
func (s *Server) decide(request *iso8583.Message) (string, string) {
	req, err := buyRequest(request)
	if err != nil {
		s.logger.Info("authorization declined", slog.Any("err", err))
		return ResponseCode(err), ""
	}

	logger := s.logger.With(
		slog.String("card", cardgen.MaskNumber(req.CardNumber)),
		slog.String("category", req.Category.String()),
		slog.String("amount", req.Amount.String()),
	)

	extract, err := s.purchaser.Buy(context.Background(), req)
	if err != nil {
		code := ResponseCode(err)
		if code == ResponseSystemError {
			logger.Error("authorization failed", slog.Any("err", err))
		} else {
			logger.Info("authorization declined", slog.String("response_code", code), slog.Any("err", err))
		}
		return code, ""
	}

	logger.Info("authorization approved", slog.String("extract_id", extract.ID))
	return ResponseApproved, AuthorizationCode(extract.ID)
}

func buyRequest(message *iso8583.Message) (models.BuyRequest, error) {
	pan, err := message.GetString(2)
	if err != nil {
		return models.BuyRequest{}, fmt.Errorf("reading card number: %w", err)
	}
	cardNumber, err := strconv.ParseInt(pan, 10, 64)
	if err != nil {
		return models.BuyRequest{}, fmt.Errorf("card number %q: %w", pan, models.ErrCardNotFound)
	}

	rawAmount, err := message.GetString(4)
	if err != nil {
		return models.BuyRequest{}, fmt.Errorf("reading amount: %w", err)
	}
	minor, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		return models.BuyRequest{}, fmt.Errorf("amount %q: %w", rawAmount, models.ErrInvalidAmount)
	}

	mcc, err := message.GetString(18)
	if err != nil {
		return models.BuyRequest{}, fmt.Errorf("reading merchant type: %w", err)
	}
	category, ok := CategoryForMCC(mcc)
	if !ok {
		return models.BuyRequest{}, fmt.Errorf("merchant type %q: %w", mcc, models.ErrUnknownCategory)
	}

	merchant, err := message.GetString(43)
	if err != nil {
		return models.BuyRequest{}, fmt.Errorf("reading merchant name: %w", err)
	}

	return models.BuyRequest{
		Category:           category,
		MerchantName:       strings.TrimSpace(merchant),
		CardNumber:         cardNumber,
		ProductDescription: productDescription,
		Amount:             decimal.New(minor, -2),
	}, nil
}

var mccCategories = map[string]models.Category{
	"5411": models.CategoryFood,
	"5412": models.CategoryFood,
	"5422": models.CategoryFood,
	"5441": models.CategoryFood,
	"5451": models.CategoryFood,
	"5462": models.CategoryFood,
	"5499": models.CategoryFood,
	"5811": models.CategoryFood,
	"5812": models.CategoryFood,
	"5814": models.CategoryFood,
	"5122": models.CategoryDrugstore,
	"5912": models.CategoryDrugstore,
	"5172": models.CategoryFuel,
	"5541": models.CategoryFuel,
	"5542": models.CategoryFuel,
	"5983": models.CategoryFuel,
}

// CategoryForMCC maps an ISO 18245 merchant category code to the
// establishment category it may spend from.
func CategoryForMCC(mcc string) (models.Category, bool) {
	c, ok := mccCategories[mcc]
	return c, ok
}

func ResponseCode(err error) string {
	switch {
	case err == nil:
		return ResponseApproved
	case errors.Is(err, models.ErrCardNotFound):
		return ResponseInvalidCard
	case errors.Is(err, models.ErrInsufficientBalance):
		return ResponseInsufficientFunds
	case errors.Is(err, models.ErrUnknownCategory), errors.Is(err, models.ErrInvalidAmount):
		return ResponseNotPermitted
	default:
		return ResponseSystemError
	}
}

// AuthorizationCode derives the 6 character DE38 value from an extract id.
func AuthorizationCode(extractID string) string {
	code := strings.ToUpper(strings.ReplaceAll(extractID, "-", ""))
	if len(code) < 6 {
		code += strings.Repeat("0", 6-len(code))
	}
	return code[:6]
}
