package consumer

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/alovak/purseflow/consumer/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

// API is a HTTP API for the consumer service
type API struct {
	service *Service
	logger  *slog.Logger
}

func NewAPI(service *Service, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		service: service,
		logger:  logger,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/consumers", func(r chi.Router) {
		r.Get("/", a.listConsumers)
		r.Post("/", a.createConsumer)
		r.Put("/{consumerID}", a.updateConsumer)
	})
	r.Put("/cards/balance", a.setCardBalance)
	r.Post("/buy", a.buy)
	r.Get("/extracts", a.listExtracts)
}

func (a *API) listConsumers(w http.ResponseWriter, r *http.Request) {
	consumers, err := a.service.ListAllConsumers(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, consumers)
}

func (a *API) createConsumer(w http.ResponseWriter, r *http.Request) {
	create := models.Consumer{}
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	consumer, err := a.service.CreateConsumer(r.Context(), create)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, consumer)
}

func (a *API) updateConsumer(w http.ResponseWriter, r *http.Request) {
	update := models.Consumer{}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	update.ID = chi.URLParam(r, "consumerID")

	consumer, err := a.service.UpdateConsumer(r.Context(), update)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, consumer)
}

// setCardBalance credits the query value to the purse owning cardNumber.
// Query: ?cardNumber=111&value=15.00
func (a *API) setCardBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cardNumber, err := strconv.ParseInt(q.Get("cardNumber"), 10, 64)
	if err != nil {
		http.Error(w, "cardNumber must be an integer", http.StatusBadRequest)
		return
	}
	value, err := decimal.NewFromString(q.Get("value"))
	if err != nil {
		http.Error(w, "value must be a number", http.StatusBadRequest)
		return
	}

	consumer, err := a.service.SetCardBalance(r.Context(), cardNumber, value)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, consumer)
}

// buy authorizes a purchase from query parameters establishmentType,
// establishmentName, cardNumber, productDescription and value.
func (a *API) buy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category, err := strconv.Atoi(q.Get("establishmentType"))
	if err != nil {
		http.Error(w, "establishmentType must be an integer", http.StatusBadRequest)
		return
	}
	cardNumber, err := strconv.ParseInt(q.Get("cardNumber"), 10, 64)
	if err != nil {
		http.Error(w, "cardNumber must be an integer", http.StatusBadRequest)
		return
	}
	value, err := decimal.NewFromString(q.Get("value"))
	if err != nil {
		http.Error(w, "value must be a number", http.StatusBadRequest)
		return
	}

	extract, err := a.service.Buy(r.Context(), models.BuyRequest{
		Category:           models.Category(category),
		MerchantName:       q.Get("establishmentName"),
		CardNumber:         cardNumber,
		ProductDescription: q.Get("productDescription"),
		Amount:             value,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, extract)
}

func (a *API) listExtracts(w http.ResponseWriter, r *http.Request) {
	var cardNumber int64
	if raw := r.URL.Query().Get("cardNumber"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "cardNumber must be an integer", http.StatusBadRequest)
			return
		}
		cardNumber = n
	}

	extracts, err := a.service.ListExtracts(r.Context(), cardNumber)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, extracts)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", slog.String("uri", r.URL.Path), slog.Any("err", err))
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrConsumerNotFound), errors.Is(err, models.ErrCardNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnknownCategory),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidConsumer):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrCardMutationForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrCardNumberTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
