package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alovak/purseflow/consumer/models"
	"github.com/alovak/purseflow/internal/cardgen"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	repo *Repository
	cfg  *Config
	now  func() time.Time
}

func NewService(repo *Repository, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

func (s *Service) ListAllConsumers(ctx context.Context) ([]*models.Consumer, error) {
	consumers, err := s.repo.ListConsumers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing consumers: %w", err)
	}

	return consumers, nil
}

// CreateConsumer stores a new consumer together with its card. Purse numbers
// left at zero are generated.
func (s *Service) CreateConsumer(ctx context.Context, req models.Consumer) (*models.Consumer, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("name is required: %w", models.ErrInvalidConsumer)
	}

	consumer := req.Clone()
	consumer.ID = uuid.New().String()

	seen := make(map[int64]struct{}, len(models.PurseTypes))
	for _, purse := range models.PurseTypes {
		p := consumer.Card.Purse(purse)
		if p.Number < 0 {
			return nil, fmt.Errorf("%s card number must be positive: %w", purse, models.ErrInvalidConsumer)
		}
		if p.Number == 0 {
			n, err := s.generateCardNumber(ctx, seen)
			if err != nil {
				return nil, fmt.Errorf("generating %s card number: %w", purse, err)
			}
			p.Number = n
		}
		if _, dup := seen[p.Number]; dup {
			return nil, fmt.Errorf("card number %d used by two purses: %w", p.Number, models.ErrCardNumberTaken)
		}
		seen[p.Number] = struct{}{}
	}

	if err := s.repo.CreateConsumer(ctx, consumer); err != nil {
		if errors.Is(err, models.ErrCardNumberTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("creating consumer: %w", err)
	}

	return consumer, nil
}

func (s *Service) generateCardNumber(ctx context.Context, taken map[int64]struct{}) (int64, error) {
	bin := s.cfg.CardBIN
	if err := cardgen.ValidateBIN(bin); err != nil {
		bin = cardgen.DefaultBIN
	}
	length := s.cfg.CardNumberLength
	if length < cardgen.MinLength || length > cardgen.MaxLength {
		length = cardgen.DefaultLength
	}
	exists := func(n int64) (bool, error) {
		if _, ok := taken[n]; ok {
			return true, nil
		}
		return s.repo.ExistsCardNumber(ctx, n)
	}
	return cardgen.GenerateUniqueNumber(bin, length, 10, exists)
}

// UpdateConsumer replaces the profile of an existing consumer. Any difference
// in the card, numbers or balances, is rejected with ErrCardMutationForbidden.
func (s *Service) UpdateConsumer(ctx context.Context, updated models.Consumer) (*models.Consumer, error) {
	// ids are uuids; anything else cannot name a stored consumer
	if _, err := uuid.Parse(updated.ID); err != nil {
		return nil, fmt.Errorf("updating consumer %s: %w", updated.ID, models.ErrConsumerNotFound)
	}

	var result *models.Consumer
	err := s.repo.Atomically(ctx, func(store Store) error {
		existing, err := store.FindConsumer(ctx, updated.ID)
		if err != nil {
			return err
		}
		if !existing.Card.Equal(updated.Card) {
			return models.ErrCardMutationForbidden
		}
		existing.Profile = updated.Profile
		if err := store.SaveConsumer(ctx, existing); err != nil {
			return err
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating consumer %s: %w", updated.ID, err)
	}

	return result, nil
}

// AdjustBalance adds delta to the purse owning cardNumber, whatever its type.
// Unlike Buy there is no lower bound: this path carries top-ups and
// corrections and may leave a balance negative.
func (s *Service) AdjustBalance(ctx context.Context, cardNumber int64, delta decimal.Decimal) (*models.Consumer, error) {
	var result *models.Consumer
	err := s.repo.Atomically(ctx, func(store Store) error {
		match, err := ResolvePurse(ctx, store, cardNumber)
		if err != nil {
			return err
		}
		purse := match.Consumer.Card.Purse(match.Purse)
		purse.Balance = purse.Balance.Add(delta)
		if err := store.SaveConsumer(ctx, match.Consumer); err != nil {
			return err
		}
		result = match.Consumer
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adjusting balance: %w", err)
	}

	return result, nil
}

// SetCardBalance credits value to the card; it is AdjustBalance with
// delta = value.
func (s *Service) SetCardBalance(ctx context.Context, cardNumber int64, value decimal.Decimal) (*models.Consumer, error) {
	return s.AdjustBalance(ctx, cardNumber, value)
}

// Buy debits the purse matching the establishment category and records the
// purchase. Debit and record are written in one unit.
func (s *Service) Buy(ctx context.Context, req models.BuyRequest) (*models.Extract, error) {
	if !req.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	strategy, err := ResolveStrategy(req.Category)
	if err != nil {
		return nil, err
	}

	var extract *models.Extract
	err = s.repo.Atomically(ctx, func(store Store) error {
		debited, err := strategy.Debit(ctx, store, req.CardNumber, req.Amount)
		if err != nil {
			return err
		}
		extract = &models.Extract{
			ID:                 uuid.New().String(),
			MerchantName:       req.MerchantName,
			ProductDescription: req.ProductDescription,
			DateBuy:            s.now().UTC(),
			CardNumber:         req.CardNumber,
			Amount:             debited,
		}
		return store.CreateExtract(ctx, extract)
	})
	if err != nil {
		return nil, fmt.Errorf("buying with %s card: %w", strategy.Purse(), err)
	}

	return extract, nil
}

func (s *Service) ListExtracts(ctx context.Context, cardNumber int64) ([]*models.Extract, error) {
	extracts, err := s.repo.ListExtracts(ctx, cardNumber)
	if err != nil {
		return nil, fmt.Errorf("listing extracts: %w", err)
	}

	return extracts, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
