package consumer

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alovak/purseflow/consumer/models"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// Store is the view of the repository handed to an Atomically callback.
// Reads made through it lock what they return until the unit ends.
type Store interface {
	FindConsumer(ctx context.Context, id string) (*models.Consumer, error)
	FindByPurse(ctx context.Context, purse models.PurseType, number int64) (*models.Consumer, error)
	SaveConsumer(ctx context.Context, consumer *models.Consumer) error
	CreateExtract(ctx context.Context, extract *models.Extract) error
}

type purseRef struct {
	ConsumerID string
	Purse      models.PurseType
}

type Repository struct {
	consumers map[string]*models.Consumer
	order     []string
	numbers   map[int64]purseRef
	extracts  []*models.Extract

	mu sync.RWMutex
	db *sql.DB
}

func NewRepository() *Repository {
	return &Repository{
		consumers: make(map[string]*models.Consumer),
		numbers:   make(map[int64]purseRef),
		extracts:  make([]*models.Extract, 0),
	}
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the consumer schema when it does not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

const consumerColumns = `id, name, document_number, birth_date, mobile_phone, residence_phone, phone, email,
    street, street_number, city, country, postal_code,
    food_card_number, food_card_balance, fuel_card_number, fuel_card_balance,
    drugstore_card_number, drugstore_card_balance`

var purseColumns = map[models.PurseType]string{
	models.PurseFood:      "food_card_number",
	models.PurseFuel:      "fuel_card_number",
	models.PurseDrugstore: "drugstore_card_number",
}

func (r *Repository) CreateConsumer(ctx context.Context, consumer *models.Consumer) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, n := range consumer.Card.Numbers() {
			if _, ok := r.numbers[n]; ok {
				return fmt.Errorf("card number %d: %w", n, models.ErrCardNumberTaken)
			}
		}
		for purse, n := range consumer.Card.Numbers() {
			r.numbers[n] = purseRef{ConsumerID: consumer.ID, Purse: purse}
		}
		r.consumers[consumer.ID] = consumer.Clone()
		r.order = append(r.order, consumer.ID)
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	c := consumer
	_, err = tx.ExecContext(ctx, `
        INSERT INTO consumer.consumers(`+consumerColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
    `, c.ID, c.Name, c.DocumentNumber, nullTime(c.BirthDate), c.MobilePhone, c.ResidencePhone, c.Phone, c.Email,
		c.Address.Street, c.Address.Number, c.Address.City, c.Address.Country, c.Address.PostalCode,
		c.Card.Food.Number, c.Card.Food.Balance, c.Card.Fuel.Number, c.Card.Fuel.Balance,
		c.Card.Drugstore.Number, c.Card.Drugstore.Balance)
	if isUniqueViolation(err) {
		return models.ErrCardNumberTaken
	}
	if err != nil {
		return err
	}
	for purse, n := range c.Card.Numbers() {
		_, err = tx.ExecContext(ctx, `INSERT INTO consumer.card_numbers(number, consumer_id, purse) VALUES ($1,$2,$3)`, n, c.ID, string(purse))
		if isUniqueViolation(err) {
			return fmt.Errorf("card number %d: %w", n, models.ErrCardNumberTaken)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListConsumers returns every consumer in creation order.
func (r *Repository) ListConsumers(ctx context.Context) ([]*models.Consumer, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		out := make([]*models.Consumer, 0, len(r.order))
		for _, id := range r.order {
			out = append(out, r.consumers[id].Clone())
		}
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+consumerColumns+` FROM consumer.consumers ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.Consumer, 0)
	for rows.Next() {
		c, err := scanConsumer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ExistsCardNumber reports whether any purse of any consumer uses n.
func (r *Repository) ExistsCardNumber(ctx context.Context, n int64) (bool, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		_, ok := r.numbers[n]
		return ok, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM consumer.card_numbers WHERE number=$1)`, n).Scan(&exists)
	return exists, err
}

// ListExtracts returns extracts newest first; cardNumber 0 lists all of them.
func (r *Repository) ListExtracts(ctx context.Context, cardNumber int64) ([]*models.Extract, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		out := make([]*models.Extract, 0)
		for _, e := range r.extracts {
			if cardNumber == 0 || e.CardNumber == cardNumber {
				cp := *e
				out = append(out, &cp)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].DateBuy.After(out[j].DateBuy) })
		return out, nil
	}
	query := `SELECT id, establishment_name, product_description, date_buy, card_number, amount FROM consumer.extracts`
	args := []any{}
	if cardNumber != 0 {
		query += ` WHERE card_number = $1`
		args = append(args, cardNumber)
	}
	rows, err := r.db.QueryContext(ctx, query+` ORDER BY date_buy DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.Extract, 0)
	for rows.Next() {
		var e models.Extract
		if err := rows.Scan(&e.ID, &e.MerchantName, &e.ProductDescription, &e.DateBuy, &e.CardNumber, &e.Amount); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Atomically runs fn as one unit. Nothing fn writes through the Store is
// visible to others unless fn returns nil.
func (r *Repository) Atomically(ctx context.Context, fn func(Store) error) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		s := &txStore{r: r, staged: make(map[string]*models.Consumer)}
		if err := fn(s); err != nil {
			return err
		}
		s.apply()
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
		return err
	}
	if err := fn(&txStore{r: r, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// Ping returns DB readiness
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

// txStore serves the memory backend (tx == nil, repository lock held by the
// caller) and the postgres backend (tx != nil).
type txStore struct {
	r  *Repository
	tx *sql.Tx

	staged   map[string]*models.Consumer
	extracts []*models.Extract
}

func (s *txStore) lookup(id string) (*models.Consumer, bool) {
	if c, ok := s.staged[id]; ok {
		return c, true
	}
	c, ok := s.r.consumers[id]
	return c, ok
}

func (s *txStore) FindConsumer(ctx context.Context, id string) (*models.Consumer, error) {
	if s.tx == nil {
		c, ok := s.lookup(id)
		if !ok {
			return nil, models.ErrConsumerNotFound
		}
		return c.Clone(), nil
	}
	row := s.tx.QueryRowContext(ctx, `SELECT `+consumerColumns+` FROM consumer.consumers WHERE id=$1 FOR UPDATE`, id)
	c, err := scanConsumer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrConsumerNotFound
	}
	return c, err
}

func (s *txStore) FindByPurse(ctx context.Context, purse models.PurseType, number int64) (*models.Consumer, error) {
	column, ok := purseColumns[purse]
	if !ok {
		return nil, fmt.Errorf("unknown purse type %q", purse)
	}
	if s.tx == nil {
		ref, ok := s.r.numbers[number]
		if !ok || ref.Purse != purse {
			return nil, models.ErrCardNotFound
		}
		c, ok := s.lookup(ref.ConsumerID)
		if !ok {
			return nil, models.ErrCardNotFound
		}
		return c.Clone(), nil
	}
	row := s.tx.QueryRowContext(ctx, `SELECT `+consumerColumns+` FROM consumer.consumers WHERE `+column+`=$1 FOR UPDATE`, number)
	c, err := scanConsumer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCardNotFound
	}
	return c, err
}

// SaveConsumer writes profile fields and balances. Card numbers are never
// written; a record whose numbers differ from the stored ones is rejected.
func (s *txStore) SaveConsumer(ctx context.Context, c *models.Consumer) error {
	if s.tx == nil {
		existing, ok := s.lookup(c.ID)
		if !ok {
			return models.ErrConsumerNotFound
		}
		if !sameNumbers(existing.Card, c.Card) {
			return models.ErrCardMutationForbidden
		}
		s.staged[c.ID] = c.Clone()
		return nil
	}
	res, err := s.tx.ExecContext(ctx, `
        UPDATE consumer.consumers
           SET name=$2, document_number=$3, birth_date=$4, mobile_phone=$5, residence_phone=$6, phone=$7, email=$8,
               street=$9, street_number=$10, city=$11, country=$12, postal_code=$13,
               food_card_balance=$14, fuel_card_balance=$15, drugstore_card_balance=$16,
               updated_at=now()
         WHERE id=$1 AND food_card_number=$17 AND fuel_card_number=$18 AND drugstore_card_number=$19
    `, c.ID, c.Name, c.DocumentNumber, nullTime(c.BirthDate), c.MobilePhone, c.ResidencePhone, c.Phone, c.Email,
		c.Address.Street, c.Address.Number, c.Address.City, c.Address.Country, c.Address.PostalCode,
		c.Card.Food.Balance, c.Card.Fuel.Balance, c.Card.Drugstore.Balance,
		c.Card.Food.Number, c.Card.Fuel.Number, c.Card.Drugstore.Number)
	if err != nil {
		return err
	}
	return checkSaved(res, c.ID)
}

// checkSaved turns an UPDATE that matched no row into ErrCardMutationForbidden:
// the WHERE clause pins the stored card numbers.
func checkSaved(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving consumer %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("saving consumer %s: %w", id, models.ErrCardMutationForbidden)
	}
	return nil
}

func (s *txStore) CreateExtract(ctx context.Context, e *models.Extract) error {
	if s.tx == nil {
		cp := *e
		s.extracts = append(s.extracts, &cp)
		return nil
	}
	_, err := s.tx.ExecContext(ctx, `
        INSERT INTO consumer.extracts(id, establishment_name, product_description, date_buy, card_number, amount)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, e.ID, e.MerchantName, e.ProductDescription, e.DateBuy, e.CardNumber, e.Amount)
	return err
}

func (s *txStore) apply() {
	for id, c := range s.staged {
		s.r.consumers[id] = c
	}
	s.r.extracts = append(s.r.extracts, s.extracts...)
}

func sameNumbers(a, b models.Card) bool {
	return a.Food.Number == b.Food.Number && a.Fuel.Number == b.Fuel.Number && a.Drugstore.Number == b.Drugstore.Number
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsumer(row rowScanner) (*models.Consumer, error) {
	var c models.Consumer
	var birth sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.DocumentNumber, &birth, &c.MobilePhone, &c.ResidencePhone, &c.Phone, &c.Email,
		&c.Address.Street, &c.Address.Number, &c.Address.City, &c.Address.Country, &c.Address.PostalCode,
		&c.Card.Food.Number, &c.Card.Food.Balance, &c.Card.Fuel.Number, &c.Card.Fuel.Balance,
		&c.Card.Drugstore.Number, &c.Card.Drugstore.Balance)
	if err != nil {
		return nil, err
	}
	if birth.Valid {
		t := birth.Time
		c.BirthDate = &t
	}
	return &c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
