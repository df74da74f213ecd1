package service

import (
	"context"
	"errors"
	"time"

	"fsanano/vending/internal/coin"
	"fsanano/vending/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	SubjectPurchaseCompleted = "vending.purchase.completed"
	SubjectConsistencyFault  = "vending.consistency.fault"
)

// InventoryStore holds product stock.
type InventoryStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error)
	// DecrementStock succeeds only if at least quantity units are
	// available; it also counts one sale. Fails with
	// model.ErrStockConflict otherwise.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (model.Product, error)
	RestoreStock(ctx context.Context, id uuid.UUID, quantity int) (model.Product, error)
}

// BalanceStore holds buyer deposits.
type BalanceStore interface {
	GetUser(ctx context.Context, username string) (model.User, error)
	// Debit succeeds only if the deposit covers amount. Fails with
	// model.ErrBalanceConflict otherwise.
	Debit(ctx context.Context, username string, amount int) (model.User, error)
}

// Transactor runs fn so that every store call made with its ctx commits or
// rolls back together.
type Transactor interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

type PurchaseCompleted struct {
	ProductID uuid.UUID `json:"product_id"`
	Buyer     string    `json:"buyer"`
	Quantity  int       `json:"quantity"`
	Gross     int       `json:"gross"`
	Exchange  int       `json:"exchange"`
	At        time.Time `json:"at"`
}

type ConsistencyFault struct {
	ProductID  uuid.UUID `json:"product_id"`
	Buyer      string    `json:"buyer"`
	Quantity   int       `json:"quantity"`
	Gross      int       `json:"gross"`
	DebitError string    `json:"debit_error"`
	UndoError  string    `json:"undo_error"`
	At         time.Time `json:"at"`
}

type PurchaseService struct {
	inventory InventoryStore
	balances  BalanceStore
	tx        Transactor
	events    EventPublisher
	timeout   time.Duration
	logger    *zap.Logger
}

type PurchaseOption func(*PurchaseService)

// WithTransactor makes both debits run in one store transaction instead of
// the decrement-debit-compensate sequence.
func WithTransactor(tx Transactor) PurchaseOption {
	return func(s *PurchaseService) { s.tx = tx }
}

func WithEvents(p EventPublisher) PurchaseOption {
	return func(s *PurchaseService) { s.events = p }
}

func WithTimeout(d time.Duration) PurchaseOption {
	return func(s *PurchaseService) { s.timeout = d }
}

func NewPurchaseService(inventory InventoryStore, balances BalanceStore, logger *zap.Logger, opts ...PurchaseOption) *PurchaseService {
	s := &PurchaseService{
		inventory: inventory,
		balances:  balances,
		timeout:   3 * time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Purchase sells intent.Quantity units of a product to intent.Buyer and
// returns the change owed. Expected refusals come back as *Rejected; only
// store trouble yields *Failed.
func (s *PurchaseService) Purchase(ctx context.Context, intent PurchaseIntent) PurchaseResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := s.logger.With(
		zap.String("buyer", intent.Buyer),
		zap.Stringer("product_id", intent.ProductID),
		zap.Int("quantity", intent.Quantity),
	)

	if intent.Quantity <= 0 {
		return &Rejected{Reason: ReasonInvalidQuantity}
	}

	product, user, err := s.load(ctx, intent)
	if err != nil {
		return s.classify(ctx, err)
	}
	if !user.Role.CanPurchase() {
		return &Rejected{Reason: ReasonRoleNotAllowed}
	}

	quote, rejected := Validate(product, user, intent.Quantity)
	if rejected != nil {
		log.Info("purchase rejected", zap.Stringer("reason", rejected.Reason))
		return rejected
	}

	breakdown, err := coin.ChangeFor(quote.Exchange)
	if err != nil {
		log.Warn("no exact change", zap.Int("exchange", quote.Exchange), zap.Error(err))
		return &Rejected{Reason: ReasonNoExactChange}
	}

	var stocked model.Product
	var debited model.User
	if s.tx != nil {
		err = s.tx.RunAtomic(ctx, func(ctx context.Context) error {
			var err error
			if stocked, err = s.inventory.DecrementStock(ctx, intent.ProductID, intent.Quantity); err != nil {
				return err
			}
			debited, err = s.balances.Debit(ctx, intent.Buyer, quote.Gross)
			return err
		})
		if err != nil {
			log.Info("purchase rolled back", zap.Error(err))
			return s.classify(ctx, err)
		}
	} else {
		stocked, err = s.inventory.DecrementStock(ctx, intent.ProductID, intent.Quantity)
		if err != nil {
			log.Info("stock decrement refused", zap.Error(err))
			return s.classify(ctx, err)
		}
		debited, err = s.balances.Debit(ctx, intent.Buyer, quote.Gross)
		if err != nil {
			return s.compensate(ctx, log, intent, quote, err)
		}
	}

	log.Info("purchase completed",
		zap.Int("gross", quote.Gross),
		zap.Int("exchange", quote.Exchange),
		zap.Int("amount_available", stocked.AmountAvailable))

	s.publish(ctx, log, SubjectPurchaseCompleted, PurchaseCompleted{
		ProductID: intent.ProductID,
		Buyer:     intent.Buyer,
		Quantity:  intent.Quantity,
		Gross:     quote.Gross,
		Exchange:  quote.Exchange,
		At:        time.Now().UTC(),
	})

	return &Success{
		Gross:     quote.Gross,
		Exchange:  quote.Exchange,
		Breakdown: breakdown,
		Product:   stocked,
		Deposit:   debited.Deposit,
	}
}

// load fetches the product and buyer snapshots concurrently.
func (s *PurchaseService) load(ctx context.Context, intent PurchaseIntent) (model.Product, model.User, error) {
	var product model.Product
	var user model.User

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		product, err = s.inventory.GetProduct(gctx, intent.ProductID)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = s.balances.GetUser(gctx, intent.Buyer)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Product{}, model.User{}, err
	}
	return product, user, nil
}

// compensate puts the stock back after a failed debit. The undo runs on a
// fresh deadline so a timed-out purchase still gets its stock restored.
func (s *PurchaseService) compensate(ctx context.Context, log *zap.Logger, intent PurchaseIntent, quote Quote, debitErr error) PurchaseResult {
	undoCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if _, err := s.inventory.RestoreStock(undoCtx, intent.ProductID, intent.Quantity); err != nil {
		log.Error("consistency fault: stock taken but buyer not charged",
			zap.Int("gross", quote.Gross),
			zap.NamedError("debit_error", debitErr),
			zap.NamedError("undo_error", err))
		s.publish(undoCtx, log, SubjectConsistencyFault, ConsistencyFault{
			ProductID:  intent.ProductID,
			Buyer:      intent.Buyer,
			Quantity:   intent.Quantity,
			Gross:      quote.Gross,
			DebitError: debitErr.Error(),
			UndoError:  err.Error(),
			At:         time.Now().UTC(),
		})
		return &Failed{Cause: CausePartialCommit, Err: errors.Join(debitErr, err)}
	}

	log.Warn("debit failed, stock restored", zap.Error(debitErr))
	return s.classify(ctx, debitErr)
}

func (s *PurchaseService) classify(ctx context.Context, err error) PurchaseResult {
	switch {
	case errors.Is(err, model.ErrProductNotFound):
		return &Rejected{Reason: ReasonProductNotFound}
	case errors.Is(err, model.ErrUserNotFound):
		return &Rejected{Reason: ReasonUserNotFound}
	case errors.Is(err, model.ErrStockConflict), errors.Is(err, model.ErrBalanceConflict):
		return &Rejected{Reason: ReasonConflict}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Failed{Cause: CauseTimeout, Err: err}
	}
	s.logger.Error("store call failed", zap.Error(err))
	return &Failed{Cause: CauseStoreUnavailable, Err: err}
}

func (s *PurchaseService) publish(ctx context.Context, log *zap.Logger, subject string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		log.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
