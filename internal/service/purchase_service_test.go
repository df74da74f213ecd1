package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fsanano/vending/internal/coin"
	"fsanano/vending/internal/model"
	"fsanano/vending/internal/repository"
	"fsanano/vending/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
	return nil
}

// flakyStore wraps the memory store and fails selected calls.
type flakyStore struct {
	*repository.MemoryRepository
	debitErr   error
	restoreErr error
	getErr     error
	restores   int
	mu         sync.Mutex
}

func (f *flakyStore) Debit(ctx context.Context, username string, amount int) (model.User, error) {
	if f.debitErr != nil {
		return model.User{}, f.debitErr
	}
	return f.MemoryRepository.Debit(ctx, username, amount)
}

func (f *flakyStore) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) (model.Product, error) {
	f.mu.Lock()
	f.restores++
	f.mu.Unlock()
	if f.restoreErr != nil {
		return model.Product{}, f.restoreErr
	}
	return f.MemoryRepository.RestoreStock(ctx, id, quantity)
}

func (f *flakyStore) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	if f.getErr != nil {
		return model.Product{}, f.getErr
	}
	return f.MemoryRepository.GetProduct(ctx, id)
}

// blockingStore never answers before the deadline.
type blockingStore struct {
	*repository.MemoryRepository
}

func (b *blockingStore) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	<-ctx.Done()
	return model.Product{}, ctx.Err()
}

// passthroughTx runs fn directly and records that it was used.
type passthroughTx struct {
	calls int
}

func (p *passthroughTx) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

func seed(t *testing.T, cost, stock, deposit int) (*repository.MemoryRepository, model.Product) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	_, err := repo.CreateUser(ctx, model.User{Username: "sam", Role: model.RoleSeller})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, model.User{Username: "bob", Role: model.RoleBuyer, Deposit: deposit})
	require.NoError(t, err)
	p, err := repo.CreateProduct(ctx, model.Product{
		Seller: "sam", Name: "Cola", Description: "Cold soda", Cost: cost, AmountAvailable: stock,
	})
	require.NoError(t, err)
	return repo, p
}

func intent(p model.Product, qty int) service.PurchaseIntent {
	return service.PurchaseIntent{Buyer: "bob", ProductID: p.ID, Quantity: qty}
}

func TestPurchase_EndToEnd(t *testing.T) {
	repo, p := seed(t, 5, 10, 100)
	events := &recordingPublisher{}
	svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t), service.WithEvents(events))

	res := svc.Purchase(context.Background(), intent(p, 3))

	ok, isSuccess := res.(*service.Success)
	require.True(t, isSuccess, "got %#v", res)
	assert.Equal(t, 15, ok.Gross)
	assert.Equal(t, 85, ok.Exchange)
	assert.Equal(t, 85, ok.Breakdown.Total())
	assert.Equal(t, coin.Breakdown{{Denomination: 50, Count: 1}, {Denomination: 20, Count: 1}, {Denomination: 10, Count: 1}, {Denomination: 5, Count: 1}}, ok.Breakdown)
	assert.Equal(t, 7, ok.Product.AmountAvailable)
	assert.Equal(t, 1, ok.Product.Sales)
	assert.Equal(t, 85, ok.Deposit)

	stored, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.AmountAvailable)
	u, err := repo.GetUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 85, u.Deposit)

	require.Equal(t, []string{service.SubjectPurchaseCompleted}, events.subjects)
	completed := events.payloads[0].(service.PurchaseCompleted)
	assert.Equal(t, 15, completed.Gross)
	assert.Equal(t, "bob", completed.Buyer)
}

func TestPurchase_ExactDeposit(t *testing.T) {
	repo, p := seed(t, 50, 2, 100)
	svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))

	res := svc.Purchase(context.Background(), intent(p, 2))
	ok, isSuccess := res.(*service.Success)
	require.True(t, isSuccess, "got %#v", res)
	assert.Equal(t, 0, ok.Exchange)
	assert.Empty(t, ok.Breakdown)
	assert.Equal(t, 0, ok.Product.AmountAvailable)
}

func TestPurchase_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unavailable regardless of deposit", func(t *testing.T) {
		repo, p := seed(t, 5, 0, 100)
		svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))
		res := svc.Purchase(ctx, intent(p, 1))
		assert.Equal(t, &service.Rejected{Reason: service.ReasonUnavailable}, res)
	})

	t.Run("insufficient stock reports max", func(t *testing.T) {
		repo, p := seed(t, 5, 2, 100)
		svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))
		res := svc.Purchase(ctx, intent(p, 3))
		assert.Equal(t, &service.Rejected{Reason: service.ReasonInsufficientStock, Available: 2}, res)
	})

	t.Run("insufficient deposit reports deposit and gross", func(t *testing.T) {
		repo, p := seed(t, 20, 5, 50)
		svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))
		res := svc.Purchase(ctx, intent(p, 3))
		assert.Equal(t, &service.Rejected{Reason: service.ReasonInsufficientDeposit, Deposit: 50, Gross: 60}, res)

		u, err := repo.GetUser(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 50, u.Deposit, "a rejection must not charge the buyer")
	})

	t.Run("unknown product", func(t *testing.T) {
		repo, _ := seed(t, 5, 5, 50)
		svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))
		res := svc.Purchase(ctx, service.PurchaseIntent{Buyer: "bob", ProductID: uuid.New(), Quantity: 1})
		assert.Equal(t, &service.Rejected{Reason: service.ReasonProductNotFound}, res)
	})

	t.Run("unknown buyer", func(t *testing.T) {
		repo, p := seed(t, 5, 5, 50)
		svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))
		res := svc.Purchase(ctx, service.PurchaseIntent{Buyer: "zed", ProductID: p.ID, Quantity: 1})
		assert.Equal(t, &service.Rejected{Reason: service.ReasonUserNotFound}, res)
	})

	t.Run("admins cannot buy", func(t *testing.T) {
		repo, p := seed(t, 5, 5, 50)
		_, err := repo.CreateUser(ctx, model.User{Username: "root", Role: model.RoleAdmin, Deposit: 100})
		require.NoError(t, err)
		svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))
		res := svc.Purchase(ctx, service.PurchaseIntent{Buyer: "root", ProductID: p.ID, Quantity: 1})
		assert.Equal(t, &service.Rejected{Reason: service.ReasonRoleNotAllowed}, res)
	})

	t.Run("deposit that cannot be paid out", func(t *testing.T) {
		repo, p := seed(t, 5, 5, 12)
		svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))
		res := svc.Purchase(ctx, intent(p, 1))
		assert.Equal(t, &service.Rejected{Reason: service.ReasonNoExactChange}, res)

		stored, err := repo.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, stored.AmountAvailable)
	})

	t.Run("zero quantity", func(t *testing.T) {
		repo, p := seed(t, 5, 5, 50)
		svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))
		res := svc.Purchase(ctx, intent(p, 0))
		assert.Equal(t, &service.Rejected{Reason: service.ReasonInvalidQuantity}, res)
	})
}

func TestPurchase_ConcurrentStock(t *testing.T) {
	const (
		stock    = 10
		quantity = 3
		callers  = 50
	)
	repo, p := seed(t, 5, stock, 1000)
	svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))

	results := make(chan service.PurchaseResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Purchase(context.Background(), intent(p, quantity))
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for res := range results {
		switch r := res.(type) {
		case *service.Success:
			successes++
		case *service.Rejected:
			assert.Contains(t, []service.Reason{
				service.ReasonInsufficientStock,
				service.ReasonConflict,
			}, r.Reason)
		case *service.Failed:
			t.Errorf("unexpected failure: %v", r)
		}
	}

	assert.Equal(t, stock/quantity, successes)
	stored, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, stock-successes*quantity, stored.AmountAvailable)
	assert.Equal(t, successes, stored.Sales)

	u, err := repo.GetUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1000-successes*quantity*5, u.Deposit)
}

func TestPurchase_ConcurrentBalance(t *testing.T) {
	// Stock is plentiful but the deposit only covers four items; losing
	// debits must hand their stock back.
	repo, p := seed(t, 5, 10, 20)
	svc := service.NewPurchaseService(repo, repo, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := svc.Purchase(context.Background(), intent(p, 1)).(*service.Success); ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, successes)
	stored, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.AmountAvailable)
	assert.Equal(t, 4, stored.Sales)

	u, err := repo.GetUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, u.Deposit)
}

func TestPurchase_CompensatesFailedDebit(t *testing.T) {
	repo, p := seed(t, 5, 10, 100)
	store := &flakyStore{MemoryRepository: repo, debitErr: errors.New("connection reset")}
	svc := service.NewPurchaseService(store, store, zaptest.NewLogger(t))

	res := svc.Purchase(context.Background(), intent(p, 2))

	failed, ok := res.(*service.Failed)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, service.CauseStoreUnavailable, failed.Cause)
	assert.Equal(t, 1, store.restores)

	stored, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.AmountAvailable)
	assert.Equal(t, 0, stored.Sales)
}

func TestPurchase_PartialCommit(t *testing.T) {
	repo, p := seed(t, 5, 10, 100)
	store := &flakyStore{
		MemoryRepository: repo,
		debitErr:         errors.New("connection reset"),
		restoreErr:       errors.New("connection refused"),
	}
	events := &recordingPublisher{}
	svc := service.NewPurchaseService(store, store, zaptest.NewLogger(t), service.WithEvents(events))

	res := svc.Purchase(context.Background(), intent(p, 2))

	failed, ok := res.(*service.Failed)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, service.CausePartialCommit, failed.Cause)
	assert.ErrorContains(t, failed, "connection reset")
	assert.ErrorContains(t, failed, "connection refused")

	require.Equal(t, []string{service.SubjectConsistencyFault}, events.subjects)
	fault := events.payloads[0].(service.ConsistencyFault)
	assert.Equal(t, p.ID, fault.ProductID)
	assert.Equal(t, 10, fault.Gross)
}

func TestPurchase_Transactor(t *testing.T) {
	repo, p := seed(t, 5, 10, 100)
	store := &flakyStore{MemoryRepository: repo, debitErr: model.ErrBalanceConflict}
	tx := &passthroughTx{}
	svc := service.NewPurchaseService(store, store, zaptest.NewLogger(t), service.WithTransactor(tx))

	res := svc.Purchase(context.Background(), intent(p, 1))

	assert.Equal(t, &service.Rejected{Reason: service.ReasonConflict}, res)
	assert.Equal(t, 1, tx.calls)
	assert.Zero(t, store.restores, "rollback replaces compensation")
}

func TestPurchase_Timeout(t *testing.T) {
	repo, p := seed(t, 5, 10, 100)
	store := &blockingStore{MemoryRepository: repo}
	svc := service.NewPurchaseService(store, store, zaptest.NewLogger(t), service.WithTimeout(20*time.Millisecond))

	res := svc.Purchase(context.Background(), intent(p, 1))

	failed, ok := res.(*service.Failed)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, service.CauseTimeout, failed.Cause)
	assert.ErrorIs(t, failed, context.DeadlineExceeded)
}

func TestPurchase_StoreUnavailable(t *testing.T) {
	repo, p := seed(t, 5, 10, 100)
	store := &flakyStore{MemoryRepository: repo, getErr: errors.New("dial tcp: connection refused")}
	svc := service.NewPurchaseService(store, store, zaptest.NewLogger(t))

	res := svc.Purchase(context.Background(), intent(p, 1))

	failed, ok := res.(*service.Failed)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, service.CauseStoreUnavailable, failed.Cause)
}
