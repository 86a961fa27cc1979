package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/cafeluna/api/internal/platform/firestore"
	"github.com/cafeluna/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry interface consumed by the DI container.
type Registry struct {
	provider *pfirestore.Provider
	txRunner *pfirestore.TxRunner

	orders        *OrderRepository
	carts         *CartRepository
	beverages     *BeverageRepository
	addOns        *AddOnRepository
	users         *UserRepository
	notifications *NotificationRepository
	counters      *CounterRepository
	health        repositories.HealthRepository
}

// NewRegistry wires every repository against the shared provider. The health
// repository is injected because its probes cover more than Firestore.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("repository registry: firestore provider is required")
	}
	if health == nil {
		return nil, errors.New("repository registry: health repository is required")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	beverages, err := NewBeverageRepository(provider)
	if err != nil {
		return nil, err
	}
	addOns, err := NewAddOnRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	notifications, err := NewNotificationRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	txRunner, err := pfirestore.NewTxRunner(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:      provider,
		txRunner:      txRunner,
		orders:        orders,
		carts:         carts,
		beverages:     beverages,
		addOns:        addOns,
		users:         users,
		notifications: notifications,
		counters:      counters,
		health:        health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// RunInTx executes fn inside a Firestore transaction. Repository calls made
// with the callback context join the transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.txRunner == nil {
		return errors.New("repository registry not initialised")
	}
	return r.txRunner.RunInTx(ctx, fn)
}

func (r *Registry) Orders() repositories.OrderRepository               { return r.orders }
func (r *Registry) Carts() repositories.CartRepository                 { return r.carts }
func (r *Registry) Beverages() repositories.BeverageRepository         { return r.beverages }
func (r *Registry) AddOns() repositories.AddOnRepository               { return r.addOns }
func (r *Registry) Users() repositories.UserRepository                 { return r.users }
func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }
func (r *Registry) Counters() repositories.CounterRepository           { return r.counters }
func (r *Registry) Health() repositories.HealthRepository              { return r.health }

var _ repositories.Registry = (*Registry)(nil)
