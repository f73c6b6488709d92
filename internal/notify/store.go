package notify

import (
	"context"
	"errors"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionStore keeps one push subscription per user; a new one replaces the old.
type SubscriptionStore interface {
	Save(ctx context.Context, userID string, sub webpush.Subscription) error
	// Get returns nil when the user has no subscription.
	Get(ctx context.Context, userID string) (*webpush.Subscription, error)
	Delete(ctx context.Context, userID string) error
}

// Memory is an in-process SubscriptionStore.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]webpush.Subscription
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]webpush.Subscription)}
}

func (m *Memory) Save(_ context.Context, userID string, sub webpush.Subscription) error {
	m.mu.Lock()
	m.subs[userID] = sub
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, userID string) (*webpush.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[userID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (m *Memory) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.subs, userID)
	m.mu.Unlock()
	return nil
}

// Repository stores subscriptions in push_subscriptions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a push subscription repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Save(ctx context.Context, userID string, sub webpush.Subscription) error {
	const q = `INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET endpoint = EXCLUDED.endpoint, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, userID, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth)
	return err
}

func (r *Repository) Get(ctx context.Context, userID string) (*webpush.Subscription, error) {
	const q = `SELECT endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = $1`
	var sub webpush.Subscription
	err := r.pool.QueryRow(ctx, q, userID).Scan(&sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE user_id = $1`, userID)
	return err
}
