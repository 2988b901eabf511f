package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/order/models"
	"github.com/Skotchmaster/storefront/internal/order/repo"
	"github.com/Skotchmaster/storefront/internal/payment"
)

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newMemOrders(orders ...models.Order) *memOrders {
	m := &memOrders{orders: map[string]*models.Order{}}
	for i := range orders {
		o := orders[i]
		m.orders[o.ID] = &o
	}
	return m
}

func (m *memOrders) get(id string) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

func (m *memOrders) FindByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repo.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) FindBySessionID(_ context.Context, sessionID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.SessionID == sessionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repo.ErrOrderNotFound
}

func (m *memOrders) MarkPaid(_ context.Context, sessionID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.SessionID == sessionID && o.Status == models.StatusPending {
			o.Status = models.StatusPaid
			o.PaidAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (m *memOrders) filter(keep func(*models.Order) bool, offset, limit int) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Order
	for _, o := range m.orders {
		if keep(o) {
			all = append(all, *o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memOrders) ListByEmail(_ context.Context, email string, offset, limit int) ([]models.Order, int64, error) {
	return m.filter(func(o *models.Order) bool { return o.Email == email }, offset, limit)
}

func (m *memOrders) ListAll(_ context.Context, status models.Status, offset, limit int) ([]models.Order, int64, error) {
	return m.filter(func(o *models.Order) bool { return status == "" || o.Status == status }, offset, limit)
}

// stubProvider accepts "valid" as the only signature and returns the queued
// event for it.
type stubProvider struct {
	event *payment.Event
}

func (p *stubProvider) CreateSession(context.Context, payment.SessionRequest) (*payment.Session, error) {
	return nil, payment.ErrProvider
}

func (p *stubProvider) ParseWebhook(_ []byte, sig string) (*payment.Event, error) {
	if sig != "valid" {
		return nil, payment.ErrSignature
	}
	cp := *p.event
	return &cp, nil
}

type recordingCarts struct {
	mu      sync.Mutex
	cleared []string
}

func (c *recordingCarts) Clear(_ context.Context, cartID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, cartID)
	return nil
}

type publishedEvent struct {
	topic, key string
	event      any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic, key, event})
	return nil
}
