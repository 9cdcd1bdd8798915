//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
	"rust-vip-platform/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User

	// FindErr makes FindByID fail for the given user ids.
	FindErr map[string]error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}, FindErr: map[string]error{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FindErr[id]; ok {
		return nil, err
	}
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *MockUserRepo) UpdateRole(ctx context.Context, tx repository.Tx, id string, role model.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Role = role
	return nil
}

// seedUser stores a user with both accounts linked.
func seedUser(r *MockUserRepo, id string) *model.User {
	discord := "123456789012345678"
	steam := "76561198000000001"
	u := &model.User{ID: id, Email: id + "@example.test", DiscordID: &discord, SteamID: &steam, Role: model.RoleUser}
	_ = r.Save(context.Background(), repository.NoTX, u)
	return u
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu    sync.Mutex
	data  map[string]*model.Subscription
	users *MockUserRepo

	// SaveErr makes Save fail for the given subscription ids.
	SaveErr map[string]error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

// NewMockSubscriptionRepo takes the user repo so ListUnprovisioned can check
// linked accounts the way the SQL join does.
func NewMockSubscriptionRepo(users *MockUserRepo) *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}, users: users, SaveErr: map[string]error{}}
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.SaveErr[s.ID]; ok {
		return err
	}
	if s.Status == model.SubscriptionStatusActive {
		for id, other := range r.data {
			if id != s.ID && other.UserID == s.UserID && other.Status == model.SubscriptionStatusActive {
				return domain.ErrActiveSubscription
			}
		}
	}
	cp := *s
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) find(match func(*model.Subscription) bool) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.Subscription
	for _, s := range r.data {
		if match(s) && (best == nil || s.CreatedAt.After(best.CreatedAt)) {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *MockSubscriptionRepo) list(match func(*model.Subscription) bool, less func(a, b *model.Subscription) bool, limit int) []*model.Subscription {
	r.mu.Lock()
	var out []*model.Subscription
	for _, s := range r.data {
		if match(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return r.find(func(s *model.Subscription) bool { return s.ID == id })
}

func (r *MockSubscriptionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	return r.find(func(s *model.Subscription) bool { return s.PaymentIDOrEmpty() == paymentID })
}

func (r *MockSubscriptionRepo) FindByPreferenceID(ctx context.Context, tx repository.Tx, preferenceID string) (*model.Subscription, error) {
	return r.find(func(s *model.Subscription) bool { return s.PreferenceID != nil && *s.PreferenceID == preferenceID })
}

func (r *MockSubscriptionRepo) FindLatestPendingByUser(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Subscription, error) {
	s, err := r.find(func(s *model.Subscription) bool {
		return s.UserID == userID && s.Status == model.SubscriptionStatusPending && s.PlanID == planID
	})
	if err == nil {
		return s, nil
	}
	return r.find(func(s *model.Subscription) bool {
		return s.UserID == userID && s.Status == model.SubscriptionStatusPending
	})
}

func (r *MockSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	return r.find(func(s *model.Subscription) bool {
		return s.UserID == userID && s.Status == model.SubscriptionStatusActive
	})
}

func (r *MockSubscriptionRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.Subscription, error) {
	return r.list(
		func(s *model.Subscription) bool { return s.IsPending() },
		func(a, b *model.Subscription) bool { return a.CreatedAt.After(b.CreatedAt) },
		limit,
	), nil
}

func (r *MockSubscriptionRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	return r.list(
		func(s *model.Subscription) bool { return s.IsExpiredAt(now) },
		func(a, b *model.Subscription) bool { return a.ExpiresAt.Before(*b.ExpiresAt) },
		limit,
	), nil
}

func (r *MockSubscriptionRepo) ListUnprovisioned(ctx context.Context, tx repository.Tx, limit int) ([]*model.Subscription, error) {
	linked := func(s *model.Subscription) (discord, steam bool) {
		if r.users == nil {
			return true, true
		}
		u, err := r.users.FindByID(ctx, tx, s.UserID)
		if err != nil {
			return false, false
		}
		return u.DiscordID != nil, u.SteamID != nil
	}
	return r.list(
		func(s *model.Subscription) bool {
			if s.Status != model.SubscriptionStatusActive {
				return false
			}
			d, g := linked(s)
			return (d && !s.DiscordRoleAssigned) || (g && !s.RustPermissionAssigned)
		},
		func(a, b *model.Subscription) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
		limit,
	), nil
}

func (r *MockSubscriptionRepo) SetProvisioned(ctx context.Context, tx repository.Tx, id string, target model.ProvisionTarget, assigned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	switch target {
	case model.TargetDiscord:
		s.DiscordRoleAssigned = assigned
	case model.TargetGameServer:
		s.RustPermissionAssigned = assigned
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (r *MockSubscriptionRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	return nil
}

// Get returns the stored row without going through the port.
func (r *MockSubscriptionRepo) Get(id string) *model.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.data[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func (r *MockSubscriptionRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// ---- Mock SystemLogRepository ----

type MockSystemLogRepo struct {
	mu      sync.Mutex
	Entries []*model.SystemLog
}

var _ repository.SystemLogRepository = (*MockSystemLogRepo)(nil)

func (r *MockSystemLogRepo) Insert(ctx context.Context, tx repository.Tx, l *model.SystemLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, l)
	return nil
}

func (r *MockSystemLogRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Entries)
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

var _ repository.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrAlreadyRunning
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return domain.ErrLockNotHeld
	}
	delete(l.held, key)
	return nil
}

func (l *MockLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// =============================
// Adapters
// =============================

// ---- Mock Provisioner ----

type provisionCall struct {
	Action model.ProvisionAction
	ID     string
}

type MockProvisioner struct {
	mu     sync.Mutex
	target model.ProvisionTarget
	Calls  []provisionCall

	// ResultFunc overrides the default success answer.
	ResultFunc func(action model.ProvisionAction, id string) model.ProvisionResult
}

var _ adapter.Provisioner = (*MockProvisioner)(nil)

func NewMockProvisioner(target model.ProvisionTarget) *MockProvisioner {
	return &MockProvisioner{target: target}
}

func (p *MockProvisioner) Target() model.ProvisionTarget { return p.target }

func (p *MockProvisioner) call(action model.ProvisionAction, id string) model.ProvisionResult {
	p.mu.Lock()
	p.Calls = append(p.Calls, provisionCall{Action: action, ID: id})
	fn := p.ResultFunc
	p.mu.Unlock()
	if fn != nil {
		return fn(action, id)
	}
	if id == "" {
		return model.ProvisionFailure(p.target, action, model.ProvisionMissingLink, "no linked account")
	}
	res := model.ProvisionSuccess(p.target, action)
	res.Active = action == model.ActionStatus
	return res
}

func (p *MockProvisioner) Add(ctx context.Context, id string) model.ProvisionResult {
	return p.call(model.ActionAdd, id)
}

func (p *MockProvisioner) Remove(ctx context.Context, id string) model.ProvisionResult {
	return p.call(model.ActionRemove, id)
}

func (p *MockProvisioner) Status(ctx context.Context, id string) model.ProvisionResult {
	return p.call(model.ActionStatus, id)
}

func (p *MockProvisioner) CallCount(action model.ProvisionAction) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if c.Action == action {
			n++
		}
	}
	return n
}

// ---- Payment gateway wrapper ----

// MockPaymentGateway delegates to an in-memory gateway unless a Func is set.
type MockPaymentGateway struct {
	adapter.PaymentGateway

	GetPaymentFunc func(ctx context.Context, id string) (*model.PaymentInfo, error)
	SearchFunc     func(ctx context.Context, ref string) ([]model.PaymentInfo, error)
}

func (g *MockPaymentGateway) GetPayment(ctx context.Context, id string) (*model.PaymentInfo, error) {
	if g.GetPaymentFunc != nil {
		return g.GetPaymentFunc(ctx, id)
	}
	return g.PaymentGateway.GetPayment(ctx, id)
}

func (g *MockPaymentGateway) SearchPaymentsByReference(ctx context.Context, ref string) ([]model.PaymentInfo, error) {
	if g.SearchFunc != nil {
		return g.SearchFunc(ctx, ref)
	}
	return g.PaymentGateway.SearchPaymentsByReference(ctx, ref)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
