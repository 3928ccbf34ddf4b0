// Package memory provides a process-local Store for development and tests. Transactions
// operate on a copy of the state that replaces the live state only on commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/facility-requests/internal/domain"
	"github.com/spec-kit/facility-requests/internal/repository"
)

type state struct {
	users        map[string]domain.User
	usersByEmail map[string]string
	requests     map[string]domain.FacilityRequest
	requestOrder []string
	responses    map[string][]domain.RequestResponse
}

func newState() *state {
	return &state{
		users:        map[string]domain.User{},
		usersByEmail: map[string]string{},
		requests:     map[string]domain.FacilityRequest{},
		responses:    map[string][]domain.RequestResponse{},
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.usersByEmail {
		out.usersByEmail[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	out.requestOrder = append([]string(nil), s.requestOrder...)
	for k, v := range s.responses {
		out.responses[k] = append([]domain.RequestResponse(nil), v...)
	}
	return out
}

type db struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

// Store is an in-memory repository.Store.
type Store struct {
	db *db
	tx *state
}

// Option customizes a Store.
type Option func(*db)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *db) { d.now = now }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	d := &db{state: newState(), now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(d)
	}
	return &Store{db: d}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Users() repository.UserRepository         { return userRepo{s} }
func (s *Store) Requests() repository.RequestRepository   { return requestRepo{s} }
func (s *Store) Responses() repository.ResponseRepository { return responseRepo{s} }

// WithTx runs fn against a private copy of the state and publishes it when fn succeeds.
// Transactions and writes are serialized; reads outside the transaction never observe
// its uncommitted writes.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.RLock()
	working := s.db.state.clone()
	s.db.mu.RUnlock()

	if err := fn(&Store{db: s.db, tx: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	s.db.state = working
	s.db.mu.Unlock()
	return nil
}

func (s *Store) read(fn func(st *state)) {
	if s.tx != nil {
		fn(s.tx)
		return
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	fn(s.db.state)
}

func (s *Store) write(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.state)
}

type userRepo struct{ s *Store }

func (r userRepo) Upsert(_ context.Context, user *domain.User) error {
	now := r.s.db.now()
	return r.s.write(func(st *state) error {
		key := strings.ToLower(user.Email)
		id, ok := st.usersByEmail[key]
		if !ok {
			user.ID = uuid.NewString()
			user.CreatedAt = now
			user.UpdatedAt = now
			st.users[user.ID] = *user
			st.usersByEmail[key] = user.ID
			return nil
		}
		existing := st.users[id]
		if user.Name != "" {
			existing.Name = user.Name
		}
		if user.Image != nil {
			existing.Image = user.Image
		}
		if user.Department != nil {
			existing.Department = user.Department
		}
		if user.JobTitle != nil {
			existing.JobTitle = user.JobTitle
		}
		existing.Role = user.Role
		existing.UpdatedAt = now
		st.users[id] = existing
		*user = existing
		return nil
	})
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	var (
		user domain.User
		ok   bool
	)
	r.s.read(func(st *state) { user, ok = st.users[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var (
		user domain.User
		ok   bool
	)
	r.s.read(func(st *state) {
		var id string
		if id, ok = st.usersByEmail[strings.ToLower(email)]; ok {
			user = st.users[id]
		}
	})
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

type requestRepo struct{ s *Store }

func (r requestRepo) Create(_ context.Context, req *domain.FacilityRequest) error {
	now := r.s.db.now()
	return r.s.write(func(st *state) error {
		if _, ok := st.users[req.UserID]; !ok {
			return repository.ErrNotFound
		}
		req.ID = uuid.NewString()
		req.CreatedAt = now
		req.UpdatedAt = now
		row := *req
		row.Owner, row.Responses, row.ResponseCount = nil, nil, 0
		st.requests[req.ID] = row
		st.requestOrder = append(st.requestOrder, req.ID)
		return nil
	})
}

func (r requestRepo) GetByID(_ context.Context, id string) (*domain.FacilityRequest, error) {
	var (
		req domain.FacilityRequest
		ok  bool
	)
	r.s.read(func(st *state) {
		if req, ok = st.requests[id]; ok {
			st.decorate(&req)
		}
	})
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r requestRepo) List(_ context.Context, filter repository.RequestFilter) ([]domain.FacilityRequest, error) {
	result := []domain.FacilityRequest{}
	r.s.read(func(st *state) {
		for i := len(st.requestOrder) - 1; i >= 0; i-- {
			req := st.requests[st.requestOrder[i]]
			if !matches(req, filter) {
				continue
			}
			st.decorate(&req)
			if n := len(st.responses[req.ID]); n > 0 {
				req.Responses = []domain.RequestResponse{st.responses[req.ID][n-1]}
			}
			result = append(result, req)
		}
	})
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r requestRepo) CountByStatus(_ context.Context, filter repository.RequestFilter) (map[domain.RequestStatus]int, error) {
	counts := map[domain.RequestStatus]int{}
	r.s.read(func(st *state) {
		for _, req := range st.requests {
			if matches(req, filter) {
				counts[req.Status]++
			}
		}
	})
	return counts, nil
}

func (r requestRepo) UpdateStatus(_ context.Context, id string, status domain.RequestStatus) error {
	now := r.s.db.now()
	return r.s.write(func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return repository.ErrNotFound
		}
		req.Status = status
		req.UpdatedAt = now
		st.requests[id] = req
		return nil
	})
}

func (r requestRepo) Touch(_ context.Context, id string) error {
	now := r.s.db.now()
	return r.s.write(func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return repository.ErrNotFound
		}
		req.UpdatedAt = now
		st.requests[id] = req
		return nil
	})
}

type responseRepo struct{ s *Store }

func (r responseRepo) Create(_ context.Context, resp *domain.RequestResponse) error {
	now := r.s.db.now()
	return r.s.write(func(st *state) error {
		if _, ok := st.requests[resp.RequestID]; !ok {
			return repository.ErrNotFound
		}
		resp.ID = uuid.NewString()
		resp.CreatedAt = now
		st.responses[resp.RequestID] = append(st.responses[resp.RequestID], *resp)
		return nil
	})
}

func (r responseRepo) ListByRequest(_ context.Context, requestID string) ([]domain.RequestResponse, error) {
	result := []domain.RequestResponse{}
	r.s.read(func(st *state) {
		result = append(result, st.responses[requestID]...)
	})
	return result, nil
}

func (st *state) decorate(req *domain.FacilityRequest) {
	if owner, ok := st.users[req.UserID]; ok {
		req.Owner = owner.Profile()
	}
	req.ResponseCount = len(st.responses[req.ID])
}

func matches(req domain.FacilityRequest, filter repository.RequestFilter) bool {
	if filter.UserID != nil && req.UserID != *filter.UserID {
		return false
	}
	if filter.Status != nil && req.Status != *filter.Status {
		return false
	}
	return true
}
