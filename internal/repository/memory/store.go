// Package memory is an in-process document store used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/repository"
)

type Store struct {
	mu          sync.Mutex
	fishtanks   map[string]*domain.Fishtank
	requests    map[string]*domain.JoinRequest
	memberships map[string]*domain.Membership
	profiles    map[string]*domain.RequesterProfile
	contacts    map[string]*domain.Contact
	watchers    map[string]map[*watcher]struct{}
	seq         int64
}

type watcher struct {
	dirty chan struct{}
}

func NewStore() *Store {
	return &Store{
		fishtanks:   make(map[string]*domain.Fishtank),
		requests:    make(map[string]*domain.JoinRequest),
		memberships: make(map[string]*domain.Membership),
		profiles:    make(map[string]*domain.RequesterProfile),
		contacts:    make(map[string]*domain.Contact),
		watchers:    make(map[string]map[*watcher]struct{}),
	}
}

func (s *Store) Fishtanks() repository.FishtankRepository       { return (*fishtankRepo)(s) }
func (s *Store) JoinRequests() repository.JoinRequestRepository { return (*joinRequestRepo)(s) }
func (s *Store) Profiles() repository.ProfileRepository         { return (*profileRepo)(s) }
func (s *Store) Close() error                                   { return nil }

// PutUser seeds a user's profile and contact details.
func (s *Store) PutUser(p domain.RequesterProfile, c domain.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.UserID = p.UserID
	s.profiles[p.UserID] = &p
	s.contacts[p.UserID] = &c
}

// SetCounters overwrites a fishtank's stored counters without touching its
// rows, for seeding drift.
func (s *Store) SetCounters(fishtankID string, pending, members int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fishtanks[fishtankID]; ok {
		f.PendingCount = pending
		f.MemberCount = members
	}
}

// notifyLocked wakes every watcher of the fishtank. Caller holds mu.
func (s *Store) notifyLocked(fishtankID string) {
	for w := range s.watchers[fishtankID] {
		select {
		case w.dirty <- struct{}{}:
		default:
		}
	}
}

func (s *Store) pendingLocked(fishtankID string) []domain.JoinRequest {
	var out []domain.JoinRequest
	for _, r := range s.requests {
		if r.FishtankID == fishtankID && r.Status == domain.JoinRequestStatusPending {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

type fishtankRepo Store

func (r *fishtankRepo) Create(ctx context.Context, f *domain.Fishtank, owner *domain.Membership) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if _, ok := s.fishtanks[f.ID]; ok {
		return fmt.Errorf("fishtank %s: %w", f.ID, domain.ErrInvalidState)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	stored := *f
	s.fishtanks[f.ID] = &stored
	if owner != nil {
		owner.FishtankID = f.ID
		owner.ID = domain.MembershipID(f.ID, owner.UserID)
		m := *owner
		s.memberships[m.ID] = &m
	}
	return nil
}

func (r *fishtankRepo) GetByID(ctx context.Context, id string) (*domain.Fishtank, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fishtanks[id]
	if !ok {
		return nil, fmt.Errorf("fishtank %s: %w", id, domain.ErrNotFound)
	}
	out := *f
	return &out, nil
}

func (r *fishtankRepo) ListIDs(ctx context.Context) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.fishtanks))
	for id := range s.fishtanks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fishtankRepo) GetMembership(ctx context.Context, fishtankID, userID string) (*domain.Membership, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[domain.MembershipID(fishtankID, userID)]
	if !ok {
		return nil, fmt.Errorf("membership %s/%s: %w", fishtankID, userID, domain.ErrNotFound)
	}
	out := *m
	return &out, nil
}

func (r *fishtankRepo) CountRows(ctx context.Context, fishtankID string) (int64, int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, members := s.countLocked(fishtankID)
	return pending, members, nil
}

func (r *fishtankRepo) RecountCounters(ctx context.Context, fishtankID string) (*domain.CounterDrift, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fishtanks[fishtankID]
	if !ok {
		return nil, fmt.Errorf("fishtank %s: %w", fishtankID, domain.ErrNotFound)
	}
	pending, members := s.countLocked(fishtankID)
	if f.PendingCount == pending && f.MemberCount == members {
		return nil, nil
	}
	drift := &domain.CounterDrift{
		FishtankID:    fishtankID,
		StoredPending: f.PendingCount,
		ActualPending: pending,
		StoredMembers: f.MemberCount,
		ActualMembers: members,
	}
	f.PendingCount = pending
	f.MemberCount = members
	return drift, nil
}

func (s *Store) countLocked(fishtankID string) (pending, members int64) {
	pending = int64(len(s.pendingLocked(fishtankID)))
	for _, m := range s.memberships {
		if m.FishtankID == fishtankID {
			members++
		}
	}
	return pending, members
}

type joinRequestRepo Store

func (r *joinRequestRepo) Create(ctx context.Context, req *domain.JoinRequest) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fishtanks[req.FishtankID]
	if !ok {
		return fmt.Errorf("fishtank %s: %w", req.FishtankID, domain.ErrNotFound)
	}
	if _, member := s.memberships[domain.MembershipID(req.FishtankID, req.RequesterID)]; member {
		return fmt.Errorf("user %s is already a member of %s: %w", req.RequesterID, req.FishtankID, domain.ErrInvalidState)
	}
	for _, existing := range s.requests {
		if existing.FishtankID == req.FishtankID && existing.RequesterID == req.RequesterID &&
			existing.Status == domain.JoinRequestStatusPending {
			return fmt.Errorf("requester %s already has a pending request: %w", req.RequesterID, domain.ErrInvalidState)
		}
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		// keep insertion order stable when two requests land in the same instant
		s.seq++
		req.CreatedAt = now.Add(time.Duration(s.seq))
	}
	req.UpdatedAt = req.CreatedAt
	req.Status = domain.JoinRequestStatusPending

	stored := *req
	s.requests[req.ID] = &stored
	f.PendingCount++
	s.notifyLocked(req.FishtankID)
	return nil
}

func (r *joinRequestRepo) GetByID(ctx context.Context, id string) (*domain.JoinRequest, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("join request %s: %w", id, domain.ErrNotFound)
	}
	out := *req
	return &out, nil
}

func (r *joinRequestRepo) ListPending(ctx context.Context, fishtankID string) ([]domain.JoinRequest, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked(fishtankID), nil
}

func (r *joinRequestRepo) WatchPending(ctx context.Context, fishtankID string) (<-chan repository.PendingSnapshot, error) {
	s := (*Store)(r)
	w := &watcher{dirty: make(chan struct{}, 1)}
	w.dirty <- struct{}{} // initial emission

	s.mu.Lock()
	if s.watchers[fishtankID] == nil {
		s.watchers[fishtankID] = make(map[*watcher]struct{})
	}
	s.watchers[fishtankID][w] = struct{}{}
	s.mu.Unlock()

	out := make(chan repository.PendingSnapshot)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.watchers[fishtankID], w)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.dirty:
			}
			s.mu.Lock()
			snap := repository.PendingSnapshot{Requests: s.pendingLocked(fishtankID)}
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case out <- snap:
			}
		}
	}()
	return out, nil
}

func (r *joinRequestRepo) Resolve(ctx context.Context, p repository.ResolveParams) (*domain.Resolution, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[p.RequestID]
	if !ok {
		return nil, fmt.Errorf("join request %s: %w", p.RequestID, domain.ErrNotFound)
	}
	next := p.Decision.Status()
	if !req.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("join request %s is %s: %w", req.ID, req.Status, domain.ErrInvalidState)
	}
	f, ok := s.fishtanks[req.FishtankID]
	if !ok {
		return nil, fmt.Errorf("fishtank %s: %w", req.FishtankID, domain.ErrNotFound)
	}
	memberID := domain.MembershipID(req.FishtankID, req.RequesterID)
	if _, member := s.memberships[memberID]; member && p.Decision == domain.DecisionAccept {
		return nil, fmt.Errorf("user %s is already a member of %s: %w", req.RequesterID, req.FishtankID, domain.ErrInvalidState)
	}

	res := &domain.Resolution{Decision: p.Decision, ResolvedAt: p.At}

	req.Status = next
	req.UpdatedAt = p.At
	req.ResolvedBy = p.ActorID
	res.MarkApplied(domain.StepStatus)

	if p.Decision == domain.DecisionAccept {
		m := &domain.Membership{
			ID:         memberID,
			FishtankID: req.FishtankID,
			UserID:     req.RequesterID,
			Role:       domain.MemberRoleMember,
			JoinedAt:   p.At,
		}
		s.memberships[m.ID] = m
		out := *m
		res.Membership = &out
		res.MarkApplied(domain.StepMembership)
		f.MemberCount++
	}
	f.PendingCount--
	res.MarkApplied(domain.StepCounters)

	res.Request = *req
	s.notifyLocked(req.FishtankID)
	return res, nil
}

func (r *joinRequestRepo) CompleteResolution(ctx context.Context, res *domain.Resolution) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[res.Request.ID]
	if !ok {
		return fmt.Errorf("join request %s: %w", res.Request.ID, domain.ErrNotFound)
	}
	f, ok := s.fishtanks[req.FishtankID]
	if !ok {
		return fmt.Errorf("fishtank %s: %w", req.FishtankID, domain.ErrNotFound)
	}

	missing := res.Missing()
	memberID := domain.MembershipID(req.FishtankID, req.RequesterID)
	// check every step before writing any, so a refusal leaves no trace
	for _, step := range missing {
		switch step {
		case domain.StepStatus:
			if !req.Status.CanTransitionTo(res.Decision.Status()) {
				return fmt.Errorf("join request %s is %s: %w", req.ID, req.Status, domain.ErrInvalidState)
			}
		case domain.StepMembership:
			if _, exists := s.memberships[memberID]; exists {
				return fmt.Errorf("user %s is already a member of %s: %w", req.RequesterID, req.FishtankID, domain.ErrInvalidState)
			}
		}
	}

	for _, step := range missing {
		switch step {
		case domain.StepStatus:
			req.Status = res.Decision.Status()
			req.UpdatedAt = res.ResolvedAt
		case domain.StepMembership:
			m := &domain.Membership{
				ID:         memberID,
				FishtankID: req.FishtankID,
				UserID:     req.RequesterID,
				Role:       domain.MemberRoleMember,
				JoinedAt:   res.ResolvedAt,
			}
			s.memberships[memberID] = m
			out := *m
			res.Membership = &out
		case domain.StepCounters:
			if res.Decision == domain.DecisionAccept {
				f.MemberCount++
			}
			f.PendingCount--
		}
		res.MarkApplied(step)
	}
	res.Request = *req
	s.notifyLocked(req.FishtankID)
	return nil
}

type profileRepo Store

func (r *profileRepo) GetProfile(ctx context.Context, userID string) (*domain.RequesterProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (r *profileRepo) GetContact(ctx context.Context, userID string) (*domain.Contact, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[userID]
	if !ok {
		return nil, fmt.Errorf("contact %s: %w", userID, domain.ErrNotFound)
	}
	out := *c
	return &out, nil
}
