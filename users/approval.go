package users

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/rs/zerolog/log"
)

// ApprovalService runs the administrator approval workflow.
type ApprovalService struct {
	repo  PendingRepo
	cache *ListCache
}

// ApprovalServiceOption defines a function type to modify the ApprovalService instance.
type ApprovalServiceOption func(*ApprovalService)

// WithListCache replaces the default list cache.
func WithListCache(c *ListCache) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.cache = c
	}
}

func NewApprovalService(repo PendingRepo, opts ...ApprovalServiceOption) *ApprovalService {
	s := &ApprovalService{repo: repo, cache: NewListCache(DefaultListTTL)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPending fetches a fresh list and caches it under key.
func (s *ApprovalService) ListPending(ctx context.Context, key string) (*PendingList, error) {
	list, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "[ApprovalService ListPending]")
	}
	if key != "" {
		s.cache.Put(key, list)
	}
	return list, nil
}

// Pending returns the cached list for key, fetching it when absent.
func (s *ApprovalService) Pending(ctx context.Context, key string) (*PendingList, error) {
	if list, ok := s.cache.Get(key); ok && key != "" {
		return list, nil
	}
	return s.ListPending(ctx, key)
}

// Decide applies action to the user with id in three phases: the user is
// removed from list first, the remote API then confirms, and on failure the
// removal is rolled back. An id missing from list is still sent to the remote
// API but leaves list untouched.
func (s *ApprovalService) Decide(ctx context.Context, list *PendingList, id string, action Action, decision Decision) error {
	if !action.Valid() {
		return errors.ErrInvalidAction
	}
	if id == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "user id is required")
	}

	removal, removed := list.Remove(id)

	if err := s.repo.Decide(ctx, id, action, decision); err != nil {
		if removed {
			list.Restore(removal)
		}
		log.Warn().Err(err).Str("user_id", id).Str("action", string(action)).Msg("approval action failed, rolled back")
		return errors.Wrapf(err, "[ApprovalService Decide] %s %s", action, id)
	}

	log.Info().Str("user_id", id).Str("action", string(action)).Bool("listed", removed).Msg("approval action applied")
	return nil
}

// DecideCached is Decide against the list cached under key. When the remote
// API reports the user as no longer pending the cached list is dropped, so
// the next read sees decisions taken elsewhere.
func (s *ApprovalService) DecideCached(ctx context.Context, key, id string, action Action, decision Decision) (*PendingList, error) {
	list, err := s.Pending(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.Decide(ctx, list, id, action, decision); err != nil {
		if staleDecision(err) {
			s.cache.Invalidate(key)
		}
		return list, err
	}
	return list, nil
}

func staleDecision(err error) bool {
	if errors.Is(err, errors.ErrUserNotPending) {
		return true
	}
	switch apiclient.StatusCode(err) {
	case http.StatusNotFound, http.StatusConflict:
		return true
	}
	return false
}
