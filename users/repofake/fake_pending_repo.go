package fakeuserrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/jrsteele09/go-waste-portal/users"
)

var _ users.PendingRepo = (*FakePendingRepo)(nil)

// DecideCall records one Decide invocation.
type DecideCall struct {
	ID     string
	Action users.Action
	Reason string
}

// FakePendingRepo is an in-memory PendingRepo for tests.
type FakePendingRepo struct {
	lock      sync.RWMutex
	pending   []users.PendingUser
	decideErr error
	calls     []DecideCall
	listCalls int
}

func NewFakePendingRepo(pending ...users.PendingUser) *FakePendingRepo {
	return &FakePendingRepo{pending: pending}
}

// FailDecisions makes every later Decide return err.
func (r *FakePendingRepo) FailDecisions(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.decideErr = err
}

func (r *FakePendingRepo) ListPending(_ context.Context) (*users.PendingList, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.listCalls++
	return users.NewPendingList(append([]users.PendingUser(nil), r.pending...)), nil
}

func (r *FakePendingRepo) Decide(_ context.Context, id string, action users.Action, decision users.Decision) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.calls = append(r.calls, DecideCall{ID: id, Action: action, Reason: decision.Reason})
	if r.decideErr != nil {
		return r.decideErr
	}
	for i, u := range r.pending {
		if u.ID == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return nil
		}
	}
	return errors.Wrapf(errors.ErrUserNotPending, "user %s", id)
}

func (r *FakePendingRepo) Calls() []DecideCall {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return append([]DecideCall(nil), r.calls...)
}

func (r *FakePendingRepo) ListCalls() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.listCalls
}
