package users

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/jrsteele09/go-waste-portal/sessions"
)

const PathPendingUsers = "/admin/users/pending"

var _ PendingRepo = (*RemoteRepo)(nil)

// RemoteRepo reads and decides pending users through the remote API.
type RemoteRepo struct {
	client *apiclient.Client
}

func NewRemoteRepo(client *apiclient.Client) *RemoteRepo {
	return &RemoteRepo{client: client}
}

func (r *RemoteRepo) ListPending(ctx context.Context) (*PendingList, error) {
	resp, err := r.client.Get(ctx, PathPendingUsers, nil)
	if err != nil {
		return nil, err
	}
	list, err := apiclient.DecodeData[*PendingList](resp)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return NewPendingList(nil), nil
	}
	if list.Users == nil {
		list.Users = make(map[sessions.Role][]PendingUser)
	}
	if list.TotalPending == nil {
		list.TotalPending = make(map[sessions.Role]int)
		for role, us := range list.Users {
			list.TotalPending[role] = len(us)
		}
	}
	return list, nil
}

func (r *RemoteRepo) Decide(ctx context.Context, id string, action Action, decision Decision) error {
	if !action.Valid() {
		return errors.ErrInvalidAction
	}
	_, err := r.client.Post(ctx, DecisionPath(id, action), decision)
	return err
}

// DecisionPath is the remote endpoint for an action on id.
func DecisionPath(id string, action Action) string {
	return "/admin/users/" + url.PathEscape(id) + "/" + string(action)
}
