package users

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-waste-portal/sessions"
)

// StepInfo describes where a user is in onboarding.
type StepInfo struct {
	Step                  string `json:"step"`
	Status                string `json:"status"`
	RequiresAdminApproval bool   `json:"requires_admin_approval"`
	IsAccessible          bool   `json:"is_accessible"`
	IsCompleted           bool   `json:"is_completed"`
}

// Profile is the business profile a pengelola submitted.
type Profile struct {
	CompanyName    string `json:"company_name,omitempty"`
	CompanyAddress string `json:"company_address,omitempty"`
	PICName        string `json:"pic_name,omitempty"`
	PICPhone       string `json:"pic_phone,omitempty"`
	NIB            string `json:"nib,omitempty"`
}

// Identity is the contact record of a pending user.
type Identity struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PendingUser is a user waiting for an administrator decision. The record is
// owned by the remote API; the portal only reads it.
type PendingUser struct {
	ID                 string                      `json:"id"`
	Role               sessions.Role               `json:"role"`
	RegistrationStatus sessions.RegistrationStatus `json:"registration_status"`
	Progress           int                         `json:"progress"`
	Profile            *Profile                    `json:"profile,omitempty"`
	Identity           *Identity                   `json:"identity,omitempty"`
	StepInfo           StepInfo                    `json:"step_info"`
	CreatedAt          time.Time                   `json:"created_at"`
}

// DisplayName picks the most descriptive name available.
func (u PendingUser) DisplayName() string {
	switch {
	case u.Profile != nil && u.Profile.CompanyName != "":
		return u.Profile.CompanyName
	case u.Identity != nil && u.Identity.Name != "":
		return u.Identity.Name
	case u.Identity != nil && u.Identity.Phone != "":
		return u.Identity.Phone
	case u.Identity != nil && u.Identity.Email != "":
		return u.Identity.Email
	}
	return u.ID
}

// PendingList is the role-partitioned pending-approval list with per-role
// totals. It is safe for concurrent use.
type PendingList struct {
	mu           sync.Mutex
	Users        map[sessions.Role][]PendingUser `json:"users"`
	TotalPending map[sessions.Role]int           `json:"total_pending"`
}

// Removal records what Remove took out so Restore can put it back.
type Removal struct {
	User        PendingUser
	Role        sessions.Role
	Index       int
	Decremented bool
}

// NewPendingList partitions users by role and counts them.
func NewPendingList(pending []PendingUser) *PendingList {
	l := &PendingList{
		Users:        make(map[sessions.Role][]PendingUser),
		TotalPending: make(map[sessions.Role]int),
	}
	for _, u := range pending {
		l.Users[u.Role] = append(l.Users[u.Role], u)
		l.TotalPending[u.Role]++
	}
	return l
}

// Remove takes the user with id out of whichever partition holds it and
// decrements that role's total, never below zero. It is a no-op for an id
// that is not present.
func (l *PendingList) Remove(id string) (Removal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for role, list := range l.Users {
		for i, u := range list {
			if u.ID != id {
				continue
			}
			l.Users[role] = append(list[:i:i], list[i+1:]...)
			rm := Removal{User: u, Role: role, Index: i}
			if l.TotalPending == nil {
				l.TotalPending = make(map[sessions.Role]int)
			}
			if l.TotalPending[role] > 0 {
				l.TotalPending[role]--
				rm.Decremented = true
			}
			return rm, true
		}
	}
	return Removal{}, false
}

// Restore undoes a Remove, re-inserting the user at its original position.
func (l *PendingList) Restore(rm Removal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Users == nil {
		l.Users = make(map[sessions.Role][]PendingUser)
	}
	list := l.Users[rm.Role]
	for _, u := range list {
		if u.ID == rm.User.ID {
			return
		}
	}
	idx := min(max(rm.Index, 0), len(list))
	restored := make([]PendingUser, 0, len(list)+1)
	restored = append(restored, list[:idx]...)
	restored = append(restored, rm.User)
	restored = append(restored, list[idx:]...)
	l.Users[rm.Role] = restored

	if rm.Decremented {
		if l.TotalPending == nil {
			l.TotalPending = make(map[sessions.Role]int)
		}
		l.TotalPending[rm.Role]++
	}
}

// Partition returns a copy of the users pending for role.
func (l *PendingList) Partition(role sessions.Role) []PendingUser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]PendingUser(nil), l.Users[role]...)
}

// Total returns the pending count for role.
func (l *PendingList) Total(role sessions.Role) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.TotalPending[role]
}

// GrandTotal sums the pending counts of every role.
func (l *PendingList) GrandTotal() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.TotalPending {
		n += c
	}
	return n
}
