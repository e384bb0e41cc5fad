package domain

import (
	"fmt"
	"time"
)

type Fishtank struct {
	ID           string    `json:"id" firestore:"-"`
	Name         string    `json:"name" firestore:"name"`
	Description  string    `json:"description" firestore:"description"`
	OwnerID      string    `json:"owner_id" firestore:"ownerId"`
	IsPrivate    bool      `json:"is_private" firestore:"isPrivate"`
	MemberCount  int64     `json:"member_count" firestore:"memberCount"`
	PendingCount int64     `json:"pending_count" firestore:"pendingCount"`
	CreatedAt    time.Time `json:"created_at" firestore:"createdAt"`
}

func (f *Fishtank) Summary() FishtankSummary {
	return FishtankSummary{
		ID:           f.ID,
		Name:         f.Name,
		Description:  f.Description,
		MemberCount:  f.MemberCount,
		PendingCount: f.PendingCount,
	}
}

type FishtankSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	MemberCount  int64  `json:"member_count"`
	PendingCount int64  `json:"pending_count"`
}

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleMember MemberRole = "member"
)

type Membership struct {
	ID         string     `json:"id" firestore:"-"`
	FishtankID string     `json:"fishtank_id" firestore:"fishtankId"`
	UserID     string     `json:"user_id" firestore:"userId"`
	Role       MemberRole `json:"role" firestore:"role"`
	JoinedAt   time.Time  `json:"joined_at" firestore:"joinedAt"`
}

// MembershipID is the deterministic key of a user's membership in a fishtank,
// so a second insert for the same pair collides instead of duplicating.
func MembershipID(fishtankID, userID string) string {
	return fmt.Sprintf("%s_%s", fishtankID, userID)
}

// CounterDrift describes a fishtank whose stored counters disagree with its rows.
type CounterDrift struct {
	FishtankID    string `json:"fishtank_id"`
	StoredPending int64  `json:"stored_pending"`
	ActualPending int64  `json:"actual_pending"`
	StoredMembers int64  `json:"stored_members"`
	ActualMembers int64  `json:"actual_members"`
}
