package domain

import "time"

type JoinRequestStatus string

const (
	JoinRequestStatusPending  JoinRequestStatus = "pending"
	JoinRequestStatusAccepted JoinRequestStatus = "accepted"
	JoinRequestStatusRejected JoinRequestStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JoinRequestStatus) IsTerminal() bool {
	return s == JoinRequestStatusAccepted || s == JoinRequestStatusRejected
}

// CanTransitionTo reports whether s -> next is a legal status change.
// Only pending -> accepted and pending -> rejected are allowed.
func (s JoinRequestStatus) CanTransitionTo(next JoinRequestStatus) bool {
	return s == JoinRequestStatusPending && next.IsTerminal()
}

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionAccept, DecisionReject:
		return Decision(s), nil
	}
	return "", ErrInvalidArgument
}

// Status is the terminal status a decision moves a request into.
func (d Decision) Status() JoinRequestStatus {
	if d == DecisionAccept {
		return JoinRequestStatusAccepted
	}
	return JoinRequestStatusRejected
}

type JoinRequest struct {
	ID          string            `json:"id" firestore:"-"`
	FishtankID  string            `json:"fishtank_id" firestore:"fishtankId"`
	RequesterID string            `json:"requester_id" firestore:"requesterId"`
	Note        string            `json:"note" firestore:"note"`
	Status      JoinRequestStatus `json:"status" firestore:"status"`
	ResolvedBy  string            `json:"resolved_by,omitempty" firestore:"resolvedBy"`
	CreatedAt   time.Time         `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time         `json:"updated_at" firestore:"updatedAt"`
}

// PendingJoinRequest is a pending request joined with the data needed to display it.
type PendingJoinRequest struct {
	Request   JoinRequest      `json:"request"`
	Requester RequesterProfile `json:"requester"`
	Fishtank  FishtankSummary  `json:"fishtank"`
}
