package domain

import "time"

type ResolutionStep string

const (
	StepStatus     ResolutionStep = "status"
	StepMembership ResolutionStep = "membership"
	StepCounters   ResolutionStep = "counters"
)

// Resolution records the effect of resolving one join request.
type Resolution struct {
	Request    JoinRequest      `json:"request"`
	Decision   Decision         `json:"decision"`
	Membership *Membership      `json:"membership,omitempty"`
	Applied    []ResolutionStep `json:"applied"`
	ResolvedAt time.Time        `json:"resolved_at"`
}

// Steps lists every step the decision requires, in application order.
func (r *Resolution) Steps() []ResolutionStep {
	if r.Decision == DecisionAccept {
		return []ResolutionStep{StepStatus, StepMembership, StepCounters}
	}
	return []ResolutionStep{StepStatus, StepCounters}
}

func (r *Resolution) HasApplied(step ResolutionStep) bool {
	for _, s := range r.Applied {
		if s == step {
			return true
		}
	}
	return false
}

func (r *Resolution) Missing() []ResolutionStep {
	var missing []ResolutionStep
	for _, s := range r.Steps() {
		if !r.HasApplied(s) {
			missing = append(missing, s)
		}
	}
	return missing
}

func (r *Resolution) MarkApplied(step ResolutionStep) {
	if !r.HasApplied(step) {
		r.Applied = append(r.Applied, step)
	}
}

// DecisionNotice is what notifiers and event publishers receive after a
// join request is resolved.
type DecisionNotice struct {
	Resolution Resolution      `json:"resolution"`
	Fishtank   FishtankSummary `json:"fishtank"`
	Requester  Contact         `json:"requester"`
}
