package model

// Status is the lifecycle state of a contract.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusViewed    Status = "viewed"
	StatusSigned    Status = "signed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusSent, StatusViewed, StatusSigned, StatusCancelled}

var transitions = map[Status][]Status{
	StatusDraft:  {StatusSent, StatusCancelled},
	StatusSent:   {StatusViewed, StatusSigned, StatusCancelled},
	StatusViewed: {StatusSigned, StatusCancelled},
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s without an administrative override.
func (s Status) CanTransitionTo(next Status) bool {
	for _, v := range transitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// SetByAdmin reports whether an admin edit may move s to next without an override.
// Viewed and signed are only reached through the client link and a recorded signature.
func (s Status) SetByAdmin(next Status) bool {
	return (next == StatusSent || next == StatusCancelled) && s.CanTransitionTo(next)
}

// Terminal reports whether the signing workflow is finished for s.
func (s Status) Terminal() bool {
	return s == StatusSigned || s == StatusCancelled
}

// Label is the display name used in documents and emails.
func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusSent:
		return "Sent"
	case StatusViewed:
		return "Viewed"
	case StatusSigned:
		return "Signed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}
