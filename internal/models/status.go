package models

import (
	"time"

	"github.com/mmynk/grouporder/internal/apperr"
)

// Status is the lifecycle state of a GroupOrder.
type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusDelivered Status = "delivered"
)

// transitions lists the legal moves. Delivered is terminal.
var transitions = map[Status][]Status{
	StatusOpen:   {StatusClosed, StatusDelivered},
	StatusClosed: {StatusDelivered},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusDelivered:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the order to next. Illegal moves return a state error and
// leave the order untouched. Entering StatusDelivered stamps DeliveredAt.
func (o *GroupOrder) Transition(next Status, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return apperr.State("cannot move order from %s to %s", o.Status, next)
	}
	o.Status = next
	if next == StatusDelivered {
		at := now
		o.DeliveredAt = &at
	}
	return nil
}
