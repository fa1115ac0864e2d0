package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInterval     = errors.New("invalid interval")
	ErrPastDate            = errors.New("date is in the past")
	ErrInvalidTransition   = errors.New("invalid reservation status transition")
	ErrResourceNotFound    = errors.New("court not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrBusy                = errors.New("court is busy, retry later")
	ErrStorageFailure      = errors.New("storage failure")

	ErrSlotUnavailable        = errors.New("slot is unavailable")
	ErrAlreadyBooked          = fmt.Errorf("%w: already booked", ErrSlotUnavailable)
	ErrBlocked                = fmt.Errorf("%w: blocked", ErrSlotUnavailable)
	ErrOverrideUnavailable    = fmt.Errorf("%w: unavailable by schedule override", ErrSlotUnavailable)
	ErrOutsideOperatingWindow = fmt.Errorf("%w: outside operating window", ErrSlotUnavailable)
)

// codes are ordered from the most specific error to the least specific one,
// since sub-kinds of ErrSlotUnavailable also match their parent.
var codes = []struct {
	err  error
	code string
}{
	{ErrAlreadyBooked, "slot_unavailable.already_booked"},
	{ErrBlocked, "slot_unavailable.blocked"},
	{ErrOverrideUnavailable, "slot_unavailable.override_unavailable"},
	{ErrOutsideOperatingWindow, "slot_unavailable.outside_operating_window"},
	{ErrSlotUnavailable, "slot_unavailable"},
	{ErrInvalidInterval, "invalid_interval"},
	{ErrPastDate, "past_date"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrResourceNotFound, "resource_not_found"},
	{ErrReservationNotFound, "reservation_not_found"},
	{ErrBusy, "busy"},
	{ErrStorageFailure, "storage_failure"},
}

const CodeInternal = "internal"

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// IsRejection reports whether err is a business-rule rejection
// rather than an infrastructure fault.
func IsRejection(err error) bool {
	return errOneOf(err,
		ErrInvalidInterval,
		ErrPastDate,
		ErrSlotUnavailable,
		ErrInvalidTransition,
		ErrResourceNotFound,
		ErrReservationNotFound,
	)
}

func errOneOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
