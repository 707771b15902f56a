package domain

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrAuctionNotLive    = errors.New("auction is not live")
	ErrBidTooLow         = errors.New("bid too low")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnavailable       = errors.New("service unavailable")

	// ErrNotificationDispatch never reaches the HTTP request that triggered
	// the notification. Background jobs use it to retry later.
	ErrNotificationDispatch = errors.New("notification dispatch failed")
)
