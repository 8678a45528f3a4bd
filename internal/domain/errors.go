package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrNoState             = errors.New("no persisted state")
	ErrIncompleteMarket    = errors.New("incomplete market detail")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrEventLocked         = errors.New("event locked")
	ErrPositionNotOpen     = errors.New("position not open")
)
