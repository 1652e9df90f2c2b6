package domain

import "errors"

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNotConnected   = errors.New("no identity connected")
)
