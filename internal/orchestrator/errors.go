package orchestrator

import "errors"

var (
	ErrEmptyInput           = errors.New("empty input")
	ErrLengthExceeded       = errors.New("character limit exceeded")
	ErrNoTargetsSelected    = errors.New("no target languages selected")
	ErrVerificationRequired = errors.New("verification required")
	ErrBusy                 = errors.New("a translation is already in progress")
	ErrSwapAutoSource       = errors.New("cannot swap while the source language is auto-detected")
)
