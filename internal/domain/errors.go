package domain

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderAlreadyExists  = errors.New("order already exists")
	ErrOrderAlreadyPaid    = errors.New("order already paid")
	ErrNotificationInvalid = errors.New("notification invalid")
)
