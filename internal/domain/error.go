package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Subscription ledger
	ErrUserNotFound         = errors.New("user not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrActiveSubscription   = errors.New("user already has an active subscription")
	ErrUnknownPlan          = errors.New("unknown plan")
	ErrPaymentConsumed      = errors.New("payment already used by a closed subscription")

	// Jobs and integrations
	ErrAlreadyRunning = errors.New("job already running")
	ErrLockNotHeld    = errors.New("lock not held")
	ErrNotConfigured  = errors.New("integration not configured")
)
