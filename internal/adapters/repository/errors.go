package repository

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrNonPositiveAward  = errors.New("award points must be positive")
	ErrUnsupportedDriver = errors.New("unsupported ledger driver")
	ErrLedger            = errors.New("ledger operation failed")
	ErrMigrate           = errors.New("ledger migration failed")
)
