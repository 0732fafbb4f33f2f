package domain

import "errors"

var (
	// ErrHistoryUnavailable means every history attempt for a symbol failed.
	ErrHistoryUnavailable = errors.New("price history unavailable")
	// ErrIndexNotReady means the regulation index has not been built yet.
	ErrIndexNotReady = errors.New("regulation index not ready")
	// ErrStoreDisabled is returned by read endpoints whose backing store is off.
	ErrStoreDisabled = errors.New("store disabled")
)

// ErrRebuildInProgress means another rebuild holds the index lock.
var ErrRebuildInProgress = errors.New("regulation index rebuild already in progress")
