package store

import "github.com/pedrosland/textdeck/internal/record"

// The store is the concrete record source the sync engine refreshes from.
var _ record.Source = (*DB)(nil)
