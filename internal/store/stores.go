// Package store defines the persistence-facing configuration shared by the
// Postgres (internal/store/pg) and embedded sqlite (internal/store/file)
// backends. The domain interfaces themselves (job.Store, authz.*Loader,
// executor.*Store, chatloop.HistoryStore) are defined by their consumer
// packages per Go idiom; this package only holds what both backends need in
// common.
package store

// Config is the subset of application configuration the storage layer needs
// to open its backend.
type Config struct {
	// PostgresDSN selects the managed Postgres backend when non-empty.
	PostgresDSN string
	// SqlitePath selects the embedded standalone backend when PostgresDSN is
	// empty.
	SqlitePath string
}
