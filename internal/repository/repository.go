// Package repository provides data access for the research swarm
// service. It follows the repository pattern: interfaces defined here,
// PostgreSQL implementations alongside, domain errors on the way out.
//
// All implementations are safe for concurrent use; the underlying
// pgxpool handles connection pooling. Methods return domain-specific
// errors (domain.ErrNotFound, domain.ErrInvalidTransition) wrapped with
// context via fmt.Errorf and %w.
package repository

import (
	"github.com/helixir/research-swarm-service/internal/database"
)

// DBTX is the database interface satisfied by both *pgxpool.Pool and
// pgx.Tx, so repositories work inside or outside a transaction.
type DBTX = database.DBTX

// Pagination defaults and limits for list queries.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults clamps limit to [1, maxFilterLimit] and
// ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
