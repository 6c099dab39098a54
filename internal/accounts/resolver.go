package accounts

import (
	"go.uber.org/zap"
)

// Resolver extracts field values from the facts of one filing. It holds only
// immutable configuration and is safe for concurrent use.
type Resolver struct {
	tx  Taxonomy
	log *zap.Logger
}

// NewResolver returns a resolver bound to tx.
func NewResolver(tx Taxonomy) *Resolver {
	return &Resolver{
		tx:  tx,
		log: zap.L().With(zap.String("component", "accounts.resolver")),
	}
}

// Taxonomy returns the resolver's taxonomy.
func (r *Resolver) Taxonomy() Taxonomy { return r.tx }

func zapConcept(c string) zap.Field { return zap.String("concept", c) }

func zapReason(err error) zap.Field { return zap.String("reason", err.Error()) }
