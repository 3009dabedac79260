package service

import (
	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// checkOwner fails with ErrCrossTenantAccess when an object loaded for
// tenant belongs to someone else. Storage lookups are already keyed by
// tenant, so reaching the failing branch means a lookup was mis-keyed.
func checkOwner(tenant, owner domain.TenantID, kind string, id uuid.UUID) error {
	if owner == tenant {
		return nil
	}
	log.Warn().
		Str("tenant", tenant.String()).
		Str("kind", kind).
		Str("id", id.String()).
		Msg("Cross-tenant access blocked")
	return domain.ErrCrossTenantAccess
}
