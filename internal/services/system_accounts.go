package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/peer-network/peer-backend-sub001/internal/config"
)

// SystemRole names a reserved wallet.
type SystemRole string

const (
	RolePool        SystemRole = "pool"
	RolePeer        SystemRole = "peer"
	RoleBurn        SystemRole = "burn"
	RoleBridgePool  SystemRole = "bridge_pool"
	RoleInviterBank SystemRole = "inviter_bank"
	RoleMint        SystemRole = "mint"
)

// SystemAccounts resolves role to wallet id mappings once at startup. The
// transfer engine consults it to reject direct deposits into reserved
// wallets.
type SystemAccounts struct {
	byRole map[SystemRole]string
	byID   map[string]SystemRole
}

// NewSystemAccounts validates the configured ids (UUID syntax, pairwise
// distinct, none missing) and builds the registry.
func NewSystemAccounts(ids config.SystemAccountIDs) (*SystemAccounts, error) {
	entries := map[SystemRole]string{
		RolePool:        ids.Pool,
		RolePeer:        ids.Peer,
		RoleBurn:        ids.Burn,
		RoleBridgePool:  ids.BridgePool,
		RoleInviterBank: ids.InviterBank,
		RoleMint:        ids.Mint,
	}

	reg := &SystemAccounts{
		byRole: make(map[SystemRole]string, len(entries)),
		byID:   make(map[string]SystemRole, len(entries)),
	}

	for role, id := range entries {
		if id == "" {
			return nil, fmt.Errorf("system account %s is not configured", role)
		}
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("system account %s has invalid id %q: %w", role, id, err)
		}
		if other, dup := reg.byID[id]; dup {
			return nil, fmt.Errorf("system accounts %s and %s share id %s", other, role, id)
		}
		reg.byRole[role] = id
		reg.byID[id] = role
	}

	return reg, nil
}

// IsSystemAccount reports whether id names a reserved wallet.
func (r *SystemAccounts) IsSystemAccount(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Account returns the wallet id for a role.
func (r *SystemAccounts) Account(role SystemRole) string {
	return r.byRole[role]
}
