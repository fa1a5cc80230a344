package stake

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"stakeLedger/internal/model"
)

// AuthorizationGate decides who may run privileged operations.
type AuthorizationGate interface {
	IsAdmin(identity common.Address) bool
}

// Role names a capability held by accounts.
type Role string

const (
	// RoleDefaultAdmin may grant and revoke roles.
	RoleDefaultAdmin Role = "DEFAULT_ADMIN_ROLE"
	// RoleAdmin may run pool and pause administration.
	RoleAdmin Role = "ADMIN_ROLE"
)

// RoleGate is an in-memory AuthorizationGate with two roles.
type RoleGate struct {
	mu      sync.RWMutex
	members map[Role]map[common.Address]struct{}
}

// NewRoleGate grants both roles to deployer.
func NewRoleGate(deployer common.Address) *RoleGate {
	g := &RoleGate{members: make(map[Role]map[common.Address]struct{})}
	g.grant(RoleDefaultAdmin, deployer)
	g.grant(RoleAdmin, deployer)
	return g
}

func (g *RoleGate) IsAdmin(identity common.Address) bool {
	return g.HasRole(RoleAdmin, identity)
}

func (g *RoleGate) HasRole(role Role, account common.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.members[role][account]
	return ok
}

// Grant gives role to account. caller must hold RoleDefaultAdmin.
func (g *RoleGate) Grant(caller common.Address, role Role, account common.Address) error {
	if !g.HasRole(RoleDefaultAdmin, caller) {
		return fmt.Errorf("%w: %s cannot grant %s", ErrUnauthorized, caller.Hex(), role)
	}
	g.grant(role, account)
	return nil
}

// Revoke removes role from account. caller must hold RoleDefaultAdmin.
func (g *RoleGate) Revoke(caller common.Address, role Role, account common.Address) error {
	if !g.HasRole(RoleDefaultAdmin, caller) {
		return fmt.Errorf("%w: %s cannot revoke %s", ErrUnauthorized, caller.Hex(), role)
	}
	g.mu.Lock()
	delete(g.members[role], account)
	g.mu.Unlock()
	return nil
}

func (g *RoleGate) grant(role Role, account common.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.members[role] == nil {
		g.members[role] = make(map[common.Address]struct{})
	}
	g.members[role][account] = struct{}{}
}

// Snapshot lists memberships ordered by role then account.
func (g *RoleGate) Snapshot() []model.RoleRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()

	roles := make([]Role, 0, len(g.members))
	for role := range g.members {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	records := make([]model.RoleRecord, 0)
	for _, role := range roles {
		accounts := make([]common.Address, 0, len(g.members[role]))
		for account := range g.members[role] {
			accounts = append(accounts, account)
		}
		sort.Slice(accounts, func(i, j int) bool { return bytes.Compare(accounts[i].Bytes(), accounts[j].Bytes()) < 0 })
		for _, account := range accounts {
			records = append(records, model.RoleRecord{Role: string(role), Account: account.Hex()})
		}
	}
	return records
}

// RestoreRoleGate rebuilds a gate from snapshot records.
func RestoreRoleGate(records []model.RoleRecord) (*RoleGate, error) {
	g := &RoleGate{members: make(map[Role]map[common.Address]struct{})}
	for _, rec := range records {
		if !common.IsHexAddress(rec.Account) {
			return nil, fmt.Errorf("invalid role account: %s", rec.Account)
		}
		g.grant(Role(rec.Role), common.HexToAddress(rec.Account))
	}
	return g, nil
}
