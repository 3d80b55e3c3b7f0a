package auth

import (
	"context"
	"strings"
)

// Capabilities checked by the DataPuur operations.
const (
	CapabilityIngest = "datapuur:ingest"
	CapabilityRead   = "datapuur:read"
)

// Checker decides whether identity may use capability.
type Checker interface {
	CheckCapability(ctx context.Context, identity, capability string) bool
}

// DefaultGrants maps roles to the capabilities they hold.
var DefaultGrants = map[string][]string{
	"admin":      {CapabilityIngest, CapabilityRead},
	"researcher": {CapabilityIngest, CapabilityRead},
	"viewer":     {CapabilityRead},
}

// RoleChecker grants capabilities from the roles of the Principal in the
// context. The identity must match the principal's subject.
type RoleChecker struct {
	Grants map[string][]string
}

func (c RoleChecker) CheckCapability(ctx context.Context, identity, capability string) bool {
	p := FromContext(ctx)
	if identity != "" && identity != p.Subject {
		return false
	}
	grants := c.Grants
	if grants == nil {
		grants = DefaultGrants
	}
	for _, role := range p.Roles {
		for _, granted := range grants[strings.ToLower(role)] {
			if granted == capability {
				return true
			}
		}
	}
	return false
}

// AllowAll grants every capability. Used by the CLI, which runs with the
// operator's own authority.
type AllowAll struct{}

func (AllowAll) CheckCapability(context.Context, string, string) bool { return true }
