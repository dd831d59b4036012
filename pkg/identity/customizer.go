package identity

import (
	"context"
	"errors"
	"sort"

	"github.com/secgate/secgate/pkg/apperrors"
)

// Customizer post-processes a mapped user. Customizers run in ascending
// priority order after the mapper chain succeeded; they may mutate the
// user (roles in particular) but never replace it.
type Customizer interface {
	Priority() int
	Apply(ctx context.Context, user *ResolvedUser) error
}

// CustomizerChain applies all customizers in order, ties broken by
// registration order.
type CustomizerChain struct {
	customizers []Customizer
}

func NewCustomizerChain(customizers ...Customizer) *CustomizerChain {
	chain := &CustomizerChain{customizers: make([]Customizer, len(customizers))}
	copy(chain.customizers, customizers)
	sort.SliceStable(chain.customizers, func(i, j int) bool {
		return chain.customizers[i].Priority() < chain.customizers[j].Priority()
	})
	return chain
}

func (c *CustomizerChain) Apply(ctx context.Context, user *ResolvedUser) error {
	for _, customizer := range c.customizers {
		if err := customizer.Apply(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

// RolesCustomizer expands the user's role set through the role mapper.
// It only ever adds roles: every role the user already held survives,
// and applying it twice yields the same set as applying it once.
type RolesCustomizer struct {
	mapper *RoleMapper
}

func NewRolesCustomizer(mapper *RoleMapper) *RolesCustomizer {
	return &RolesCustomizer{mapper: mapper}
}

func (c *RolesCustomizer) Priority() int { return 10 }

func (c *RolesCustomizer) Apply(_ context.Context, user *ResolvedUser) error {
	extras := c.mapper.ExtraRoles(user.User.Roles)
	user.User.Roles = unionRoles(user.User.Roles, extras)
	return nil
}

// ProvisioningCustomizer creates a directory account for externally
// authenticated users that have none yet, so follow-up requests resolve
// them like any directory user.
type ProvisioningCustomizer struct {
	provisioner AccountProvisioner
}

func NewProvisioningCustomizer(provisioner AccountProvisioner) *ProvisioningCustomizer {
	return &ProvisioningCustomizer{provisioner: provisioner}
}

func (c *ProvisioningCustomizer) Priority() int { return 20 }

func (c *ProvisioningCustomizer) Apply(ctx context.Context, user *ResolvedUser) error {
	if user.User.ID != "" || !user.User.IsExternalAuth {
		return nil
	}

	created, err := c.provisioner.Create(ctx, &user.User)
	if err != nil {
		return errors.Join(apperrors.ErrAccountProvisioning, err)
	}

	user.User.ID = created.ID
	if created.LastUpdated != "" {
		user.User.LastUpdated = created.LastUpdated
	}
	return nil
}
