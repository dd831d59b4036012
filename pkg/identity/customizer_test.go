package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/secgate/secgate/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCustomizer struct {
	priority int
	order    *[]string
	name     string
	err      error
}

func (s *stubCustomizer) Priority() int { return s.priority }

func (s *stubCustomizer) Apply(_ context.Context, _ *ResolvedUser) error {
	*s.order = append(*s.order, s.name)
	return s.err
}

func TestCustomizerChainOrder(t *testing.T) {
	var order []string
	chain := NewCustomizerChain(
		&stubCustomizer{priority: 20, order: &order, name: "second"},
		&stubCustomizer{priority: 10, order: &order, name: "first"},
		&stubCustomizer{priority: 20, order: &order, name: "third"},
	)

	require.NoError(t, chain.Apply(context.Background(), &ResolvedUser{}))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestCustomizerChainErrorStops(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	chain := NewCustomizerChain(
		&stubCustomizer{priority: 10, order: &order, name: "first", err: boom},
		&stubCustomizer{priority: 20, order: &order, name: "second"},
	)

	assert.ErrorIs(t, chain.Apply(context.Background(), &ResolvedUser{}), boom)
	assert.Equal(t, []string{"first"}, order)
}

func TestRolesCustomizerIdempotent(t *testing.T) {
	mapper, err := NewRoleMapper(map[string][]string{
		"ROLE_GN_*": {"ROLE_USER"},
	})
	require.NoError(t, err)

	customizer := NewRolesCustomizer(mapper)
	user := &ResolvedUser{User: User{Roles: []string{"ROLE_GN_EDITOR"}}}

	require.NoError(t, customizer.Apply(context.Background(), user))
	assert.Equal(t, []string{"ROLE_GN_EDITOR", "ROLE_USER"}, user.User.Roles)

	// applying again adds nothing
	require.NoError(t, customizer.Apply(context.Background(), user))
	assert.Equal(t, []string{"ROLE_GN_EDITOR", "ROLE_USER"}, user.User.Roles)
}

func TestProvisioningCustomizer(t *testing.T) {
	provisioner := newFakeLookup()
	customizer := NewProvisioningCustomizer(provisioner)
	ctx := context.Background()

	// external user without a directory entry is created
	user := &ResolvedUser{User: User{Username: "newcomer", IsExternalAuth: true}}
	require.NoError(t, customizer.Apply(ctx, user))
	assert.Equal(t, "generated-1", user.User.ID)
	require.Len(t, provisioner.created, 1)

	// a user with an id is left alone
	existing := &ResolvedUser{User: User{ID: "42", Username: "alice", IsExternalAuth: true}}
	require.NoError(t, customizer.Apply(ctx, existing))
	assert.Equal(t, "42", existing.User.ID)
	assert.Len(t, provisioner.created, 1)

	// a non-external user is never provisioned
	internal := &ResolvedUser{User: User{Username: "bob"}}
	require.NoError(t, customizer.Apply(ctx, internal))
	assert.Empty(t, internal.User.ID)
	assert.Len(t, provisioner.created, 1)
}

func TestProvisioningCustomizerFailure(t *testing.T) {
	provisioner := newFakeLookup()
	provisioner.failWith = errors.New("directory rejected the entry")
	customizer := NewProvisioningCustomizer(provisioner)

	user := &ResolvedUser{User: User{Username: "newcomer", IsExternalAuth: true}}
	err := customizer.Apply(context.Background(), user)
	assert.ErrorIs(t, err, apperrors.ErrAccountProvisioning)
}
