package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/messfeedback/go-auth"
	"github.com/messfeedback/go-auth/repository"
)

func TestMemoryAccounts_FindAndLockout(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryAccounts()

	account := store.Put(&auth.Account{
		Identifier: "s7007",
		Role:       auth.RoleStudent,
		IsActive:   true,
	})
	require.NotEqual(t, uuid.Nil, account.ID)

	found, err := store.FindAccount(ctx, "s7007", auth.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = store.FindAccount(ctx, "s7007", auth.RoleAdmin)
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	now := time.Now()
	policy := auth.LockoutPolicy{MaxAttempts: 2, Window: time.Minute}

	state, err := store.UpdateLockoutState(ctx, account.ID.String(), policy.FailureUpdate(now))
	require.NoError(t, err)
	assert.Nil(t, state.LockedUntil)

	state, err = store.UpdateLockoutState(ctx, account.ID.String(), policy.FailureUpdate(now))
	require.NoError(t, err)
	require.NotNil(t, state.LockedUntil)
	assert.Equal(t, now.Add(time.Minute), *state.LockedUntil)

	require.NoError(t, store.ResetLockoutState(ctx, account.ID.String(), now))
	found, err = store.FindAccountByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Zero(t, found.FailedAttemptCount)
	assert.Nil(t, found.LockedUntil)

	require.NoError(t, store.SetActive(ctx, account.ID.String(), false))
	_, err = store.FindAccount(ctx, "s7007", auth.RoleStudent)
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestMemoryAccounts_ConcurrentFailures(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryAccounts()
	account := store.Put(&auth.Account{Identifier: "s8008", Role: auth.RoleStudent, IsActive: true})
	update := auth.DefaultLockoutPolicy().FailureUpdate(time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.UpdateLockoutState(ctx, account.ID.String(), update)
		}()
	}
	wg.Wait()

	found, err := store.FindAccountByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 20, found.FailedAttemptCount)
	assert.NotNil(t, found.LockedUntil)
}

func TestMemoryAccounts_IdentifierIsUnique(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryAccounts()

	first := store.Put(&auth.Account{Identifier: "s9009", Role: auth.RoleStudent, IsActive: true})
	second := store.Put(&auth.Account{Identifier: "s9009", Role: auth.RoleAdmin, IsActive: true})
	require.NotEqual(t, first.ID, second.ID)

	for i := 0; i < 10; i++ {
		found, err := store.FindAccount(ctx, "s9009", "")
		require.NoError(t, err)
		assert.Equal(t, second.ID, found.ID)
	}

	_, err := store.FindAccount(ctx, "s9009", auth.RoleStudent)
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	_, err = store.FindAccountByID(ctx, first.ID.String())
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}
