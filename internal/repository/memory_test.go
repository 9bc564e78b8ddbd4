package repository

import (
	"context"
	"testing"
	"time"

	"tablebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository(time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &models.GuestState{Token: "tok-1", CurrentStep: models.StepSelectTable}
		err := repo.SetState(ctx, state)
		require.NoError(t, err)

		got, err := repo.GetState(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, state, got)
	})

	t.Run("ClearState", func(t *testing.T) {
		err := repo.ClearState(ctx, "tok-1")
		require.NoError(t, err)
		got, _ := repo.GetState(ctx, "tok-1")
		assert.Nil(t, got)
	})

	t.Run("SessionExpiry", func(t *testing.T) {
		shortRepo := NewMemoryStateRepository(50 * time.Millisecond)
		require.NoError(t, shortRepo.SetState(ctx, &models.GuestState{Token: "tok-ttl"}))

		time.Sleep(60 * time.Millisecond)

		got, err := shortRepo.GetState(ctx, "tok-ttl")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		token := "tok-2"
		allowed, _ := repo.CheckRateLimit(ctx, token, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, token, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, token, 2, time.Second)
		assert.False(t, allowed)

		// Wait for expiry
		time.Sleep(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, token, 2, time.Second)
		assert.True(t, allowed)
	})
}
