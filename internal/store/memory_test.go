package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/skill-swap/internal/models"
)

func TestMemoryStore_Users(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	u := &models.User{Name: "Alice", Email: "alice@example.com", IsPublic: true}
	require.NoError(t, m.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	err := m.CreateUser(ctx, &models.User{Name: "Other", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)

	got, err := m.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// callers get copies
	got.SkillsOffered = append(got.SkillsOffered, "mutated")
	again, err := m.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, again.SkillsOffered)

	require.NoError(t, m.SetBanned(ctx, u.ID, true))
	again, err = m.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, again.IsBanned)
	assert.ErrorIs(t, m.SetBanned(ctx, u.ID, true), models.ErrPreconditionFailed, "second ban is a lost toggle")
	require.NoError(t, m.SetBanned(ctx, u.ID, false))

	require.NoError(t, m.SetProfilePhoto(ctx, u.ID, "https://example.com/a.png"))
	require.NoError(t, m.SetRole(ctx, u.ID, models.RoleAdmin))
	again, err = m.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", again.ProfilePhoto)
	assert.Equal(t, models.RoleAdmin, again.Role)
	assert.ErrorIs(t, m.SetProfilePhoto(ctx, "missing", "x"), models.ErrNotFound)

	_, err = m.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, m.SetBanned(ctx, "missing", true), models.ErrNotFound)
	assert.ErrorIs(t, m.DeleteUser(ctx, "missing"), models.ErrNotFound)
}

func TestMemoryStore_ReplaceRatingsIsConditional(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	u := &models.User{Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, m.CreateUser(ctx, u))

	one := []models.Rating{{RaterID: "a", Value: 4}}
	require.NoError(t, m.ReplaceRatings(ctx, u.ID, one, 4, 0))

	err := m.ReplaceRatings(ctx, u.ID, []models.Rating{{RaterID: "b", Value: 2}}, 2, 0)
	assert.ErrorIs(t, err, models.ErrPreconditionFailed, "stale expected count")

	got, err := m.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, one, got.Ratings)
	assert.InDelta(t, 4.0, got.AvgRating, 1e-9)

	assert.ErrorIs(t, m.ReplaceRatings(ctx, "missing", one, 4, 0), models.ErrNotFound)
}

func TestMemoryStore_SwapCAS(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	sw := &models.Swap{RequesterID: "a", ResponderID: "b", Status: models.SwapPending}
	require.NoError(t, m.InsertSwap(ctx, sw))

	require.NoError(t, m.TransitionSwap(ctx, sw.ID, models.SwapPending, models.SwapAccepted))
	assert.ErrorIs(t, m.TransitionSwap(ctx, sw.ID, models.SwapPending, models.SwapRejected), models.ErrPreconditionFailed)
	assert.ErrorIs(t, m.TransitionSwap(ctx, "missing", models.SwapPending, models.SwapRejected), models.ErrNotFound)

	assert.ErrorIs(t, m.DeleteSwapIf(ctx, sw.ID, models.SwapPending), models.ErrPreconditionFailed)
	require.NoError(t, m.DeleteSwapIf(ctx, sw.ID, models.SwapAccepted))
	assert.ErrorIs(t, m.DeleteSwapIf(ctx, sw.ID, models.SwapAccepted), models.ErrNotFound)
}

func TestMemoryStore_SwapListing(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	s1 := &models.Swap{RequesterID: "a", ResponderID: "b", Status: models.SwapPending}
	s2 := &models.Swap{RequesterID: "c", ResponderID: "a", Status: models.SwapPending}
	s3 := &models.Swap{RequesterID: "b", ResponderID: "c", Status: models.SwapPending}
	for _, s := range []*models.Swap{s1, s2, s3} {
		require.NoError(t, m.InsertSwap(ctx, s))
	}

	forA, err := m.ListSwapsByParticipant(ctx, "a")
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, s2.ID, forA[0].ID)
	assert.Equal(t, s1.ID, forA[1].ID)

	all, err := m.ListSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, s3.ID, all[0].ID)

	n, err := m.DeleteSwapsByParticipant(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	all, err = m.ListSwaps(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
