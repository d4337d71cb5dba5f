package users

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/skill-swap/internal/auth"
	"github.com/ayush/skill-swap/internal/models"
	"github.com/ayush/skill-swap/internal/store"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type photoStub struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newPhotoStub() *photoStub {
	return &photoStub{objects: map[string][]byte{}, types: map[string]string{}}
}

func (p *photoStub) PutPhoto(_ context.Context, userID string, data []byte, contentType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[userID] = data
	p.types[userID] = contentType
	return nil
}

func (p *photoStub) GetPhoto(_ context.Context, userID string) ([]byte, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.objects[userID]
	if !ok {
		return nil, "", models.ErrNotFound
	}
	return data, p.types[userID], nil
}

func (p *photoStub) RemovePhoto(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, userID)
	return nil
}

type fixture struct {
	svc      *Service
	store    *store.MemoryStore
	photos   *photoStub
	versions *auth.TokenVersions
	admin    *models.User
	alice    *models.User
	bob      *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mem := store.NewMemoryStore()
	f := &fixture{
		store:    mem,
		photos:   newPhotoStub(),
		versions: auth.NewTokenVersions(rdb),
		admin:    &models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin, IsPublic: false},
		alice:    &models.User{Name: "Alice", Email: "alice@example.com", IsPublic: true, SkillsOffered: []string{"Go"}},
		bob:      &models.User{Name: "Bob", Email: "bob@example.com", IsPublic: false},
	}
	for _, u := range []*models.User{f.admin, f.alice, f.bob} {
		require.NoError(t, mem.CreateUser(ctx, u))
	}
	f.svc = NewService(mem, f.photos, f.versions)
	return f
}

func strPtr(s string) *string { return &s }

func TestListPublic(t *testing.T) {
	f := newFixture(t)
	users, err := f.svc.ListPublic(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, f.alice.ID, users[0].ID)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("only provided fields change", func(t *testing.T) {
		f := newFixture(t)
		skills := []string{" Rust ", "Rust", "", "Go"}
		avail := models.AvailabilityEvenings
		u, err := f.svc.UpdateProfile(ctx, f.alice.ID, models.UpdateProfileRequest{
			Location:      strPtr("Pune"),
			SkillsOffered: &skills,
			Availability:  &avail,
		})
		require.NoError(t, err)
		assert.Equal(t, "Alice", u.Name)
		assert.Equal(t, "Pune", u.Location)
		assert.Equal(t, []string{"Rust", "Go"}, u.SkillsOffered)

		stored, err := f.store.GetUserByID(ctx, f.alice.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AvailabilityEvenings, stored.Availability)
		assert.True(t, stored.IsPublic)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpdateProfile(ctx, f.alice.ID, models.UpdateProfileRequest{Name: strPtr("  ")})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpdateProfile(ctx, "ghost", models.UpdateProfileRequest{})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestUploadPhoto(t *testing.T) {
	ctx := context.Background()

	t.Run("png is stored and linked", func(t *testing.T) {
		f := newFixture(t)
		data := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
		u, err := f.svc.UploadPhoto(ctx, f.alice.ID, data)
		require.NoError(t, err)
		assert.Equal(t, PhotoURL(f.alice.ID), u.ProfilePhoto)

		got, ct, err := f.svc.Photo(ctx, f.alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "image/png", ct)
		assert.Equal(t, data, got)
	})

	t.Run("not an image", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UploadPhoto(ctx, f.alice.ID, []byte("<html><body>hi</body></html>"))
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("too large", func(t *testing.T) {
		f := newFixture(t)
		data := append(append([]byte{}, pngHeader...), make([]byte, MaxPhotoBytes)...)
		_, err := f.svc.UploadPhoto(ctx, f.alice.ID, data)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("uploads disabled", func(t *testing.T) {
		f := newFixture(t)
		svc := NewService(f.store, nil, f.versions)
		_, err := svc.UploadPhoto(ctx, f.alice.ID, pngHeader)
		assert.ErrorIs(t, err, models.ErrInvalidState)
		_, _, err = svc.Photo(ctx, f.alice.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestToggleBan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	banned, err := f.svc.ToggleBan(ctx, f.admin.ID, f.alice.ID)
	require.NoError(t, err)
	assert.True(t, banned)
	v, err := f.versions.Current(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v, "ban revokes live tokens")

	banned, err = f.svc.ToggleBan(ctx, f.admin.ID, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, banned)
	v, err = f.versions.Current(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = f.svc.ToggleBan(ctx, f.admin.ID, f.admin.ID)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.ToggleBan(ctx, f.admin.ID, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// staleReads serves GetUserByID from a snapshot taken before another writer
// got in.
type staleReads struct {
	*store.MemoryStore
	snapshot *models.User
}

func (s staleReads) GetUserByID(context.Context, string) (*models.User, error) {
	cp := *s.snapshot
	return &cp, nil
}

func TestToggleBan_LosesRaceToConcurrentToggle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	before, err := f.store.GetUserByID(ctx, f.alice.ID)
	require.NoError(t, err)
	_, err = f.svc.ToggleBan(ctx, f.admin.ID, f.alice.ID)
	require.NoError(t, err)

	late := NewService(staleReads{MemoryStore: f.store, snapshot: before}, nil, f.versions)
	_, err = late.ToggleBan(ctx, f.admin.ID, f.alice.ID)
	assert.ErrorIs(t, err, models.ErrPreconditionFailed)

	stored, err := f.store.GetUserByID(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBanned, "only the first toggle applies")
}

// editingPhotos runs edit while the upload is in flight.
type editingPhotos struct {
	*photoStub
	edit func()
}

func (p editingPhotos) PutPhoto(ctx context.Context, userID string, data []byte, contentType string) error {
	p.edit()
	return p.photoStub.PutPhoto(ctx, userID, data, contentType)
}

func TestUploadPhoto_KeepsConcurrentProfileEdit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	photos := editingPhotos{photoStub: f.photos, edit: func() {
		_, err := f.svc.UpdateProfile(ctx, f.alice.ID, models.UpdateProfileRequest{Location: strPtr("Berlin")})
		require.NoError(t, err)
	}}
	svc := NewService(f.store, photos, f.versions)

	u, err := svc.UploadPhoto(ctx, f.alice.ID, pngHeader)
	require.NoError(t, err)
	assert.Equal(t, PhotoURL(f.alice.ID), u.ProfilePhoto)
	assert.Equal(t, "Berlin", u.Location)

	stored, err := f.store.GetUserByID(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Berlin", stored.Location)
	assert.Equal(t, PhotoURL(f.alice.ID), stored.ProfilePhoto)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.InsertSwap(ctx, &models.Swap{RequesterID: f.alice.ID, ResponderID: f.bob.ID, Status: models.SwapPending}))
	require.NoError(t, f.store.InsertSwap(ctx, &models.Swap{RequesterID: f.bob.ID, ResponderID: f.alice.ID, Status: models.SwapAccepted}))
	require.NoError(t, f.store.InsertSwap(ctx, &models.Swap{RequesterID: f.bob.ID, ResponderID: f.admin.ID, Status: models.SwapPending}))
	require.NoError(t, f.photos.PutPhoto(ctx, f.alice.ID, pngHeader, "image/png"))
	_, err := f.versions.Bump(ctx, f.alice.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.admin.ID, f.alice.ID))

	_, err = f.store.GetUserByID(ctx, f.alice.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	swaps, err := f.store.ListSwaps(ctx)
	require.NoError(t, err)
	assert.Len(t, swaps, 1, "only swaps without alice remain")
	_, _, err = f.photos.GetPhoto(ctx, f.alice.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	v, err := f.versions.Current(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Zero(t, v)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.admin.ID, f.admin.ID), models.ErrValidation)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.admin.ID, f.alice.ID), models.ErrNotFound)
}
