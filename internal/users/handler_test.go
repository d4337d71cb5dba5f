package users

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/skill-swap/internal/auth"
	"github.com/ayush/skill-swap/internal/models"
)

func withUser(r *http.Request, id string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: id, Role: models.RoleUser}))
}

func multipartPhoto(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "me.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandler_Profile(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	rec := httptest.NewRecorder()
	h.Profile(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/users/profile", nil), f.alice.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "PasswordHash")

	rec = httptest.NewRecorder()
	h.UpdateProfile(rec, withUser(httptest.NewRequest(http.MethodPut, "/api/users/profile",
		strings.NewReader(`{"availability":"Someday"}`)), f.alice.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.UpdateProfile(rec, withUser(httptest.NewRequest(http.MethodPut, "/api/users/profile",
		strings.NewReader(`{"isPublic":false,"skillsWanted":["Piano"]}`)), f.alice.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	var u models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.False(t, u.IsPublic)
	assert.Equal(t, []string{"Piano"}, u.SkillsWanted)

	rec = httptest.NewRecorder()
	h.Profile(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/users/profile", nil), "ghost"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_PhotoRoundTrip(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	r := chi.NewRouter()
	r.Get("/api/users/{id}/photo", h.Photo)

	data := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 32)...)
	body, ct := multipartPhoto(t, "photo", data)
	req := withUser(httptest.NewRequest(http.MethodPut, "/api/users/profile/photo", body), f.alice.ID)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.UploadPhoto(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+f.alice.ID+"/photo", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, data, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+f.bob.ID+"/photo", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_UploadPhotoErrors(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	body, ct := multipartPhoto(t, "avatar", pngHeader)
	req := withUser(httptest.NewRequest(http.MethodPut, "/api/users/profile/photo", body), f.alice.ID)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.UploadPhoto(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartPhoto(t, "photo", bytes.Repeat([]byte{0xff}, MaxPhotoBytes+formOverhead))
	req = withUser(httptest.NewRequest(http.MethodPut, "/api/users/profile/photo", body), f.alice.ID)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	h.UploadPhoto(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.UploadPhoto(rec, httptest.NewRequest(http.MethodPut, "/api/users/profile/photo", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_List(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	NewHandler(f.svc).List(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list []models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].Name)
}

func TestHandler_UpdateProfileAcceptsEchoedProfile(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	rec := httptest.NewRecorder()
	h.Profile(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/users/profile", nil), f.alice.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var profile map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	profile["location"] = "Lisbon"
	profile["role"] = "admin"
	echoed, err := json.Marshal(profile)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	h.UpdateProfile(rec, withUser(httptest.NewRequest(http.MethodPut, "/api/users/profile",
		bytes.NewReader(echoed)), f.alice.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := f.store.GetUserByID(context.Background(), f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", stored.Location)
	assert.Equal(t, models.RoleUser, stored.Role, "read-only fields are ignored")
	assert.Equal(t, []string{"Go"}, stored.SkillsOffered)
}

func TestHandler_UpdateProfilePhotoURL(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	put := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.UpdateProfile(rec, withUser(httptest.NewRequest(http.MethodPut, "/api/users/profile",
			strings.NewReader(body)), f.alice.ID))
		return rec
	}

	rec := put(`{"profilePhoto":"https://example.com/me.png"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var u models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "https://example.com/me.png", u.ProfilePhoto)

	rec = put(`{"profilePhoto":"javascript:alert(1)"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Profile photo must be an http(s) URL.")

	stored, err := f.store.GetUserByID(context.Background(), f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/me.png", stored.ProfilePhoto)
}
