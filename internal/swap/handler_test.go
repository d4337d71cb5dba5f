package swap

import (
	"encoding/json"
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

// asUser stands in for the bearer middleware: it trusts an X-User header.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := r.Header.Get("X-User"); uid != "" {
			r = r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: uid, Role: models.RoleUser}))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/swaps", func(r chi.Router) {
		r.Use(asUser)
		NewHandler(e.svc).Routes(r)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, user, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHandler_Lifecycle(t *testing.T) {
	e := newEnv(t, true)
	h := newTestRouter(e)

	rec, body := do(t, h, http.MethodPost, "/api/swaps", e.a.ID,
		`{"responderId":"`+e.b.ID+`","requesterSkills":["Go"],"responderSkills":["French"],"message":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "pending", body["status"])
	id := body["id"].(string)

	rec, body = do(t, h, http.MethodPut, "/api/swaps/"+id, e.a.ID, `{"status":"accepted"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, body = do(t, h, http.MethodPut, "/api/swaps/"+id, e.b.ID, `{"status":"accepted"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "accepted", body["status"])

	rec, body = do(t, h, http.MethodDelete, "/api/swaps/"+id, e.a.ID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot delete a non-pending request.", body["message"])

	rec, body = do(t, h, http.MethodPost, "/api/swaps/"+id+"/rate", e.a.ID, `{"rating":5,"feedback":"great"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rating submitted and swap completed.", body["message"])

	rec, _ = do(t, h, http.MethodPost, "/api/swaps/"+id+"/rate", e.b.ID, `{"rating":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/swaps", e.b.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []models.SwapView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, models.SwapCompleted, views[0].Status)
	assert.Equal(t, "Alice", views[0].Requester.Name)
}

func TestHandler_Errors(t *testing.T) {
	e := newEnv(t, true)
	h := newTestRouter(e)

	rec, body := do(t, h, http.MethodPost, "/api/swaps", e.a.ID,
		`{"responderId":"`+e.b.ID+`","requesterSkills":[],"responderSkills":["French"],"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You must offer at least one skill.", body["message"])

	rec, body = do(t, h, http.MethodDelete, "/api/swaps/missing", e.a.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Swap not found.", body["message"])

	rec, _ = do(t, h, http.MethodPost, "/api/swaps", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/swaps", e.a.ID, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sw := e.request(t)
	rec, body = do(t, h, http.MethodDelete, "/api/swaps/"+sw.ID, e.a.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Swap request removed", body["message"])
}
