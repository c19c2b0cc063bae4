package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUp_SendsDisplayName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		var body struct {
			Email    string            `json:"email"`
			Password string            `json:"password"`
			Data     map[string]string `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "somchai@example.com", body.Email)
		assert.Equal(t, "สมชาย ใจดี", body.Data["display_name"])

		writeJSON(w, http.StatusOK, `{"id":"u1","email":"somchai@example.com","role":"authenticated"}`)
	})

	user, err := client.SignUp(context.Background(), SignUpRequest{
		Email:       "somchai@example.com",
		Password:    "secret1",
		DisplayName: "สมชาย ใจดี",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestSignUp_AutoConfirmedReturnsSessionUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"access_token":"at","token_type":"bearer","expires_in":3600,"refresh_token":"rt","user":{"id":"u2","email":"a@b.co"}}`)
	})

	user, err := client.SignUp(context.Background(), SignUpRequest{Email: "a@b.co", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "u2", user.ID)
}

func TestSignUp_RejectionCarriesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`)
	})

	_, err := client.SignUp(context.Background(), SignUpRequest{Email: "a@b.co", Password: "secret1"})
	be, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "user_already_exists", be.Code)
	assert.Equal(t, "User already registered", be.Message)
}

func TestCurrentSession(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/token", r.URL.Path)
			assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
			writeJSON(w, http.StatusOK, `{"access_token":"at","token_type":"bearer","expires_at":1893456000,"refresh_token":"rt","user":{"id":"u1","email":"a@b.co"}}`)
		})

		s, err := client.CurrentSession(context.Background(), "a@b.co", "secret1")
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "at", s.AccessToken)
		assert.Equal(t, "u1", s.User.ID)
		assert.Equal(t, int64(1893456000), s.ExpiresAt.Unix())
	})

	t.Run("email not confirmed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"code":400,"error_code":"email_not_confirmed","msg":"Email not confirmed"}`)
		})

		s, err := client.CurrentSession(context.Background(), "a@b.co", "secret1")
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
		})

		_, err := client.CurrentSession(context.Background(), "a@b.co", "wrong")
		be, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, "invalid_grant", be.Code)
		assert.Equal(t, "Invalid login credentials", be.Message)
	})
}

func TestDeleteUser_UsesServiceRoleKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/auth/v1/admin/users/u1", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{}`)
	})

	require.NoError(t, client.DeleteUser(context.Background(), "u1"))
}
