package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// authError covers the error bodies the auth API answers with.
type authError struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Err              string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *authError) toError(status int) *Error {
	be := &Error{Status: status, Code: e.ErrorCode}
	if be.Code == "" {
		be.Code = e.Err
	}
	for _, msg := range []string{e.Msg, e.Message, e.ErrorDescription, e.Err} {
		if msg != "" {
			be.Message = msg
			break
		}
	}
	if be.Message == "" {
		be.Message = http.StatusText(status)
	}
	return be
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

func (t *tokenResponse) session() *Session {
	s := &Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if t.User != nil {
		s.User = *t.User
	}
	return s
}

// signUpResponse is either a session (auto-confirmed signups) or the bare user.
type signUpResponse struct {
	tokenResponse
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (c *RESTClient) authRequest(ctx context.Context) (*resty.Request, *authError) {
	ae := &authError{}
	return c.auth.R().
		SetContext(ctx).
		SetAuthToken(c.anonKey).
		SetError(ae), ae
}

// SignUp implements Authenticator.
func (c *RESTClient) SignUp(ctx context.Context, req SignUpRequest) (*User, error) {
	var out signUpResponse
	r, ae := c.authRequest(ctx)
	resp, err := r.
		SetBody(map[string]interface{}{
			"email":    req.Email,
			"password": req.Password,
			"data": map[string]string{
				"display_name": req.DisplayName,
			},
		}).
		SetResult(&out).
		Post("/signup")
	if err != nil {
		return nil, fmt.Errorf("failed to call sign up: %w", err)
	}
	if resp.IsError() {
		return nil, ae.toError(resp.StatusCode())
	}

	if out.User != nil {
		return out.User, nil
	}
	if out.ID == "" {
		return nil, errors.New("sign up response carried no user")
	}
	return &User{ID: out.ID, Email: out.Email, Role: out.Role}, nil
}

// CurrentSession implements Authenticator with a password grant. An
// unconfirmed email means the session is not active yet.
func (c *RESTClient) CurrentSession(ctx context.Context, email, password string) (*Session, error) {
	var out tokenResponse
	r, ae := c.authRequest(ctx)
	resp, err := r.
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{
			"email":    email,
			"password": password,
		}).
		SetResult(&out).
		Post("/token")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	if resp.IsError() {
		be := ae.toError(resp.StatusCode())
		if be.Code == "email_not_confirmed" || strings.EqualFold(be.Message, "Email not confirmed") {
			c.logger.Debug("session not active yet", zap.String("email", email))
			return nil, nil
		}
		return nil, be
	}
	if out.AccessToken == "" {
		return nil, nil
	}
	return out.session(), nil
}

// DeleteUser implements Authenticator through the admin API.
func (c *RESTClient) DeleteUser(ctx context.Context, userID string) error {
	if c.serviceRoleKey == "" {
		return errors.New("delete user: service role key not configured")
	}
	ae := &authError{}
	resp, err := c.auth.R().
		SetContext(ctx).
		SetHeader("apikey", c.serviceRoleKey).
		SetAuthToken(c.serviceRoleKey).
		SetError(ae).
		Delete("/admin/users/" + userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if resp.IsError() {
		return ae.toError(resp.StatusCode())
	}
	return nil
}
