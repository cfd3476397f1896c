package api

import (
	"context"
	"errors"
	"net/http"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/ports"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access  string             `json:"access"`
	Refresh string             `json:"refresh"`
	User    domain.UserProfile `json:"user"`
}

func (r tokenResponse) session() (domain.AuthSession, error) {
	if r.Access == "" {
		return domain.AuthSession{}, errors.New("backend returned no access token")
	}
	return domain.AuthSession{AccessToken: r.Access, RefreshToken: r.Refresh, User: r.User}, nil
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, email, password string) (domain.AuthSession, error) {
	req, err := jsonRequest(http.MethodPost, "/api/login/", loginRequest{Email: email, Password: password}, false)
	if err != nil {
		return domain.AuthSession{}, err
	}
	var resp tokenResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return domain.AuthSession{}, err
	}
	return resp.session()
}

type registerRequest struct {
	Username          string `json:"username"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	PreferredLanguage string `json:"preferred_language"`
}

// Register creates an account. The caller logs in afterwards.
func (c *Client) Register(ctx context.Context, signup ports.SignupRequest) error {
	req, err := jsonRequest(http.MethodPost, "/api/register/", registerRequest{
		Username:          signup.Username,
		Email:             signup.Email,
		Password:          signup.Password,
		PreferredLanguage: signup.PreferredLanguage,
	}, false)
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

type googleLoginResponse struct {
	tokenResponse
	IsNewUser bool                       `json:"is_new_user"`
	UserData  *domain.GoogleSignupTicket `json:"user_data"`
}

// LoginGoogle submits a Google access token. First-time users get a signup
// ticket instead of tokens.
func (c *Client) LoginGoogle(ctx context.Context, providerToken string) (ports.GoogleLoginResult, error) {
	req, err := jsonRequest(http.MethodPost, "/api/login/google/", googleLoginRequest{Token: providerToken}, false)
	if err != nil {
		return ports.GoogleLoginResult{}, err
	}
	var resp googleLoginResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return ports.GoogleLoginResult{}, err
	}

	if resp.IsNewUser {
		if resp.UserData == nil || resp.UserData.TempToken == "" {
			return ports.GoogleLoginResult{}, errors.New("backend reported a new Google user without a signup token")
		}
		return ports.GoogleLoginResult{Ticket: resp.UserData}, nil
	}

	session, err := resp.session()
	if err != nil {
		return ports.GoogleLoginResult{}, err
	}
	return ports.GoogleLoginResult{Session: session}, nil
}

type completeGoogleRequest struct {
	TempToken         string `json:"google_temp_token"`
	PreferredLanguage string `json:"preferred_language"`
}

// CompleteGoogleSignup finalizes a first-time Google sign-in.
func (c *Client) CompleteGoogleSignup(ctx context.Context, tempToken, language string) (domain.AuthSession, error) {
	req, err := jsonRequest(http.MethodPost, "/api/complete-google-signup/", completeGoogleRequest{
		TempToken:         tempToken,
		PreferredLanguage: language,
	}, false)
	if err != nil {
		return domain.AuthSession{}, err
	}
	var resp tokenResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return domain.AuthSession{}, err
	}
	return resp.session()
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	req, err := jsonRequest(http.MethodPost, "/api/login/refresh/", refreshRequest{Refresh: refreshToken}, false)
	if err != nil {
		return "", err
	}
	var resp refreshResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", errors.New("backend returned no access token")
	}
	return resp.Access, nil
}

type languageRequest struct {
	PreferredLanguage string `json:"preferred_language"`
}

// UpdateLanguage stores the preferred language on the profile.
func (c *Client) UpdateLanguage(ctx context.Context, language string) error {
	req, err := jsonRequest(http.MethodPatch, "/api/profile/language/", languageRequest{PreferredLanguage: language}, true)
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}
