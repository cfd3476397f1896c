package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/i18n"
	"agriadvisor/internal/ports"
)

// Resetter is a controller that returns to its initial state on logout.
type Resetter interface {
	Reset()
}

// SignupForm is what the signup view collects.
type SignupForm struct {
	Username string
	Email    string
	Password string
	Confirm  string
	Language string
}

// languagePreference is the part of LanguageController auth needs.
type languagePreference interface {
	LanguageSource
	Adopt(code string)
}

// AuthController runs the login, signup and Google flows and turns any
// credential invalidation into a full logout.
type AuthController struct {
	api    ports.AuthAPI
	creds  ports.Credentials
	lang   languagePreference
	events ports.EventSink
	logger *slog.Logger

	mu         sync.Mutex
	view       domain.AuthView
	ticket     *domain.GoogleSignupTicket
	dependents []Resetter
}

func NewAuthController(
	api ports.AuthAPI,
	creds ports.Credentials,
	lang languagePreference,
	events ports.EventSink,
	logger *slog.Logger,
	dependents ...Resetter,
) *AuthController {
	if logger == nil {
		logger = slog.Default()
	}
	c := &AuthController{
		api:        api,
		creds:      creds,
		lang:       lang,
		events:     events,
		logger:     logger,
		view:       domain.AuthViewLogin,
		dependents: dependents,
	}
	creds.OnInvalidate(c.loggedOut)
	return c
}

// Status reports the auth state and, when logged out, the visible view.
func (c *AuthController) Status() domain.AuthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// ShowLogin and ShowSignup switch between the logged-out forms.
func (c *AuthController) ShowLogin() {
	c.setView(domain.AuthViewLogin, nil)
}

func (c *AuthController) ShowSignup() {
	c.setView(domain.AuthViewSignup, nil)
}

// Restore resumes a persisted session and exchanges its refresh token for a
// fresh access token. A rejected refresh logs out; an unreachable backend
// keeps the stored session.
func (c *AuthController) Restore(ctx context.Context) error {
	session, ok := c.creds.Current()
	if !ok || !session.Valid() {
		c.emit()
		return nil
	}

	if session.RefreshToken != "" {
		access, err := c.api.Refresh(ctx, session.RefreshToken)
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			c.logger.Info("stored session expired")
			c.creds.Invalidate()
			return nil
		case err != nil:
			c.logger.Warn("token refresh failed, keeping stored session", "error", err)
		default:
			if err := c.creds.UpdateAccessToken(access); err != nil {
				c.logger.Warn("failed to store refreshed token", "error", err)
			}
		}
	}
	c.emit()
	return nil
}

func (c *AuthController) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return c.invalid("", i18n.KeyRequiredFields)
	}

	session, err := c.api.Login(ctx, email, password)
	if err != nil {
		return c.failed(err, i18n.KeyLoginFailed)
	}
	return c.signedIn(session)
}

// Signup validates the form locally, registers the account and signs in
// with the same credentials.
func (c *AuthController) Signup(ctx context.Context, form SignupForm) error {
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	if form.Username == "" || form.Email == "" || form.Password == "" || form.Confirm == "" {
		return c.invalid("", i18n.KeyRequiredFields)
	}
	if !strings.Contains(form.Email, "@") {
		return c.invalid("email", i18n.KeyInvalidEmail)
	}
	if form.Password != form.Confirm {
		return c.invalid("confirm", i18n.KeyPasswordMatch)
	}
	language := c.lang.Current()
	if strings.TrimSpace(form.Language) != "" {
		normalized, err := i18n.Normalize(form.Language)
		if err != nil {
			return c.invalid("language", i18n.KeyUnsupported)
		}
		language = normalized
	}

	err := c.api.Register(ctx, ports.SignupRequest{
		Username:          form.Username,
		Email:             form.Email,
		Password:          form.Password,
		PreferredLanguage: language,
	})
	if err != nil {
		return c.failed(err, i18n.KeySignupFailed)
	}

	session, err := c.api.Login(ctx, form.Email, form.Password)
	if err != nil {
		return c.failed(err, i18n.KeyLoginFailed)
	}
	return c.signedIn(session)
}

// GoogleLogin submits a provider access token. A first-time user is moved
// to the signup completion view instead of being signed in.
func (c *AuthController) GoogleLogin(ctx context.Context, providerToken string) error {
	if strings.TrimSpace(providerToken) == "" {
		return c.invalid("token", i18n.KeyRequiredFields)
	}
	result, err := c.api.LoginGoogle(ctx, providerToken)
	if err != nil {
		return c.failed(err, i18n.KeyLoginFailed)
	}
	if result.Ticket != nil {
		ticket := *result.Ticket
		c.setView(domain.AuthViewGoogleSignupCompletion, &ticket)
		return nil
	}
	return c.signedIn(result.Session)
}

// CompleteGoogleSignup finishes a first-time Google sign-in with the chosen
// language.
func (c *AuthController) CompleteGoogleSignup(ctx context.Context, language string) error {
	c.mu.Lock()
	ticket := c.ticket
	c.mu.Unlock()
	if ticket == nil {
		return ErrNoSignupTicket
	}

	normalized, err := i18n.Normalize(language)
	if err != nil {
		return c.invalid("language", i18n.KeyUnsupported)
	}
	session, err := c.api.CompleteGoogleSignup(ctx, ticket.TempToken, normalized)
	if err != nil {
		return c.failed(err, i18n.KeySignupFailed)
	}
	if session.User.PreferredLanguage == "" {
		session.User.PreferredLanguage = normalized
	}
	return c.signedIn(session)
}

// Logout clears the stored session; the invalidation listener resets every
// dependent controller.
func (c *AuthController) Logout() {
	c.creds.Invalidate()
}

func (c *AuthController) signedIn(session domain.AuthSession) error {
	if err := c.creds.Save(session); err != nil {
		c.logger.Error("failed to store session", "error", err)
		return err
	}
	if session.User.PreferredLanguage != "" {
		c.lang.Adopt(session.User.PreferredLanguage)
	}
	c.mu.Lock()
	c.view = domain.AuthViewLogin
	c.ticket = nil
	c.mu.Unlock()
	c.logger.Info("signed in", "email", session.User.Email)
	c.emit()
	return nil
}

func (c *AuthController) loggedOut() {
	c.mu.Lock()
	c.view = domain.AuthViewLogin
	c.ticket = nil
	dependents := append([]Resetter{}, c.dependents...)
	c.mu.Unlock()

	for _, d := range dependents {
		d.Reset()
	}
	c.emit()
}

func (c *AuthController) invalid(field string, key i18n.Key) error {
	c.events.Notify(domain.ErrorCodeValidation, i18n.T(c.lang.Current(), key))
	return &ValidationError{Field: field, Key: key}
}

func (c *AuthController) failed(err error, key i18n.Key) error {
	message := i18n.T(c.lang.Current(), key)
	if detail := apiDetail(err); detail != "" {
		message += " " + detail
	}
	c.events.Notify(domain.ErrorCodeNetwork, message)
	c.logger.Warn("auth request failed", "error", err)
	return err
}

func (c *AuthController) setView(view domain.AuthView, ticket *domain.GoogleSignupTicket) {
	c.mu.Lock()
	c.view = view
	c.ticket = ticket
	c.mu.Unlock()
	c.emit()
}

func (c *AuthController) emit() {
	c.events.AuthChanged(c.Status())
}

func (c *AuthController) statusLocked() domain.AuthStatus {
	session, ok := c.creds.Current()
	if ok && session.Valid() {
		user := session.User
		return domain.AuthStatus{State: domain.AuthStateLoggedIn, User: &user}
	}
	status := domain.AuthStatus{State: domain.AuthStateLoggedOut, View: c.view}
	if c.ticket != nil {
		ticket := *c.ticket
		status.Ticket = &ticket
	}
	return status
}

// apiDetail extracts the server's explanation from an error that carries one.
func apiDetail(err error) string {
	var detailed interface{ ErrorDetail() string }
	if errors.As(err, &detailed) {
		return detailed.ErrorDetail()
	}
	return ""
}
