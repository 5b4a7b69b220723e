package appauth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ClientConfig is a plain Config implementation.
type ClientConfig struct {
	BaseURL          string
	APIKey           string
	ResetRedirectURL string
}

func (c ClientConfig) GetBaseURL() string          { return c.BaseURL }
func (c ClientConfig) GetAPIKey() string           { return c.APIKey }
func (c ClientConfig) GetResetRedirectURL() string { return c.ResetRedirectURL }

// GoTrueClient implements AuthClient against a GoTrue-style REST API, the
// auth surface the managed backend exposes. Access tokens are decoded (not
// verified; the backend owns the signing keys) to recover identity and
// expiry, and persisted through a TokenStore so sessions survive restarts.
//
// State change events fan out synchronously to OnAuthStateChange
// subscribers from whichever call produced them.
type GoTrueClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	tokens  TokenStore
	logger  Logger
	now     func() time.Time

	mu      sync.Mutex
	current *Session
	nextSub int
	subs    map[int]func(AuthEvent, *Session)
}

var _ AuthClient = (*GoTrueClient)(nil)

// GoTrueOption customizes client construction.
type GoTrueOption func(*GoTrueClient)

// WithHTTPClient overrides the HTTP client (timeouts are its business).
func WithHTTPClient(hc *http.Client) GoTrueOption {
	return func(c *GoTrueClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenStore overrides the token persistence.
func WithTokenStore(store TokenStore) GoTrueOption {
	return func(c *GoTrueClient) {
		if store != nil {
			c.tokens = store
		}
	}
}

// WithClientLogger overrides the client logger.
func WithClientLogger(logger Logger) GoTrueOption {
	return func(c *GoTrueClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) GoTrueOption {
	return func(c *GoTrueClient) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewGoTrueClient returns a client for the backend named by cfg.
func NewGoTrueClient(cfg Config, opts ...GoTrueOption) *GoTrueClient {
	c := &GoTrueClient{
		baseURL: cfg.GetBaseURL(),
		apiKey:  cfg.GetAPIKey(),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  NewMemoryTokenStore(),
		logger:  defLogger{},
		now:     time.Now,
		subs:    map[int]func(AuthEvent, *Session){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// GetSession restores the current session: the in-memory one when still
// valid, otherwise the persisted tokens, refreshing an expired access token
// when a refresh token is available. No session is (nil, nil), not an error.
func (c *GoTrueClient) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current != nil && !current.Expired(c.now()) {
		return current, nil
	}

	tokens, err := c.tokens.Load(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read persisted session")
	}
	if tokens == nil || tokens.AccessToken == "" {
		return nil, nil
	}

	session, err := sessionFromAccessToken(tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		c.logger.Warn("discarding undecodable persisted session", "error", err)
		_ = c.tokens.Clear(ctx)
		return nil, nil
	}

	if session.Expired(c.now()) {
		if tokens.RefreshToken == "" {
			_ = c.tokens.Clear(ctx)
			return nil, nil
		}
		return c.refreshSession(ctx, tokens.RefreshToken)
	}

	c.mu.Lock()
	c.current = session
	c.mu.Unlock()

	return session, nil
}

// SignUp registers a new account, forwarding the sign-up metadata. When the
// backend confirms immediately the response carries a session, which is
// persisted and announced as a SIGNED_IN event.
func (c *GoTrueClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpData, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}

	var payload sessionPayload
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, body, "", &payload); err != nil {
		return nil, err
	}

	if payload.AccessToken == "" {
		// Confirmation pending; the response is a bare user record.
		user, err := payload.bareUser()
		if err != nil {
			return nil, err
		}
		return &SignUpData{User: user}, nil
	}

	session, err := c.adoptSession(ctx, &payload, EventSignedIn)
	if err != nil {
		return nil, err
	}

	return &SignUpData{User: session.User, Session: session}, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *GoTrueClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	query := url.Values{"grant_type": {"password"}}
	body := map[string]any{"email": email, "password": password}

	var payload sessionPayload
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, body, "", &payload); err != nil {
		return nil, err
	}

	return c.adoptSession(ctx, &payload, EventSignedIn)
}

// SignOut revokes the session server-side, clears the persisted tokens, and
// announces SIGNED_OUT. On failure nothing local is cleared; callers
// surface the error and may retry.
func (c *GoTrueClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	bearer := ""
	if c.current != nil {
		bearer = c.current.AccessToken
	}
	c.mu.Unlock()

	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, bearer, nil); err != nil {
		return err
	}

	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear persisted tokens", "error", err)
	}

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	c.emit(EventSignedOut, nil)
	return nil
}

// ResetPasswordForEmail sends the recovery email with the given deep link.
func (c *GoTrueClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}

	body := map[string]any{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", query, body, "", nil)
}

// UpdateUser mutates the signed-in identity record and announces
// USER_UPDATED with the current session.
func (c *GoTrueClient) UpdateUser(ctx context.Context, attrs UserAttributes) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		return ErrNotAuthenticated
	}

	if err := c.do(ctx, http.MethodPut, "/auth/v1/user", nil, attrs, current.AccessToken, nil); err != nil {
		return err
	}

	c.emit(EventUserUpdated, current)
	return nil
}

// OnAuthStateChange registers fn for push-based auth transitions and
// returns its subscription. Callbacks run synchronously on the goroutine
// that produced the event.
func (c *GoTrueClient) OnAuthStateChange(fn func(event AuthEvent, session *Session)) Subscription {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return &subscription{unsubscribe: func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}}
}

func (c *GoTrueClient) refreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	query := url.Values{"grant_type": {"refresh_token"}}
	body := map[string]any{"refresh_token": refreshToken}

	var payload sessionPayload
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, body, "", &payload); err != nil {
		_ = c.tokens.Clear(ctx)
		return nil, err
	}

	return c.adoptSession(ctx, &payload, EventTokenRefreshed)
}

// adoptSession persists, caches, and announces a freshly issued session.
func (c *GoTrueClient) adoptSession(ctx context.Context, payload *sessionPayload, event AuthEvent) (*Session, error) {
	session, err := payload.session(c.now())
	if err != nil {
		return nil, err
	}

	err = c.tokens.Save(ctx, StoredTokens{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
	if err != nil {
		c.logger.Warn("failed to persist session tokens", "error", err)
	}

	c.mu.Lock()
	c.current = session
	c.mu.Unlock()

	c.emit(event, session)
	return session, nil
}

func (c *GoTrueClient) emit(event AuthEvent, session *Session) {
	c.mu.Lock()
	subs := make([]func(AuthEvent, *Session), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(event, session)
	}
}

func (c *GoTrueClient) do(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	res, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "auth backend unreachable")
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read response")
	}

	if res.StatusCode >= http.StatusMultipleChoices {
		return apiErrorFrom(res.StatusCode, path, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode response")
		}
	}

	return nil
}

type apiError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorField       string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
}

func (e apiError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.ErrorField, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return "request failed"
}

func apiErrorFrom(status int, path string, data []byte) *goerrors.Error {
	var payload apiError
	_ = json.Unmarshal(data, &payload)

	return goerrors.New(payload.text(), goerrors.CategoryAuth).
		WithCode(status).
		WithMetadata(map[string]any{
			"status":   status,
			"endpoint": path,
		})
}

type subscription struct {
	once        sync.Once
	unsubscribe func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}

// sessionPayload is the wire shape of both session and bare-user responses.
type sessionPayload struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	ExpiresAtUTC int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         *gotrueUser `json:"user"`

	// Bare-user shape, returned by sign-up while confirmation is pending.
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    *time.Time     `json:"created_at"`
}

type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    *time.Time     `json:"created_at"`
}

func (u *gotrueUser) model() (*User, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "backend returned an invalid user id")
	}

	return &User{
		ID:        id,
		Email:     u.Email,
		Metadata:  u.UserMetadata,
		CreatedAt: u.CreatedAt,
	}, nil
}

func (p *sessionPayload) bareUser() (*User, error) {
	u := gotrueUser{
		ID:           p.ID,
		Email:        p.Email,
		UserMetadata: p.UserMetadata,
		CreatedAt:    p.CreatedAt,
	}
	return u.model()
}

func (p *sessionPayload) session(now time.Time) (*Session, error) {
	if p.User == nil {
		return nil, goerrors.New("backend returned a session with no user", goerrors.CategoryBadInput)
	}

	user, err := p.User.model()
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	switch {
	case p.ExpiresAtUTC > 0:
		t := time.Unix(p.ExpiresAtUTC, 0)
		expiresAt = &t
	case p.ExpiresIn > 0:
		t := now.Add(time.Duration(p.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	return &Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

// accessClaims is the subset of token claims the client reads. Tokens are
// decoded without verification; the backend owns the signing keys.
type accessClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func sessionFromAccessToken(accessToken, refreshToken string) (*Session, error) {
	claims := &accessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "unable to decode persisted session token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "persisted session has an invalid subject")
	}

	var expiresAt *time.Time
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		expiresAt = &t
	}

	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		User: &User{
			ID:       id,
			Email:    claims.Email,
			Metadata: claims.UserMetadata,
		},
	}, nil
}
