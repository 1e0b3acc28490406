// Package calendar reads a user's Google Calendar with stored OAuth tokens.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"agenda/internal/logger"
	"agenda/internal/store"
)

// Provider names the stored OAuth connection.
const Provider = "google_calendar"

// RefreshWindow is how close to expiry an access token gets refreshed.
const RefreshWindow = 5 * time.Minute

var (
	ErrNotConnected = errors.New("google calendar not connected")
	ErrTokenExpired = errors.New("token expired, reconnect google calendar")
)

// ConnectionStore persists encrypted OAuth tokens.
type ConnectionStore interface {
	GetConnection(ctx context.Context, userID, provider string) (*store.OAuthConnection, error)
	SaveConnection(ctx context.Context, conn *store.OAuthConnection) error
	UpdateAccessToken(ctx context.Context, userID, provider, accessToken string, expiresAt time.Time) error
	DeleteConnection(ctx context.Context, userID, provider string) error
}

// Cipher seals tokens at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Overrides for tests; empty means Google production endpoints.
	AuthURL     string
	TokenURL    string
	APIEndpoint string
	HTTPClient  *http.Client
}

type Client struct {
	oauth      *oauth2.Config
	endpoint   string
	httpClient *http.Client
	store      ConnectionStore
	cipher     Cipher
	log        *logger.Logger
}

func New(cfg Config, conns ConnectionStore, cipher Cipher, log *logger.Logger) *Client {
	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{gcal.CalendarReadonlyScope},
		},
		endpoint:   cfg.APIEndpoint,
		httpClient: cfg.HTTPClient,
		store:      conns,
		cipher:     cipher,
		log:        log,
	}
}

// AuthCodeURL returns the consent page URL. Offline access with forced
// consent makes Google issue a refresh token every time.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and stores them
// encrypted, replacing any previous connection.
func (c *Client) Exchange(ctx context.Context, userID, code string) error {
	tok, err := c.oauth.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	access, err := c.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	conn := &store.OAuthConnection{
		UserID:      userID,
		Provider:    Provider,
		AccessToken: access,
		Scopes:      strings.Join(c.oauth.Scopes, " "),
	}
	if tok.RefreshToken != "" {
		refresh, err := c.cipher.Encrypt(tok.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		conn.RefreshToken = refresh
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		conn.TokenExpiresAt = &expiry
	}

	if err := c.store.SaveConnection(ctx, conn); err != nil {
		return err
	}
	c.log.Info("google calendar connected", "user", userID)
	return nil
}

func (c *Client) Connected(ctx context.Context, userID string) (bool, error) {
	_, err := c.store.GetConnection(ctx, userID, Provider)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) Disconnect(ctx context.Context, userID string) error {
	return c.store.DeleteConnection(ctx, userID, Provider)
}

// ListEvents returns the user's primary calendar events between timeMin and
// timeMax (RFC 3339), recurring events expanded, ordered by start time.
func (c *Client) ListEvents(ctx context.Context, userID, timeMin, timeMax string) ([]*gcal.Event, error) {
	tok, err := c.token(ctx, userID)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(c.withHTTPClient(ctx), oauth2.StaticTokenSource(tok))),
	}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	call := svc.Events.List("primary").
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if timeMin != "" {
		call = call.TimeMin(timeMin)
	}
	if timeMax != "" {
		call = call.TimeMax(timeMax)
	}

	events, err := call.Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			if apiErr.Code == http.StatusUnauthorized {
				return nil, ErrTokenExpired
			}
			return nil, fmt.Errorf("google calendar API error: %d", apiErr.Code)
		}
		return nil, fmt.Errorf("google calendar request: %w", err)
	}

	if events.Items == nil {
		return []*gcal.Event{}, nil
	}
	return events.Items, nil
}

// token loads the stored token and refreshes it when it expires within
// RefreshWindow. A refreshed access token is persisted encrypted.
func (c *Client) token(ctx context.Context, userID string) (*oauth2.Token, error) {
	conn, err := c.store.GetConnection(ctx, userID, Provider)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}

	access, err := c.cipher.Decrypt(conn.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if conn.TokenExpiresAt != nil {
		tok.Expiry = *conn.TokenExpiresAt
	}
	if conn.RefreshToken == "" {
		return tok, nil
	}

	refresh, err := c.cipher.Decrypt(conn.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	tok.RefreshToken = refresh

	refresher := c.oauth.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refresh})
	fresh, err := oauth2.ReuseTokenSourceWithExpiry(tok, refresher, RefreshWindow).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if fresh.AccessToken == access {
		return fresh, nil
	}

	sealed, err := c.cipher.Encrypt(fresh.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	if err := c.store.UpdateAccessToken(ctx, userID, Provider, sealed, fresh.Expiry); err != nil {
		return nil, err
	}
	c.log.Debug("google access token refreshed", "user", userID, "expiry", fresh.Expiry)
	return fresh, nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
