package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/1Password/connect-sdk-go/connect"
	"github.com/1Password/connect-sdk-go/onepassword"
)

// DefaultItemTitle is the 1Password item holding the intelligence token.
const DefaultItemTitle = "netimpact-intelligence"

// defaultRefresh is how long a token read from 1Password is reused.
const defaultRefresh = 5 * time.Minute

// itemGetter is the subset of connect.Client used here.
type itemGetter interface {
	GetItemsByTitle(title string, vaultQuery string) ([]onepassword.Item, error)
	GetItem(itemQuery string, vaultQuery string) (*onepassword.Item, error)
}

// OnePasswordSource reads the intelligence token from 1Password using the
// Connect API.
//
// Configuration is via environment variables:
//   - OP_CONNECT_HOST: URL of the 1Password Connect server
//   - OP_CONNECT_TOKEN: Access token for the Connect server
//   - OP_VAULT_ID: UUID of the vault holding the item
type OnePasswordSource struct {
	client  itemGetter
	vaultID string
	title   string
	refresh time.Duration
	now     func() time.Time
	logger  *slog.Logger

	// Cache to avoid repeated API calls
	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

// OnePasswordConfig holds configuration for 1Password Connect.
type OnePasswordConfig struct {
	Host      string        // OP_CONNECT_HOST
	Token     string        // OP_CONNECT_TOKEN
	VaultID   string        // OP_VAULT_ID
	ItemTitle string        // default DefaultItemTitle
	Refresh   time.Duration // default 5m
}

// NewOnePasswordSource creates a 1Password-backed token source.
func NewOnePasswordSource(cfg OnePasswordConfig, logger *slog.Logger) (*OnePasswordSource, error) {
	if cfg.Host == "" || cfg.Token == "" || cfg.VaultID == "" {
		return nil, fmt.Errorf("1Password configuration incomplete: host, token, and vault_id are required")
	}

	client := connect.NewClientWithUserAgent(cfg.Host, cfg.Token, "netimpact-control-plane")
	return newOnePasswordSource(client, cfg, logger), nil
}

func newOnePasswordSource(client itemGetter, cfg OnePasswordConfig, logger *slog.Logger) *OnePasswordSource {
	if cfg.ItemTitle == "" {
		cfg.ItemTitle = DefaultItemTitle
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = defaultRefresh
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OnePasswordSource{
		client:  client,
		vaultID: cfg.VaultID,
		title:   cfg.ItemTitle,
		refresh: cfg.Refresh,
		now:     time.Now,
		logger:  logger.With("component", "secrets"),
	}
}

// Token returns the cached token, re-reading 1Password once the refresh
// interval has passed. If a refresh fails the previous token is kept.
func (s *OnePasswordSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Sub(s.fetchedAt) < s.refresh {
		return s.token, nil
	}

	token, err := s.fetch()
	if err != nil {
		if s.token != "" {
			s.logger.Warn("1Password refresh failed, using previous token", "error", err)
			return s.token, nil
		}
		return "", err
	}

	s.token = token
	s.fetchedAt = s.now()
	s.logger.Debug("token loaded from 1Password", "item", s.title)
	return token, nil
}

func (s *OnePasswordSource) fetch() (string, error) {
	items, err := s.client.GetItemsByTitle(s.title, s.vaultID)
	if err != nil {
		return "", fmt.Errorf("listing items: %w", err)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("1Password item %q not found", s.title)
	}

	// Get the full item (including fields)
	item, err := s.client.GetItem(items[0].ID, s.vaultID)
	if err != nil {
		return "", fmt.Errorf("getting item: %w", err)
	}

	token := tokenField(item)
	if token == "" {
		return "", fmt.Errorf("1Password item %q has no credential field", s.title)
	}
	return token, nil
}

// tokenField picks the credential from an item: an API Credential's
// "credential" field, else the password field, else the first concealed one.
func tokenField(item *onepassword.Item) string {
	var password, concealed string
	for _, f := range item.Fields {
		if f == nil || f.Value == "" {
			continue
		}
		switch {
		case f.ID == "credential" || strings.EqualFold(f.Label, "credential"):
			return strings.TrimSpace(f.Value)
		case f.Purpose == "PASSWORD" && password == "":
			password = f.Value
		case f.Type == "CONCEALED" && concealed == "":
			concealed = f.Value
		}
	}
	if password != "" {
		return strings.TrimSpace(password)
	}
	return strings.TrimSpace(concealed)
}
