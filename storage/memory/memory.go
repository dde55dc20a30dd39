package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grantkit/oauth/instrumentation"
	"github.com/grantkit/oauth/storage"
	"github.com/grantkit/oauth/token"
)

// Store keeps all entities in maps guarded by a single mutex. A background
// loop removes expired codes and tokens so abandoned grants do not
// accumulate.
type Store struct {
	mu sync.RWMutex

	clients       map[string]*storage.Client
	scopes        map[string]*storage.Scope
	codes         map[string]*token.AuthorizationCode
	accessTokens  map[string]*token.AccessToken
	refreshTokens map[string]*token.RefreshToken

	codeCount    atomic.Int64
	accessCount  atomic.Int64
	refreshCount atomic.Int64
	clientCount  atomic.Int64

	logger      *slog.Logger
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// Compile-time interface checks.
var (
	_ storage.ClientStore            = (*Store)(nil)
	_ storage.ScopeStore             = (*Store)(nil)
	_ storage.AuthorizationCodeStore = (*Store)(nil)
	_ storage.AccessTokenStore       = (*Store)(nil)
	_ storage.RefreshTokenStore      = (*Store)(nil)
)

// New creates an empty store and starts its cleanup loop.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		clients:       make(map[string]*storage.Client),
		scopes:        make(map[string]*storage.Scope),
		codes:         make(map[string]*token.AuthorizationCode),
		accessTokens:  make(map[string]*token.AccessToken),
		refreshTokens: make(map[string]*token.RefreshToken),
		logger:        logger,
		stopCleanup:   make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// SetInstrumentation registers storage size gauges with the given
// instrumentation instance.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) error {
	if inst == nil {
		return nil
	}
	return inst.RegisterStorageSizeCallbacks(
		func() int64 { return s.codeCount.Load() },
		func() int64 { return s.accessCount.Load() },
		func() int64 { return s.refreshCount.Load() },
		func() int64 { return s.clientCount.Load() },
	)
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var codes, access, refresh int
	for id, c := range s.codes {
		if c.Expired() {
			delete(s.codes, id)
			codes++
		}
	}
	for id, t := range s.accessTokens {
		if t.Expired() {
			delete(s.accessTokens, id)
			access++
		}
	}
	for id, t := range s.refreshTokens {
		if t.Expired() {
			delete(s.refreshTokens, id)
			refresh++
		}
	}
	s.codeCount.Add(int64(-codes))
	s.accessCount.Add(int64(-access))
	s.refreshCount.Add(int64(-refresh))

	if codes+access+refresh > 0 {
		s.logger.Debug("cleaned up expired entries",
			"codes", codes, "access_tokens", access, "refresh_tokens", refresh)
	}
}

// --- clients ---

// SaveClient registers or replaces a client.
func (s *Store) SaveClient(_ context.Context, c *storage.Client) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("client must have an ID")
	}
	cp := copyClient(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[c.ID]; !exists {
		s.clientCount.Add(1)
	}
	s.clients[c.ID] = cp
	return nil
}

func (s *Store) GetClient(_ context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %q: %w", clientID, storage.ErrNotFound)
	}
	return copyClient(c), nil
}

// DeleteClient removes a client registration.
func (s *Store) DeleteClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; ok {
		delete(s.clients, clientID)
		s.clientCount.Add(-1)
	}
	return nil
}

// --- scopes ---

// SaveScope registers or replaces a scope definition.
func (s *Store) SaveScope(_ context.Context, sc *storage.Scope) error {
	if sc == nil || sc.ID == "" {
		return fmt.Errorf("scope must have an ID")
	}
	cp := *sc

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[sc.ID] = &cp
	return nil
}

func (s *Store) GetScope(_ context.Context, id string) (*storage.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scopes[id]
	if !ok {
		return nil, fmt.Errorf("scope %q: %w", id, storage.ErrNotFound)
	}
	cp := *sc
	return &cp, nil
}

func (s *Store) ListScopes(_ context.Context) ([]*storage.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*storage.Scope, 0, len(s.scopes))
	for _, sc := range s.scopes {
		cp := *sc
		out = append(out, &cp)
	}
	return out, nil
}

// --- authorization codes ---

func (s *Store) SaveCode(_ context.Context, code *token.AuthorizationCode) error {
	if code == nil || code.ID == "" {
		return fmt.Errorf("authorization code must have an ID")
	}
	cp := copyCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.codes[code.ID]; !exists {
		s.codeCount.Add(1)
	}
	s.codes[code.ID] = cp
	return nil
}

func (s *Store) GetCode(_ context.Context, id string) (*token.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[id]
	if !ok {
		return nil, fmt.Errorf("authorization code: %w", storage.ErrNotFound)
	}
	return copyCode(c), nil
}

// RedeemCode checks and revokes the code under the write lock, so exactly
// one concurrent caller observes the unrevoked state.
func (s *Store) RedeemCode(_ context.Context, id string) (*token.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[id]
	if !ok {
		return nil, fmt.Errorf("authorization code: %w", storage.ErrNotFound)
	}
	if c.Revoked {
		return nil, fmt.Errorf("authorization code: %w", storage.ErrAlreadyRedeemed)
	}
	if c.Expired() {
		return nil, fmt.Errorf("authorization code: %w", storage.ErrExpired)
	}

	redeemed := copyCode(c)
	c.Revoke()
	return redeemed, nil
}

func (s *Store) CodesByUserClient(_ context.Context, userID, clientID string) ([]*token.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*token.AuthorizationCode
	for _, c := range s.codes {
		if c.UserID == userID && c.ClientID == clientID {
			out = append(out, copyCode(c))
		}
	}
	return out, nil
}

func (s *Store) DeleteCode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[id]; ok {
		delete(s.codes, id)
		s.codeCount.Add(-1)
	}
	return nil
}

// --- access tokens ---

func (s *Store) SaveAccessToken(_ context.Context, t *token.AccessToken) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("access token must have an ID")
	}
	cp := copyAccessToken(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accessTokens[t.ID]; !exists {
		s.accessCount.Add(1)
	}
	s.accessTokens[t.ID] = cp
	return nil
}

func (s *Store) GetAccessToken(_ context.Context, id string) (*token.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.accessTokens[id]
	if !ok {
		return nil, fmt.Errorf("access token: %w", storage.ErrNotFound)
	}
	return copyAccessToken(t), nil
}

func (s *Store) AccessTokensByUserClient(_ context.Context, userID, clientID string) ([]*token.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*token.AccessToken
	for _, t := range s.accessTokens {
		if t.UserID == userID && t.ClientID == clientID {
			out = append(out, copyAccessToken(t))
		}
	}
	return out, nil
}

func (s *Store) DeleteAccessToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accessTokens[id]; ok {
		delete(s.accessTokens, id)
		s.accessCount.Add(-1)
	}
	return nil
}

// --- refresh tokens ---

func (s *Store) SaveRefreshToken(_ context.Context, t *token.RefreshToken) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("refresh token must have an ID")
	}
	cp := copyRefreshToken(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.refreshTokens[t.ID]; !exists {
		s.refreshCount.Add(1)
	}
	s.refreshTokens[t.ID] = cp
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, id string) (*token.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.refreshTokens[id]
	if !ok {
		return nil, fmt.Errorf("refresh token: %w", storage.ErrNotFound)
	}
	return copyRefreshToken(t), nil
}

// RedeemRefreshToken has the same atomicity contract as RedeemCode.
func (s *Store) RedeemRefreshToken(_ context.Context, id string) (*token.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.refreshTokens[id]
	if !ok {
		return nil, fmt.Errorf("refresh token: %w", storage.ErrNotFound)
	}
	if t.Revoked {
		return nil, fmt.Errorf("refresh token: %w", storage.ErrAlreadyRedeemed)
	}
	if t.Expired() {
		return nil, fmt.Errorf("refresh token: %w", storage.ErrExpired)
	}

	redeemed := copyRefreshToken(t)
	t.Revoke()
	return redeemed, nil
}

func (s *Store) RefreshTokensByUserClient(_ context.Context, userID, clientID string) ([]*token.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*token.RefreshToken
	for _, t := range s.refreshTokens {
		if t.UserID == userID && t.ClientID == clientID {
			out = append(out, copyRefreshToken(t))
		}
	}
	return out, nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refreshTokens[id]; ok {
		delete(s.refreshTokens, id)
		s.refreshCount.Add(-1)
	}
	return nil
}

// --- copy helpers ---

func copyClient(c *storage.Client) *storage.Client {
	cp := *c
	cp.SecretHash = append([]byte(nil), c.SecretHash...)
	cp.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	cp.Scopes = append([]string(nil), c.Scopes...)
	return &cp
}

func copyBase(t *token.Token) token.Token {
	cp := *t
	cp.Hash = append([]byte(nil), t.Hash...)
	cp.Salt = append([]byte(nil), t.Salt...)
	cp.Scopes = append([]string(nil), t.Scopes...)
	return cp
}

func copyCode(c *token.AuthorizationCode) *token.AuthorizationCode {
	return &token.AuthorizationCode{Token: copyBase(&c.Token), RedirectURI: c.RedirectURI}
}

func copyAccessToken(t *token.AccessToken) *token.AccessToken {
	return &token.AccessToken{Token: copyBase(&t.Token)}
}

func copyRefreshToken(t *token.RefreshToken) *token.RefreshToken {
	return &token.RefreshToken{Token: copyBase(&t.Token)}
}
