package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grantkit/oauth/storage"
	"github.com/grantkit/oauth/token"
)

// Key prefixes. Every key this store writes starts with "oauth:".
const (
	clientPrefix  = "oauth:client:"
	scopePrefix   = "oauth:scope:"
	codePrefix    = "oauth:code:"
	accessPrefix  = "oauth:access:"
	refreshPrefix = "oauth:refresh:"

	// redeemedSuffix marks redeemed codes and refresh tokens. The marker is
	// a separate key so redemption can be claimed with a single SETNX.
	redeemedSuffix = ":redeemed"

	// indexSuffix joins a prefix with "<userID>:<clientID>" to form the set
	// of IDs issued to that pair.
	indexSuffix = "index:"

	scopeSetKey = "oauth:scopes"
)

// redeemScript claims redemption of an artifact with SETNX on a marker key,
// copying the main key's TTL onto the marker so both expire together.
// Returns {"redeemed", payload} on success, "not_found" or
// "already_redeemed" otherwise. cjson is deliberately avoided; the payload
// is decoded by the caller.
var redeemScript = redis.NewScript(`
local payload = redis.call("GET", KEYS[1])
if not payload then
	return "not_found"
end
local claimed = redis.call("SETNX", KEYS[2], "1")
if claimed == 0 then
	return "already_redeemed"
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[2], ttl)
end
return {"redeemed", payload}
`)

// Store persists all entities in Redis as JSON.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// Compile-time interface checks.
var (
	_ storage.ClientStore            = (*Store)(nil)
	_ storage.ScopeStore             = (*Store)(nil)
	_ storage.AuthorizationCodeStore = (*Store)(nil)
	_ storage.AccessTokenStore       = (*Store)(nil)
	_ storage.RefreshTokenStore      = (*Store)(nil)
)

// New creates a store backed by the given Redis client.
func New(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

// Ping verifies connectivity to Redis.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// tokenRecord is the wire form of a token entity. Entities keep their
// hashes out of telemetry; they are stored here as base64 via the default
// []byte JSON encoding.
type tokenRecord struct {
	ID          string    `json:"id"`
	Hash        []byte    `json:"hash"`
	Salt        []byte    `json:"salt"`
	Iterations  int       `json:"iterations"`
	ClientID    string    `json:"client_id"`
	UserID      string    `json:"user_id"`
	Scopes      []string  `json:"scopes,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
	Revoked     bool      `json:"revoked,omitempty"`
	RedirectURI string    `json:"redirect_uri,omitempty"`
}

func toRecord(t *token.Token, redirectURI string) tokenRecord {
	return tokenRecord{
		ID:          t.ID,
		Hash:        t.Hash,
		Salt:        t.Salt,
		Iterations:  t.Iterations,
		ClientID:    t.ClientID,
		UserID:      t.UserID,
		Scopes:      t.Scopes,
		ExpiresAt:   t.ExpiresAt,
		Revoked:     t.Revoked,
		RedirectURI: redirectURI,
	}
}

func (r tokenRecord) base() token.Token {
	return token.Token{
		ID:         r.ID,
		Hash:       r.Hash,
		Salt:       r.Salt,
		Iterations: r.Iterations,
		ClientID:   r.ClientID,
		UserID:     r.UserID,
		Scopes:     r.Scopes,
		ExpiresAt:  r.ExpiresAt,
		Revoked:    r.Revoked,
	}
}

func indexKey(prefix, userID, clientID string) string {
	return prefix + indexSuffix + userID + ":" + clientID
}

// saveRecord writes the record under key with a TTL derived from its
// expiry, and adds the ID to the user/client index set.
func (s *Store) saveRecord(ctx context.Context, prefix string, rec tokenRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	var ttl time.Duration
	if !rec.ExpiresAt.IsZero() {
		ttl = time.Until(rec.ExpiresAt)
		if ttl <= 0 {
			ttl = time.Millisecond
		}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, prefix+rec.ID, payload, ttl)
	idx := indexKey(prefix, rec.UserID, rec.ClientID)
	pipe.SAdd(ctx, idx, rec.ID)
	if ttl > 0 {
		// Keep the index at least as long as its newest member.
		pipe.Expire(ctx, idx, ttl+time.Minute)
	}
	if rec.Revoked {
		pipe.SetNX(ctx, prefix+rec.ID+redeemedSuffix, "1", ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *Store) getRecord(ctx context.Context, prefix, id string) (tokenRecord, error) {
	payload, err := s.client.Get(ctx, prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return tokenRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return tokenRecord{}, fmt.Errorf("failed to get record: %w", err)
	}

	var rec tokenRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return tokenRecord{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	// The redeemed marker is authoritative; Save may race with Redeem.
	if !rec.Revoked {
		redeemed, err := s.client.Exists(ctx, prefix+id+redeemedSuffix).Result()
		if err != nil {
			return tokenRecord{}, fmt.Errorf("failed to check redeemed marker: %w", err)
		}
		rec.Revoked = redeemed > 0
	}
	return rec, nil
}

// redeemRecord runs the redemption script and decodes the outcome.
func (s *Store) redeemRecord(ctx context.Context, prefix, id string) (tokenRecord, error) {
	keys := []string{prefix + id, prefix + id + redeemedSuffix}
	res, err := redeemScript.Run(ctx, s.client, keys).Result()
	if err != nil {
		return tokenRecord{}, fmt.Errorf("failed to run redeem script: %w", err)
	}

	switch v := res.(type) {
	case string:
		switch v {
		case "not_found":
			return tokenRecord{}, storage.ErrNotFound
		case "already_redeemed":
			return tokenRecord{}, storage.ErrAlreadyRedeemed
		}
		return tokenRecord{}, fmt.Errorf("unexpected redeem result %q", v)
	case []interface{}:
		if len(v) != 2 {
			return tokenRecord{}, fmt.Errorf("unexpected redeem result length %d", len(v))
		}
		payload, ok := v[1].(string)
		if !ok {
			return tokenRecord{}, fmt.Errorf("unexpected redeem payload type %T", v[1])
		}
		var rec tokenRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return tokenRecord{}, fmt.Errorf("failed to unmarshal redeemed record: %w", err)
		}
		if !rec.ExpiresAt.IsZero() && !time.Now().Before(rec.ExpiresAt) {
			return tokenRecord{}, storage.ErrExpired
		}
		if rec.Revoked {
			return tokenRecord{}, storage.ErrAlreadyRedeemed
		}
		return rec, nil
	default:
		return tokenRecord{}, fmt.Errorf("unexpected redeem result type %T", res)
	}
}

// listByUserClient loads every live record in the pair's index set,
// pruning IDs whose keys have expired away.
func (s *Store) listByUserClient(ctx context.Context, prefix, userID, clientID string) ([]tokenRecord, error) {
	idx := indexKey(prefix, userID, clientID)
	ids, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var out []tokenRecord
	var stale []interface{}
	for _, id := range ids {
		rec, err := s.getRecord(ctx, prefix, id)
		if errors.Is(err, storage.ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, idx, stale...).Err(); err != nil {
			s.logger.Warn("failed to prune stale index members", "index", idx, "error", err)
		}
	}
	return out, nil
}

func (s *Store) deleteRecord(ctx context.Context, prefix, id string) error {
	rec, err := s.getRecord(ctx, prefix, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, prefix+id, prefix+id+redeemedSuffix)
	pipe.SRem(ctx, indexKey(prefix, rec.UserID, rec.ClientID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// --- clients ---

// SaveClient registers or replaces a client.
func (s *Store) SaveClient(ctx context.Context, c *storage.Client) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("client must have an ID")
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}
	if err := s.client.Set(ctx, clientPrefix+c.ID, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	payload, err := s.client.Get(ctx, clientPrefix+clientID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("client %q: %w", clientID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	var c storage.Client
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return &c, nil
}

// DeleteClient removes a client registration.
func (s *Store) DeleteClient(ctx context.Context, clientID string) error {
	if err := s.client.Del(ctx, clientPrefix+clientID).Err(); err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}

// --- scopes ---

// SaveScope registers or replaces a scope definition.
func (s *Store) SaveScope(ctx context.Context, sc *storage.Scope) error {
	if sc == nil || sc.ID == "" {
		return fmt.Errorf("scope must have an ID")
	}
	payload, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, scopePrefix+sc.ID, payload, 0)
	pipe.SAdd(ctx, scopeSetKey, sc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save scope: %w", err)
	}
	return nil
}

func (s *Store) GetScope(ctx context.Context, id string) (*storage.Scope, error) {
	payload, err := s.client.Get(ctx, scopePrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("scope %q: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scope: %w", err)
	}
	var sc storage.Scope
	if err := json.Unmarshal(payload, &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
	}
	return &sc, nil
}

func (s *Store) ListScopes(ctx context.Context) ([]*storage.Scope, error) {
	ids, err := s.client.SMembers(ctx, scopeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}
	out := make([]*storage.Scope, 0, len(ids))
	for _, id := range ids {
		sc, err := s.GetScope(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// --- authorization codes ---

func (s *Store) SaveCode(ctx context.Context, code *token.AuthorizationCode) error {
	if code == nil || code.ID == "" {
		return fmt.Errorf("authorization code must have an ID")
	}
	return s.saveRecord(ctx, codePrefix, toRecord(&code.Token, code.RedirectURI))
}

func (s *Store) GetCode(ctx context.Context, id string) (*token.AuthorizationCode, error) {
	rec, err := s.getRecord(ctx, codePrefix, id)
	if err != nil {
		return nil, fmt.Errorf("authorization code: %w", err)
	}
	return &token.AuthorizationCode{Token: rec.base(), RedirectURI: rec.RedirectURI}, nil
}

func (s *Store) RedeemCode(ctx context.Context, id string) (*token.AuthorizationCode, error) {
	rec, err := s.redeemRecord(ctx, codePrefix, id)
	if err != nil {
		return nil, fmt.Errorf("authorization code: %w", err)
	}
	return &token.AuthorizationCode{Token: rec.base(), RedirectURI: rec.RedirectURI}, nil
}

func (s *Store) CodesByUserClient(ctx context.Context, userID, clientID string) ([]*token.AuthorizationCode, error) {
	recs, err := s.listByUserClient(ctx, codePrefix, userID, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]*token.AuthorizationCode, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &token.AuthorizationCode{Token: rec.base(), RedirectURI: rec.RedirectURI})
	}
	return out, nil
}

func (s *Store) DeleteCode(ctx context.Context, id string) error {
	return s.deleteRecord(ctx, codePrefix, id)
}

// --- access tokens ---

func (s *Store) SaveAccessToken(ctx context.Context, t *token.AccessToken) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("access token must have an ID")
	}
	return s.saveRecord(ctx, accessPrefix, toRecord(&t.Token, ""))
}

func (s *Store) GetAccessToken(ctx context.Context, id string) (*token.AccessToken, error) {
	rec, err := s.getRecord(ctx, accessPrefix, id)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	return &token.AccessToken{Token: rec.base()}, nil
}

func (s *Store) AccessTokensByUserClient(ctx context.Context, userID, clientID string) ([]*token.AccessToken, error) {
	recs, err := s.listByUserClient(ctx, accessPrefix, userID, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]*token.AccessToken, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &token.AccessToken{Token: rec.base()})
	}
	return out, nil
}

func (s *Store) DeleteAccessToken(ctx context.Context, id string) error {
	return s.deleteRecord(ctx, accessPrefix, id)
}

// --- refresh tokens ---

func (s *Store) SaveRefreshToken(ctx context.Context, t *token.RefreshToken) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("refresh token must have an ID")
	}
	return s.saveRecord(ctx, refreshPrefix, toRecord(&t.Token, ""))
}

func (s *Store) GetRefreshToken(ctx context.Context, id string) (*token.RefreshToken, error) {
	rec, err := s.getRecord(ctx, refreshPrefix, id)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &token.RefreshToken{Token: rec.base()}, nil
}

func (s *Store) RedeemRefreshToken(ctx context.Context, id string) (*token.RefreshToken, error) {
	rec, err := s.redeemRecord(ctx, refreshPrefix, id)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &token.RefreshToken{Token: rec.base()}, nil
}

func (s *Store) RefreshTokensByUserClient(ctx context.Context, userID, clientID string) ([]*token.RefreshToken, error) {
	recs, err := s.listByUserClient(ctx, refreshPrefix, userID, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]*token.RefreshToken, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &token.RefreshToken{Token: rec.base()})
	}
	return out, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, id string) error {
	return s.deleteRecord(ctx, refreshPrefix, id)
}
