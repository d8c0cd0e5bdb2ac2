package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"blobvault/internal/model"
	"blobvault/internal/repository"
)

const (
	// tokenBytes is the entropy of a generated key: 32 random bytes,
	// base64url-encoded to a 43-character opaque token.
	tokenBytes = 32

	keyNameMinLen = 3
	keyNameMaxLen = 50
)

var (
	ErrKeyNameInvalid = errors.New("key name must be 3-50 characters")
	ErrKeyNameTaken   = errors.New("key name already exists")
	ErrKeyNotFound    = errors.New("key not found")

	// ErrInvalidKey reports that a presented token matches no active key.
	// Callers distinguish this (forbidden) from a missing token
	// (unauthenticated); the service only ever sees presented tokens.
	ErrInvalidKey = errors.New("invalid API key")
)

// IssuedKey carries the one chance to see the plaintext. It is never stored
// and never logged; after this value is dropped only the bcrypt hash exists.
type IssuedKey struct {
	Key       *model.APIKey
	Plaintext string
}

// APIKeyService defines the API key lifecycle and verification use cases.
type APIKeyService interface {
	// Issue generates a new key under the given label and returns the
	// plaintext exactly once.
	Issue(ctx context.Context, name string) (*IssuedKey, error)

	// Verify checks a presented token against all active key hashes and
	// stamps last-used on the match. Returns ErrInvalidKey on exhaustion.
	Verify(ctx context.Context, token string) (*model.APIKey, error)

	// List returns all key records, revoked included, without hashes.
	List(ctx context.Context) ([]model.APIKey, error)

	// Revoke soft-deletes a key; its audit row remains.
	Revoke(ctx context.Context, id int64) error
}

type apiKeyService struct {
	repo repository.APIKeyRepository
	cost int
	now  func() time.Time
}

// NewAPIKeyService constructs a new APIKeyService hashing with the given
// bcrypt cost.
func NewAPIKeyService(repo repository.APIKeyRepository, bcryptCost int) APIKeyService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &apiKeyService{repo: repo, cost: bcryptCost, now: time.Now}
}

func (s *apiKeyService) Issue(ctx context.Context, name string) (*IssuedKey, error) {
	name = strings.TrimSpace(name)
	if len(name) < keyNameMinLen || len(name) > keyNameMaxLen {
		return nil, ErrKeyNameInvalid
	}

	plaintext, err := generateToken()
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing key: %w", err)
	}

	created, err := s.repo.Create(ctx, &model.APIKey{
		Name:      name,
		KeyHash:   string(hash),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, ErrKeyNameTaken
		}
		return nil, err
	}

	return &IssuedKey{Key: created, Plaintext: plaintext}, nil
}

// Verify scans the active hashes linearly. The salt makes a direct index on
// the secret impossible; bcrypt's comparison is constant-time per candidate.
// Acceptable at small key counts — see List for the expected population.
func (s *apiKeyService) Verify(ctx context.Context, token string) (*model.APIKey, error) {
	if token == "" {
		return nil, ErrInvalidKey
	}

	keys, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active keys: %w", err)
	}

	for i := range keys {
		key := keys[i]
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(token)) == nil {
			// Last-used is bookkeeping; a failed stamp must not fail an
			// otherwise valid authentication.
			_ = s.repo.TouchLastUsed(ctx, key.ID, s.now().UTC())
			return &key, nil
		}
	}

	return nil, ErrInvalidKey
}

func (s *apiKeyService) List(ctx context.Context) ([]model.APIKey, error) {
	return s.repo.ListAll(ctx)
}

func (s *apiKeyService) Revoke(ctx context.Context, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrKeyNotFound
		}
		return err
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating key material: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
