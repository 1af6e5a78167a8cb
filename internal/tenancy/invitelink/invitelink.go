// Package invitelink issues and validates signed link-invite grants. A grant
// binds an invite to a specific recipient so a forwarded link cannot be
// redeemed by someone else.
package invitelink

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
)

// signerEnv holds raw env values before post-parse validation.
type signerEnv struct {
	Issuer     string        `env:"LEASEHOLD_GRANT_ISSUER"`
	Audience   string        `env:"LEASEHOLD_GRANT_AUDIENCE"`
	PrivateKey string        `env:"LEASEHOLD_GRANT_PRIVATE_KEY"`
	TTL        time.Duration `env:"LEASEHOLD_GRANT_TTL"         envDefault:"15m"`
}

// verifierEnv holds raw env values before post-parse validation.
type verifierEnv struct {
	Issuer    string `env:"LEASEHOLD_GRANT_ISSUER"`
	Audience  string `env:"LEASEHOLD_GRANT_AUDIENCE"`
	PublicKey string `env:"LEASEHOLD_GRANT_PUBLIC_KEY"`
}

// SignerConfig defines how grants are issued.
type SignerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// VerifierConfig defines how grants are verified.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Expectation defines the identity a grant must carry to be accepted.
type Expectation struct {
	InviteID   string
	PropertyID string
	OccupantID string
}

// Claims captures validated grant claims.
type Claims struct {
	Issuer     string
	Audience   []string
	ExpiresAt  time.Time
	NotBefore  time.Time
	IssuedAt   time.Time
	JWTID      string
	InviteID   string
	PropertyID string
	OccupantID string
}

// grantClaims is the internal claims type used for JWT parsing.
type grantClaims struct {
	jwt.RegisteredClaims
	InviteID   string `json:"invite_id"`
	PropertyID string `json:"property_id"`
	OccupantID string `json:"occupant_id"`
}

// LoadSignerConfigFromEnv reads grant signing configuration.
func LoadSignerConfigFromEnv(now func() time.Time) (SignerConfig, error) {
	var raw signerEnv
	if err := env.Parse(&raw); err != nil {
		return SignerConfig{}, fmt.Errorf("parse grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if issuer == "" {
		return SignerConfig{}, fmt.Errorf("LEASEHOLD_GRANT_ISSUER is required")
	}
	if audience == "" {
		return SignerConfig{}, fmt.Errorf("LEASEHOLD_GRANT_AUDIENCE is required")
	}
	if privateKey == "" {
		return SignerConfig{}, fmt.Errorf("LEASEHOLD_GRANT_PRIVATE_KEY is required")
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return SignerConfig{}, fmt.Errorf("decode grant private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return SignerConfig{}, fmt.Errorf("grant private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if raw.TTL <= 0 {
		return SignerConfig{}, fmt.Errorf("grant ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return SignerConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PrivateKey(keyBytes),
		TTL:      raw.TTL,
		Now:      now,
	}, nil
}

// LoadVerifierConfigFromEnv reads grant verification configuration.
func LoadVerifierConfigFromEnv(now func() time.Time) (VerifierConfig, error) {
	var raw verifierEnv
	if err := env.Parse(&raw); err != nil {
		return VerifierConfig{}, fmt.Errorf("parse grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return VerifierConfig{}, fmt.Errorf("LEASEHOLD_GRANT_ISSUER is required")
	}
	if audience == "" {
		return VerifierConfig{}, fmt.Errorf("LEASEHOLD_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return VerifierConfig{}, fmt.Errorf("LEASEHOLD_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return VerifierConfig{}, fmt.Errorf("decode grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return VerifierConfig{}, fmt.Errorf("grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return VerifierConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Issue signs a grant for the given invite and recipient.
func Issue(expected Expectation, cfg SignerConfig) (string, error) {
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return "", errors.New("grant signer is not configured")
	}
	if cfg.TTL <= 0 {
		return "", errors.New("grant ttl must be positive")
	}
	if strings.TrimSpace(expected.InviteID) == "" ||
		strings.TrimSpace(expected.PropertyID) == "" ||
		strings.TrimSpace(expected.OccupantID) == "" {
		return "", errors.New("invite id, property id, and occupant id are required")
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	issuedAt := now().UTC()

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(cfg.TTL)),
		},
		InviteID:   expected.InviteID,
		PropertyID: expected.PropertyID,
		OccupantID: expected.OccupantID,
	})
	signed, err := token.SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return signed, nil
}

// Validate verifies a grant token and checks the expected claims.
func Validate(grant string, expected Expectation, cfg VerifierConfig) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("grant verifier is not configured")
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeGrantExpired, "grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant not active yet")
		}
	}

	if strings.TrimSpace(parsed.InviteID) == "" || parsed.InviteID != expected.InviteID {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant invite mismatch",
			map[string]string{"Field": "invite_id"},
		)
	}
	if strings.TrimSpace(parsed.PropertyID) == "" || parsed.PropertyID != expected.PropertyID {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant property mismatch",
			map[string]string{"Field": "property_id"},
		)
	}
	if strings.TrimSpace(parsed.OccupantID) == "" || parsed.OccupantID != expected.OccupantID {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant occupant mismatch",
			map[string]string{"Field": "occupant_id"},
		)
	}

	claims := Claims{
		Issuer:     parsed.Issuer,
		Audience:   []string(parsed.Audience),
		ExpiresAt:  exp,
		JWTID:      parsed.ID,
		InviteID:   parsed.InviteID,
		PropertyID: parsed.PropertyID,
		OccupantID: parsed.OccupantID,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeGrantInvalid, "grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeGrantInvalid, "grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeGrantInvalid, "grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
