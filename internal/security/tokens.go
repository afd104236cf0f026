package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed for another issuer/audience.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenTypeReset   = "password_reset"
)

// AccessClaims holds JWT claims for the access token. Subject is the user id.
// The active organization is not carried here; it lives on the session row.
type AccessClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	SessionID string `json:"session_id"`
}

// RefreshClaims holds JWT claims for the refresh token (jti is bound to the session for rotation).
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	SessionID string `json:"session_id"`
}

// ResetClaims holds JWT claims for a password reset token. Fingerprint is derived from the
// password hash at issue time so the token stops validating once the password changes.
type ResetClaims struct {
	jwt.RegisteredClaims
	TokenType   string `json:"token_type"`
	Fingerprint string `json:"fp"`
}

// TokenProvider issues and validates JWTs using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on parse.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   72 * time.Hour,
	}
}

// WithResetTTL sets the password reset token lifetime and returns p.
func (p *TokenProvider) WithResetTTL(ttl time.Duration) *TokenProvider {
	if ttl > 0 {
		p.resetTTL = ttl
	}
	return p
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access JWT for the given session and user.
// Returns the token string, its jti, and expiration time.
func (p *TokenProvider) IssueAccess(sessionID, userID string) (token string, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: p.registered(jti, userID, now, expiresAt),
		TokenType:        tokenTypeAccess,
		SessionID:        sessionID,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT and returns the token, its jti
// (for rotation binding), and expiration time. Caller should store jti on the session.
func (p *TokenProvider) IssueRefresh(sessionID, userID string) (token, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: p.registered(jti, userID, now, expiresAt),
		TokenType:        tokenTypeRefresh,
		SessionID:        sessionID,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

// IssueReset issues a password reset token for userID bound to the current password hash.
func (p *TokenProvider) IssueReset(userID, passwordHash string) (string, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := ResetClaims{
		RegisteredClaims: p.registered(jti, userID, now, now.Add(p.resetTTL)),
		TokenType:        tokenTypeReset,
		Fingerprint:      PasswordFingerprint(passwordHash),
	}
	return p.sign(claims)
}

// ValidateRefresh parses and validates the refresh token (signature, exp, iss, aud).
// Returns sessionID, jti, userID, or error.
func (p *TokenProvider) ValidateRefresh(tokenString string) (sessionID, jti, userID string, err error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims); err != nil || claims.TokenType != tokenTypeRefresh {
		return "", "", "", ErrInvalidToken
	}
	return claims.SessionID, claims.ID, claims.Subject, nil
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud).
// Returns sessionID, userID, or error.
func (p *TokenProvider) ValidateAccess(tokenString string) (sessionID, userID string, err error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims); err != nil || claims.TokenType != tokenTypeAccess {
		return "", "", ErrInvalidToken
	}
	return claims.SessionID, claims.Subject, nil
}

// ValidateReset checks a password reset token against userID and the user's current password hash.
func (p *TokenProvider) ValidateReset(tokenString, userID, passwordHash string) error {
	claims := &ResetClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return ErrInvalidToken
	}
	if claims.TokenType != tokenTypeReset || claims.Subject != userID {
		return ErrInvalidToken
	}
	if !hashEqual(claims.Fingerprint, PasswordFingerprint(passwordHash)) {
		return ErrInvalidToken
	}
	return nil
}

func (p *TokenProvider) registered(jti, subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithIssuer(p.issuer))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	aud, err := claims.GetAudience()
	if err != nil || !slices.Contains(aud, p.audience) {
		return ErrInvalidToken
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
