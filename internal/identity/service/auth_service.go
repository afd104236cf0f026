package service

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/identity/domain"
	"tenantdesk/backend/internal/mail"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	orgdomain "tenantdesk/backend/internal/organization/domain"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/security"
	sessiondomain "tenantdesk/backend/internal/session/domain"
	"tenantdesk/backend/internal/tenancy"
	userdomain "tenantdesk/backend/internal/user/domain"
)

const (
	badCredentials = "No active account found with the given credentials"
	badToken       = "Token is invalid or expired"

	ResetSentMessage = "Password reset link has been sent to your email. Please check your inbox."
	ResetDoneMessage = "Your password has been successfully reset. You can now log in with your new password."
)

// UserUniqueErrors maps user constraints to field errors.
var UserUniqueErrors = map[string]error{
	"users_username_key": apperr.Invalid("username", "A user with that username already exists."),
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id int64) (*userdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	GetActiveByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	MarkSelfCreated(ctx context.Context, id int64) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID int64) error
	UpdateRefreshToken(ctx context.Context, id, jti, refreshTokenHash string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// OrgCreator creates an organization together with its owner member.
type OrgCreator interface {
	CreateWithOwner(ctx context.Context, o *orgdomain.Org, userID int64, nickname string) (*memberdomain.Member, error)
}

// SignupInput is the payload of a self-service signup.
type SignupInput struct {
	User     userdomain.User
	Password string
	OrgName  string
	OrgSlug  string
	Nickname string
}

// SignupResult is the new owner member and its tokens.
type SignupResult struct {
	Member *memberdomain.Member
	Tokens *domain.TokenResult
}

// AuthService implements password login, token rotation, password reset and signup.
type AuthService struct {
	tx       db.Transactor
	users    UserRepo
	sessions SessionRepo
	orgs     OrgCreator
	hasher   *security.PasswordHasher
	tokens   *security.TokenProvider
	queue    mail.Queue
	resetURL string
	now      func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. queue may be nil.
func NewAuthService(
	tx db.Transactor,
	users UserRepo,
	sessions SessionRepo,
	orgs OrgCreator,
	hasher *security.PasswordHasher,
	tokens *security.TokenProvider,
	queue mail.Queue,
	resetURL string,
) *AuthService {
	return &AuthService{
		tx:       tx,
		users:    users,
		sessions: sessions,
		orgs:     orgs,
		hasher:   hasher,
		tokens:   tokens,
		queue:    queue,
		resetURL: resetURL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Login checks username and password and opens a session without an active organization.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) (*domain.TokenResult, error) {
	if username == "" || password == "" {
		return nil, apperr.Unauthenticated(badCredentials)
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive || u.PasswordHash == "" {
		return nil, apperr.Unauthenticated(badCredentials)
	}
	if err := s.hasher.Verify(u.PasswordHash, password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			logger.Ctx(ctx).Warnw("stored password hash unreadable", "user_id", u.ID, "error", err)
		}
		return nil, apperr.Unauthenticated(badCredentials)
	}
	if s.hasher.NeedsRehash(u.PasswordHash) {
		s.upgradeHash(ctx, u, password)
	}
	if err := s.users.TouchLastLogin(ctx, u.ID, s.now()); err != nil {
		logger.Ctx(ctx).Warnw("last login update failed", "user_id", u.ID, "error", err)
	}
	return s.Issue(ctx, u, ip)
}

// upgradeHash re-hashes the password at the configured cost. Failures leave the old hash in place.
func (s *AuthService) upgradeHash(ctx context.Context, u *userdomain.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.SetPassword(ctx, u.ID, hash)
	}
	if err != nil {
		logger.Ctx(ctx).Warnw("password rehash failed", "user_id", u.ID, "error", err)
		return
	}
	u.PasswordHash = hash
}

// Issue opens a new session for u and returns its token pair.
func (s *AuthService) Issue(ctx context.Context, u *userdomain.User, ip string) (*domain.TokenResult, error) {
	sessionID := uuid.NewString()
	userID := strconv.FormatInt(u.ID, 10)
	refresh, jti, expiresAt, err := s.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, err
	}
	access, _, _, err := s.tokens.IssueAccess(sessionID, userID)
	if err != nil {
		return nil, err
	}
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           u.ID,
		ExpiresAt:        expiresAt,
		IPAddress:        ip,
		RefreshJti:       jti,
		RefreshTokenHash: security.HashRefreshToken(refresh),
		CreatedAt:        s.now(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &domain.TokenResult{
		TokenPair: domain.TokenPair{Access: access, Refresh: refresh},
		User:      u.Summary(),
	}, nil
}

// Refresh rotates the refresh token of a session. Presenting a superseded refresh token revokes
// every session of the user.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (*domain.TokenPair, error) {
	sessionID, jti, userID, err := s.tokens.ValidateRefresh(refresh)
	if err != nil {
		return nil, apperr.Unauthenticated(badToken)
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !sess.Active(now) || strconv.FormatInt(sess.UserID, 10) != userID {
		return nil, apperr.Unauthenticated(badToken)
	}
	if sess.RefreshJti != jti || !security.RefreshTokenHashEqual(refresh, sess.RefreshTokenHash) {
		if err := s.sessions.RevokeAllByUser(ctx, sess.UserID); err != nil {
			return nil, err
		}
		logger.Ctx(ctx).Warnw("refresh token reuse, sessions revoked", "user_id", sess.UserID, "session_id", sessionID)
		return nil, apperr.Unauthenticated(badToken)
	}
	newRefresh, newJti, _, err := s.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateRefreshToken(ctx, sessionID, newJti, security.HashRefreshToken(newRefresh)); err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateLastSeen(ctx, sessionID, now); err != nil {
		logger.Ctx(ctx).Warnw("session last seen update failed", "session_id", sessionID, "error", err)
	}
	access, _, _, err := s.tokens.IssueAccess(sessionID, userID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{Access: access, Refresh: newRefresh}, nil
}

// Verify reports whether token is a valid access token.
func (s *AuthService) Verify(token string) error {
	if _, _, err := s.tokens.ValidateAccess(token); err != nil {
		return apperr.Unauthenticated(badToken)
	}
	return nil
}

// Logout revokes the caller's current session.
func (s *AuthService) Logout(ctx context.Context, tc *tenancy.Context) error {
	if !tc.Authenticated() || tc.Session == nil {
		return apperr.ErrUnauthenticated
	}
	return s.sessions.Revoke(ctx, tc.Session.ID)
}

// RequestPasswordReset mails a reset link to the active user owning email.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.Invalid("email", "No user found with this email address.")
	}
	token, err := s.tokens.IssueReset(strconv.FormatInt(u.ID, 10), u.PasswordHash)
	if err != nil {
		return err
	}
	link := s.resetURL + "?" + url.Values{"uid": {EncodeUID(u.ID)}, "token": {token}}.Encode()
	msg, err := mail.PasswordReset(u.Email, u.FullName(), u.Username, link)
	if err != nil {
		return err
	}
	if s.queue == nil {
		logger.Ctx(ctx).Warnw("no mail queue configured, reset link not delivered", "user_id", u.ID)
		return nil
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		logger.Ctx(ctx).Errorw("password reset mail enqueue failed", "user_id", u.ID, "error", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password when uid and token match. All sessions of the user
// are revoked afterwards.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, uid, token, newPassword string) error {
	if len(newPassword) < userdomain.MinPasswordLength {
		return apperr.Invalidf("new_password", "Ensure this field has at least %d characters.", userdomain.MinPasswordLength)
	}
	id, ok := DecodeUID(uid)
	if !ok {
		return apperr.Invalid("uid", "Invalid UID.")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil || !u.IsActive {
		return apperr.Invalid("uid", "Invalid UID.")
	}
	if err := s.tokens.ValidateReset(token, strconv.FormatInt(u.ID, 10), u.PasswordHash); err != nil {
		return apperr.Invalid("token", "Invalid token.")
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, u.ID, hash); err != nil {
		return err
	}
	return s.sessions.RevokeAllByUser(ctx, u.ID)
}

// Signup creates a user, an organization and its owner member in one transaction and logs the
// new user in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, ip string) (*SignupResult, error) {
	u := in.User
	u.ID, u.IsActive, u.IsSuperuser = 0, true, false
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := userdomain.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	org := &orgdomain.Org{Name: in.OrgName, Slug: in.OrgSlug}
	if err := org.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	var member *memberdomain.Member
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, &u); err != nil {
			return db.UniqueError(err, UserUniqueErrors)
		}
		if err := s.users.MarkSelfCreated(ctx, u.ID); err != nil {
			return err
		}
		u.CreatedBy, u.UpdatedBy = &u.ID, &u.ID
		org.CreatedBy, org.UpdatedBy = &u.ID, &u.ID
		m, err := s.orgs.CreateWithOwner(ctx, org, u.ID, in.Nickname)
		if err != nil {
			return err
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	member.User = &u
	tokens, err := s.Issue(ctx, &u, ip)
	if err != nil {
		return nil, err
	}
	return &SignupResult{Member: member, Tokens: tokens}, nil
}

// EncodeUID renders a user id for reset links.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(uid string) (int64, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
