package accounts

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// operationTimeout bounds every manager operation end to end.
var operationTimeout = 10 * time.Second

// RegisterInput carries a registration request.
type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	ImageName       string `json:"image_name"`
	Image           []byte `json:"-"`
	UseHashid       bool   `json:"-"`
}

// Validate checks every registration precondition with a distinct message
// per condition so clients can render specific feedback.
func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required,
			validation.By(ValidateNoForbiddenChars),
		),
		validation.Field(&r.Email,
			validation.Required,
			validation.By(ValidateNoForbiddenChars),
			validation.By(ValidateEmailShape),
		),
		validation.Field(&r.Password,
			validation.Required,
			validation.By(ValidatePasswordStrength),
		),
		validation.Field(&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.Image, validation.Required),
	)
}

// ResetPasswordInput carries a password reset redemption.
type ResetPasswordInput struct {
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
	Code               string `json:"code"`
}

// Validate applies the same strength and match policy as registration.
func (r ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewPassword,
			validation.Required,
			validation.By(ValidatePasswordStrength),
		),
		validation.Field(&r.ConfirmNewPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
		validation.Field(&r.Code, validation.Required),
	)
}

// LoginResult is what a verified login hands back: the session credential
// and the public projection of the account. The password hash is never
// part of it.
type LoginResult struct {
	Token string         `json:"token"`
	User  *PublicProfile `json:"user"`
}

// LifecycleManager orchestrates registration, verification, login gating
// and password recovery over the credential and token stores.
type LifecycleManager struct {
	users  CredentialStore
	tokens TokenStore
	issuer *TokenIssuer
	images ImageStore
	hasher PasswordAuthenticator
	minter TokenService
	logger Logger
}

// NewLifecycleManager creates a manager with sane defaults.
func NewLifecycleManager(users CredentialStore, tokens TokenStore, issuer *TokenIssuer, images ImageStore, minter TokenService) *LifecycleManager {
	return &LifecycleManager{
		users:  users,
		tokens: tokens,
		issuer: issuer,
		images: images,
		hasher: BcryptHasher{},
		minter: minter,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the manager.
func (m *LifecycleManager) WithLogger(logger Logger) *LifecycleManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithPasswordAuthenticator overrides the password hasher.
func (m *LifecycleManager) WithPasswordAuthenticator(hasher PasswordAuthenticator) *LifecycleManager {
	if hasher != nil {
		m.hasher = hasher
	}
	return m
}

// Register creates an unverified account, stores its profile picture,
// issues a verification token and triggers delivery. Registration
// succeeds once the account and token are persisted; email delivery is
// fire and forget.
func (m *LifecycleManager) Register(ctx context.Context, input RegisterInput) (*PublicProfile, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during registration")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	if err := input.Validate(); err != nil {
		return nil, newValidationError(err.Error())
	}

	if _, err := m.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, newConflictError("email already exists", TextCodeEmailTaken)
	} else if !IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}

	image, err := m.images.Store(ctx, input.ImageName, input.Image)
	if err != nil {
		return nil, newUpstreamError(err, "unable to store profile image")
	}

	passwordHash, err := m.hasher.HashPassword(input.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Image:        *image,
	}
	if input.UseHashid {
		if id, err := hashid.NewUUID(input.Email); err == nil {
			user.ID = id
		}
	}

	user, err = m.users.Create(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	token, err := m.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue verification token")
	}

	m.issuer.DispatchAsync(user, token, MailKindVerify)

	return user.PublicProfile(), nil
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller. Valid credentials against an
// unverified account re-send a verification code and fail without
// leaking a session.
func (m *LifecycleManager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during login")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	email = strings.TrimSpace(email)

	if email == "" || password == "" {
		return nil, newValidationError("all fields are required")
	}

	if err := ValidateEmailShape(email); err != nil {
		return nil, newValidationError("email: " + err.Error())
	}

	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := m.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		// Re-deliver a verification code, reusing a live one if present.
		token, err := m.issuer.Issue(ctx, user.ID)
		if err != nil {
			m.logger.Error("failed to re-issue verification token", "user", user.ID, "error", err)
		} else {
			m.issuer.DispatchAsync(user, token, MailKindVerify)
		}
		return nil, ErrAccountUnverified
	}

	sessionToken, err := m.minter.Generate(user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint session token")
	}

	return &LoginResult{
		Token: sessionToken,
		User:  user.PublicProfile(),
	}, nil
}

// VerifyAccount redeems a verification code: flips the account to
// verified and consumes the token. Redeeming a consumed or expired code
// fails with a not found error.
func (m *LifecycleManager) VerifyAccount(ctx context.Context, code string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if code == "" {
		return newValidationError("code is required")
	}

	token, err := m.tokens.GetLiveByCode(ctx, code)
	if err != nil {
		if IsNotFound(err) {
			return newNotFoundError("token not found", TextCodeTokenNotFound)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up token")
	}

	if _, err := m.users.GetByID(ctx, token.UserID); err != nil {
		if IsNotFound(err) {
			return newNotFoundError("user not found", TextCodeAccountNotFound)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve token owner")
	}

	// Idempotent: flipping an already verified account is a no-op.
	if err := m.users.SetVerified(ctx, token.UserID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account verified")
	}

	if err := m.tokens.Delete(ctx, token.ID); err != nil && !IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume token")
	}

	return nil
}

// ForgotPassword issues (or re-delivers) a reset code. Unlike
// registration, success here depends on confirmed delivery: a mail
// transport failure surfaces to the caller.
func (m *LifecycleManager) ForgotPassword(ctx context.Context, email string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password recovery")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	email = strings.TrimSpace(email)

	if email == "" {
		return newValidationError("please provide your email address")
	}

	if err := ValidateEmailShape(email); err != nil {
		return newValidationError("email: " + err.Error())
	}

	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return newNotFoundError("user can not be found", TextCodeAccountNotFound)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password recovery")
	}

	token, err := m.issuer.Issue(ctx, user.ID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue reset token")
	}

	return m.issuer.Dispatch(ctx, user, token, MailKindReset)
}

// ResetPassword redeems a reset code: stores the new secret and consumes
// the token so it cannot be replayed.
func (m *LifecycleManager) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if err := input.Validate(); err != nil {
		return newValidationError(err.Error())
	}

	token, err := m.tokens.GetLiveByCode(ctx, input.Code)
	if err != nil {
		if IsNotFound(err) {
			return newNotFoundError("token not found", TextCodeTokenNotFound)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up token")
	}

	user, err := m.users.GetByID(ctx, token.UserID)
	if err != nil {
		if IsNotFound(err) {
			return newNotFoundError("user not found", TextCodeAccountNotFound)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve token owner")
	}

	passwordHash, err := m.hasher.HashPassword(input.NewPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash new password")
	}

	if err := m.users.SetPasswordHash(ctx, user.ID, passwordHash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	if err := m.tokens.Delete(ctx, token.ID); err != nil && !IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume token")
	}

	return nil
}

// SessionFromToken resolves a session credential back to a session object.
func (m *LifecycleManager) SessionFromToken(tokenString string) (*SessionObject, error) {
	claims, err := m.minter.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return sessionFromClaims(claims), nil
}

// Profile returns the public projection of a single account.
func (m *LifecycleManager) Profile(ctx context.Context, id uuid.UUID) (*PublicProfile, error) {
	user, err := m.users.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, newNotFoundError("couldn't find recipient", TextCodeAccountNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}
	return user.PublicProfile(), nil
}

// ListOthers returns the public projections of every account except the
// caller's.
func (m *LifecycleManager) ListOthers(ctx context.Context, exclude uuid.UUID) ([]*PublicProfile, error) {
	profiles, err := m.users.ListProfilesExcept(ctx, exclude)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}
	return profiles, nil
}
