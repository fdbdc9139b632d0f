package services

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"strings"

	"folio/internal/config"
	"folio/internal/core/contracts"
	"folio/internal/core/domain"
	"folio/pkg/logging"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const (
	ModeLogin    = "login"
	ModeRegister = "register"
)

const (
	passwordLength   = 8
	passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type AuthRequest struct {
	Mode     string
	Name     string
	Email    string
	Password string
}

// AuthResult carries the outcome of login or registration. Password is
// set only for a brand-new registration: it is the one moment the
// generated credential exists in plaintext.
type AuthResult struct {
	Token     string
	User      *domain.User
	IsNewUser bool
	Password  string
}

type IAuthService interface {
	Authenticate(ctx context.Context, req AuthRequest) (*AuthResult, error)
	Verify(ctx context.Context, token string) (*domain.User, error)
	EnsureAdmin(ctx context.Context) error
}

type AuthService struct {
	log    *slog.Logger
	users  domain.UserRepository
	tokens *TokenService
	mailer contracts.Mailer
	tx     TxRunner
	cfg    *config.AuthConfig
}

func NewAuthService(
	log *slog.Logger,
	users domain.UserRepository,
	tokens *TokenService,
	mailer contracts.Mailer,
	tx TxRunner,
	cfg *config.AuthConfig,
) *AuthService {
	return &AuthService{
		log:    log,
		users:  users,
		tokens: tokens,
		mailer: mailer,
		tx:     tx,
		cfg:    cfg,
	}
}

func (s *AuthService) Authenticate(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Authenticate", trace.WithAttributes(
		attribute.String("mode", req.Mode),
	))
	defer span.End()
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	switch req.Mode {
	case ModeLogin:
		return s.login(ctx, req)
	case ModeRegister:
		return s.register(ctx, req)
	default:
		span.RecordError(domain.ErrInvalidMode)
		return nil, domain.ErrInvalidMode
	}
}

func (s *AuthService) login(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	if req.Email == "" {
		return nil, domain.ErrEmailRequired
	}
	if req.Password == "" {
		return nil, domain.ErrPasswordRequired
	}
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.log.InfoContext(ctx, "auth - login - bad credentials", logging.Email(req.Email))
		return nil, domain.ErrBadCredentials
	}
	token, err := s.tokens.Generate(user)
	if err != nil {
		s.log.ErrorContext(ctx, "auth - login - token generation failed",
			logging.User(user.ID.String()), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "auth - login - success", logging.User(user.ID.String()))
	return &AuthResult{Token: token, User: user, IsNewUser: false}, nil
}

func (s *AuthService) register(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	if req.Name == "" {
		return nil, domain.ErrNameRequired
	}
	if req.Email == "" {
		return nil, domain.ErrEmailRequired
	}
	existing, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		return s.registerExisting(ctx, existing)
	}
	password, err := generatePassword(passwordLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := domain.NewUser(req.Name, req.Email, string(hash), domain.RoleVisitor)
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		return s.users.CreateUser(txCtx, user)
	}); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			// A concurrent registration won the insert between our
			// lookup and create; treat it like any existing account.
			winner, lookupErr := s.users.GetUserByEmail(ctx, req.Email)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return s.registerExisting(ctx, winner)
		}
		s.log.ErrorContext(ctx, "auth - register - create user failed",
			logging.Email(req.Email), logging.Err(err))
		return nil, err
	}
	return s.issueSession(ctx, user, password)
}

// registerExisting handles a register attempt against an account that is
// already stored. Contact-form records carry no credential yet, so their
// registration completes in place; everything else gets the log-in
// reminder and the isNewUser:false sentinel.
func (s *AuthService) registerExisting(ctx context.Context, existing *domain.User) (*AuthResult, error) {
	if existing.PasswordHash == "" {
		password, err := generatePassword(passwordLength)
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
			return s.users.SetPasswordHash(txCtx, existing.ID, string(hash))
		}); err != nil {
			s.log.ErrorContext(ctx, "auth - register - install credential failed",
				logging.User(existing.ID.String()), logging.Err(err))
			return nil, err
		}
		existing.PasswordHash = string(hash)
		return s.issueSession(ctx, existing, password)
	}
	// Hashes are one-way so the original password cannot be resent.
	// Remind the visitor the account exists and let them log in.
	if err := s.mailer.SendAccountReminder(ctx, existing.Email, existing.Name); err != nil {
		s.log.ErrorContext(ctx, "auth - register - reminder mail failed",
			logging.Email(existing.Email), logging.Err(err))
	}
	s.log.InfoContext(ctx, "auth - register - account already exists",
		logging.Email(existing.Email))
	return &AuthResult{User: existing, IsNewUser: false}, nil
}

// issueSession mails the generated password and signs the first token of
// a fresh chat registration.
func (s *AuthService) issueSession(ctx context.Context, user *domain.User, password string) (*AuthResult, error) {
	if err := s.mailer.SendPassword(ctx, user.Email, user.Name, password); err != nil {
		s.log.ErrorContext(ctx, "auth - register - password mail failed",
			logging.User(user.ID.String()), logging.Err(err))
	}
	token, err := s.tokens.Generate(user)
	if err != nil {
		s.log.ErrorContext(ctx, "auth - register - token generation failed",
			logging.User(user.ID.String()), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "auth - register - success", logging.User(user.ID.String()))
	return &AuthResult{Token: token, User: user, IsNewUser: true, Password: password}, nil
}

// Verify resolves a bearer token to its live user record, so a deleted
// account fails even while its token is still unexpired.
func (s *AuthService) Verify(ctx context.Context, token string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Verify")
	defer span.End()
	claims, err := s.tokens.Validate(token)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		span.RecordError(err)
		return nil, err
	}
	return user, nil
}

// EnsureAdmin upserts the operator account from configuration at boot.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "AuthService.EnsureAdmin")
	defer span.End()
	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		s.log.WarnContext(ctx, "auth - ensure admin - skipped, no admin credentials configured")
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(s.cfg.AdminEmail))
	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		span.RecordError(err)
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	name := s.cfg.AdminName
	if name == "" {
		name = "Admin"
	}
	admin := domain.NewUser(name, email, string(hash), domain.RoleAdmin)
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		return s.users.CreateUser(txCtx, admin)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create admin failed")
		s.log.ErrorContext(ctx, "auth - ensure admin - create failed",
			logging.Email(email), logging.Err(err))
		return err
	}
	s.log.InfoContext(ctx, "auth - ensure admin - admin account created",
		logging.User(admin.ID.String()))
	return nil
}

func generatePassword(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
