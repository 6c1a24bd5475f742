package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

const workflowTimeout = 10 * time.Second

// AuthSessionService orchestrates the registration, login, activation, and
// password reset workflows and emits session-establishment events.
type AuthSessionService struct {
	repo           RepositoryManager
	cfg            Config
	hasher         *Hasher
	auth           *PasswordAuthenticator
	sessions       *SessionService
	activation     *ActivationCodec
	activationMail *ActivationMailer
	resetMail      *ResetMailer
	events         EventSink
	logger         Logger
}

// ServiceOption configures the session service.
type ServiceOption func(*AuthSessionService)

// WithLogger sets the service logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *AuthSessionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventSink sets the sink receiving auth events.
func WithEventSink(sink EventSink) ServiceOption {
	return func(s *AuthSessionService) {
		s.events = normalizeEventSink(sink)
	}
}

// WithHasher overrides the password hasher.
func WithHasher(hasher *Hasher) ServiceOption {
	return func(s *AuthSessionService) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithSessionService overrides the session token service.
func WithSessionService(sessions *SessionService) ServiceOption {
	return func(s *AuthSessionService) {
		if sessions != nil {
			s.sessions = sessions
		}
	}
}

// NewAuthSessionService wires the service from repositories, auth options,
// and an outbound mail transport.
func NewAuthSessionService(repo RepositoryManager, cfg Config, mailer Mailer, opts ...ServiceOption) *AuthSessionService {
	s := &AuthSessionService{
		repo:   repo,
		cfg:    cfg,
		hasher: NewHasher(),
		events: noopEventSink{},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.sessions == nil {
		s.sessions = NewSessionService(cfg, s.logger)
	}

	s.auth = NewPasswordAuthenticator(repo.Accounts(), s.hasher)
	s.activation = NewActivationCodec([]byte(cfg.GetSigningKey()), cfg.GetActivationTokenTTL())
	s.activationMail = NewActivationMailer(mailer, cfg, s.logger)
	s.resetMail = NewResetMailer(mailer, cfg, s.logger)

	return s
}

// ActivationMailer exposes the activation mailer for content overrides.
func (s *AuthSessionService) ActivationMailer() *ActivationMailer {
	return s.activationMail
}

// ResetMailer exposes the reset mailer for content overrides.
func (s *AuthSessionService) ResetMailer() *ResetMailer {
	return s.resetMail
}

// Sessions exposes the session token service.
func (s *AuthSessionService) Sessions() *SessionService {
	return s.sessions
}

// RegisterInput carries a registration form.
type RegisterInput struct {
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Locale      string `json:"locale"`
	Timezone    string `json:"timezone"`
	// UseHashid derives a deterministic account ID from the email.
	UseHashid bool `json:"-"`
}

// RegisterResult is the outcome of a registration.
type RegisterResult struct {
	Account *Account
	// Token is a minted session when activation is not required.
	Token string
	// ActivationRequired means no session was established and an
	// activation mail went out.
	ActivationRequired bool
}

// Register creates an account from a password credential. When activation
// is required the account starts inactive and the activation mail is sent
// after the account commits; a delivery failure is returned alongside the
// committed result so the caller can offer a resend.
func (s *AuthSessionService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during registration")
	default:
		return s.register(ctx, input)
	}
}

func (s *AuthSessionService) register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	ctx, cancel := context.WithTimeout(ctx, workflowTimeout)
	defer cancel()

	email := strings.TrimSpace(input.Email)

	// Fast-path rejection for UX. The unique index remains the authority,
	// a concurrent insert still surfaces as DuplicateIdentity from Create.
	if exists, err := s.repo.Accounts().ExistsWithEmail(ctx, email); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	} else if exists {
		return nil, ErrDuplicateIdentity
	}

	account := &Account{
		Name:        input.Name,
		CompanyName: input.CompanyName,
		Email:       email,
		Locale:      input.Locale,
		Timezone:    input.Timezone,
		Active:      !s.cfg.GetRequireActivation(),
	}

	if input.UseHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			account.ID = id
		}
	}

	if err := s.hasher.SetPassword(account, input.Password); err != nil {
		return nil, err
	}

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.Accounts().CreateTx(ctx, tx, account)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		if IsDuplicateIdentity(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}

	s.record(ctx, Event{
		Type:      EventRegistered,
		AccountID: account.ID.String(),
	})

	result := &RegisterResult{Account: account}

	if s.cfg.GetRequireActivation() {
		result.ActivationRequired = true

		token, err := s.activation.Issue(account.Email)
		if err != nil {
			return result, err
		}
		if err := s.activationMail.Send(ctx, account, token); err != nil {
			// The account is committed; the caller can resend later.
			return result, err
		}
		return result, nil
	}

	token, err := s.sessions.Mint(account)
	if err != nil {
		return result, err
	}
	result.Token = token

	return result, nil
}

// LoginResult is the outcome of a password login.
type LoginResult struct {
	Account *Account
	Token   string
	// NeedsActivation means credentials were correct but the account has
	// not completed activation. No session was established.
	NeedsActivation bool
}

// Login authenticates a password credential and mints a session. Unknown
// email and wrong password both return ErrInvalidCredentials so the
// response never reveals which one happened.
func (s *AuthSessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during login")
	default:
		return s.login(ctx, email, password)
	}
}

func (s *AuthSessionService) login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, workflowTimeout)
	defer cancel()

	status, account, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if status != AuthOK {
		s.record(ctx, Event{
			Type:     EventLoginFailure,
			Metadata: map[string]any{"email": email},
		})
		return nil, ErrInvalidCredentials
	}

	if account.Suspended {
		s.record(ctx, Event{
			Type:      EventLoginFailure,
			AccountID: account.ID.String(),
			Metadata:  map[string]any{"reason": "suspended"},
		})
		return nil, ErrAccountSuspended
	}

	if !account.Active && s.cfg.GetRequireActivation() {
		return &LoginResult{Account: account, NeedsActivation: true}, nil
	}

	token, err := s.sessions.Mint(account)
	if err != nil {
		return nil, err
	}

	s.record(ctx, Event{
		Type:      EventLoginSuccess,
		AccountID: account.ID.String(),
	})

	return &LoginResult{Account: account, Token: token}, nil
}

// Activate verifies an activation token and marks the account active.
// A token whose email matches no account reads as an invalid key, the
// caller redirects to registration.
func (s *AuthSessionService) Activate(ctx context.Context, token string) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during activation")
	default:
		return s.activate(ctx, token)
	}
}

func (s *AuthSessionService) activate(ctx context.Context, token string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, workflowTimeout)
	defer cancel()

	email, err := s.activation.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if !account.Active {
		if err := s.repo.Accounts().Activate(ctx, account.ID); err != nil {
			return nil, err
		}
		account.Active = true
	}

	s.record(ctx, Event{
		Type:      EventActivated,
		AccountID: account.ID.String(),
	})

	return account, nil
}

// ResendActivation issues a fresh activation mail. Whether the email is
// registered is never revealed: unknown and already-active addresses
// return success without sending anything.
func (s *AuthSessionService) ResendActivation(ctx context.Context, email string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during activation resend")
	default:
		return s.resendActivation(ctx, email)
	}
}

func (s *AuthSessionService) resendActivation(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, workflowTimeout)
	defer cancel()

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	if account.Active {
		return nil
	}

	token, err := s.activation.Issue(account.Email)
	if err != nil {
		return err
	}

	return s.activationMail.Send(ctx, account, token)
}

// RequestPasswordReset stores a fresh reset key on the account and mails
// the reset link. The same non-committal outcome covers unknown emails.
func (s *AuthSessionService) RequestPasswordReset(ctx context.Context, email string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during reset request")
	default:
		return s.requestPasswordReset(ctx, email)
	}
}

func (s *AuthSessionService) requestPasswordReset(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, workflowTimeout)
	defer cancel()

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	key, err := NewResetKey()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset key")
	}

	if err := s.repo.Accounts().SetResetKey(ctx, account.ID, key); err != nil {
		return err
	}

	return s.resetMail.Send(ctx, account, key)
}

// CompletePasswordReset swaps the credential for the account matching the
// email and reset key. The key is consumed in the same transaction as the
// password update.
func (s *AuthSessionService) CompletePasswordReset(ctx context.Context, email, key, password string) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during reset completion")
	default:
		return s.completePasswordReset(ctx, email, key, password)
	}
}

func (s *AuthSessionService) completePasswordReset(ctx context.Context, email, key, password string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, workflowTimeout)
	defer cancel()

	account, err := s.repo.Accounts().GetByEmailAndResetKey(ctx, email, key)
	if err != nil {
		return nil, err
	}

	if err := s.hasher.SetPassword(account, password); err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Accounts().CompletePasswordResetTx(ctx, tx, account.ID, account.PasswordSalt, account.PasswordHash)
	})
	if err != nil {
		return nil, err
	}
	account.ResetKey = ""

	s.record(ctx, Event{
		Type:      EventPasswordReset,
		AccountID: account.ID.String(),
	})

	return account, nil
}

func (s *AuthSessionService) record(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := s.events.Record(ctx, event); err != nil {
		s.logger.Warn("event sink rejected %s: %v", event.Type, err)
	}
}
