package customer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/logging"
	custrepo "storefront-orders/internal/repository/customer"
	tokenrepo "storefront-orders/internal/repository/token"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
)

// Service handles customer signup/login flows.
type Service struct {
	repo        custrepo.Repository
	tokens      *tokenManager
	logger      *zap.Logger
	accessTTL   time.Duration
	refreshTTL  time.Duration
	passwordMin int
}

// New creates a Service with sane defaults.
func New(repo custrepo.Repository, tokens tokenrepo.Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		tokens:      newTokenManager(tokens),
		logger:      logging.OrNop(logger).Named("customer"),
		accessTTL:   48 * time.Hour,
		refreshTTL:  30 * 24 * time.Hour,
		passwordMin: 8,
	}
}

// SignupInput captures fields expected by the signup endpoint. The delivery
// fields become checkout defaults.
type SignupInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	Address   string `json:"address"`
}

// Session is a freshly issued token pair.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// Signup registers a new customer within the given project and signs them in.
func (s *Service) Signup(ctx context.Context, projectID string, in SignupInput) (*domain.Customer, Session, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		return nil, Session{}, domain.Invalid("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, Session{}, domain.Invalid("email", "email is not valid")
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, Session{}, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Session{}, err
	}

	c, err := s.repo.Create(ctx, domain.Customer{
		ProjectID:    projectID,
		Email:        email,
		PasswordHash: string(hashed),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		City:         strings.TrimSpace(in.City),
		Address:      strings.TrimSpace(in.Address),
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, Session{}, fmt.Errorf("email %s: %w", email, err)
		}
		return nil, Session{}, err
	}
	session, err := s.issue(ctx, c)
	if err != nil {
		return nil, Session{}, err
	}
	s.logger.Info("customer signed up", zap.String("customer_id", c.ID), zap.String("project_id", projectID))
	return c, session, nil
}

// Login validates credentials and returns issued tokens plus the customer.
func (s *Service) Login(ctx context.Context, projectID, email, password string) (*domain.Customer, Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	password = strings.TrimSpace(password)
	c, err := s.repo.GetByEmail(ctx, projectID, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, Session{}, ErrInvalidCredentials
		}
		return nil, Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, Session{}, ErrInvalidCredentials
	}
	session, err := s.issue(ctx, c)
	if err != nil {
		return nil, Session{}, err
	}
	return c, session, nil
}

func (s *Service) issue(ctx context.Context, c *domain.Customer) (Session, error) {
	access, err := s.tokens.issue(ctx, c.ProjectID, c.ID, kindAccess, s.accessTTL)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.issue(ctx, c.ProjectID, c.ID, kindRefresh, s.refreshTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access, RefreshToken: refresh, ExpiresIn: int(s.accessTTL.Seconds())}, nil
}

// LookupByToken returns the customer bound to a valid access token.
func (s *Service) LookupByToken(ctx context.Context, projectID, token string) (*domain.Customer, error) {
	g, ok := s.tokens.check(ctx, projectID, token, kindAccess)
	if !ok {
		return nil, ErrInvalidToken
	}
	return s.customer(ctx, projectID, g.CustomerID)
}

// Refresh trades a refresh token for a new session. The old refresh token is
// spent even if issuing the new pair fails.
func (s *Service) Refresh(ctx context.Context, projectID, refreshToken string) (*domain.Customer, Session, error) {
	g, ok := s.tokens.redeem(ctx, projectID, strings.TrimSpace(refreshToken))
	if !ok {
		return nil, Session{}, ErrInvalidToken
	}
	c, err := s.customer(ctx, projectID, g.CustomerID)
	if err != nil {
		return nil, Session{}, err
	}
	session, err := s.issue(ctx, c)
	if err != nil {
		return nil, Session{}, err
	}
	return c, session, nil
}

// Logout revokes the given tokens. Tokens that are already gone are ignored.
func (s *Service) Logout(ctx context.Context, projectID string, tokens ...string) error {
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if err := s.tokens.revoke(ctx, projectID, t); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
	}
	return nil
}

// ContactInput updates the delivery defaults used at checkout. Nil fields are
// left unchanged.
type ContactInput struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	City      *string `json:"city"`
	Address   *string `json:"address"`
}

// UpdateContact changes the customer's stored contact fields.
func (s *Service) UpdateContact(ctx context.Context, projectID, customerID string, in ContactInput) (*domain.Customer, error) {
	if in.Phone != nil {
		if p := strings.TrimSpace(*in.Phone); p != "" && len(domain.PhoneDigits(p)) < minPhoneDigits {
			return nil, domain.Invalid("phone", "phone must contain at least %d digits", minPhoneDigits)
		}
	}
	c, err := s.repo.UpdateContact(ctx, projectID, customerID, func(c *domain.Customer) {
		set := func(dst *string, v *string) {
			if v != nil {
				*dst = strings.TrimSpace(*v)
			}
		}
		set(&c.FirstName, in.FirstName)
		set(&c.LastName, in.LastName)
		set(&c.Phone, in.Phone)
		set(&c.City, in.City)
		set(&c.Address, in.Address)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer contact updated", zap.String("customer_id", customerID))
	return c, nil
}

func (s *Service) customer(ctx context.Context, projectID, id string) (*domain.Customer, error) {
	c, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return c, nil
}

const minPhoneDigits = 8

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return domain.Invalid("password", "password must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return domain.Invalid("password", "password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}
