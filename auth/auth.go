package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"trattoria/globals"
	"trattoria/middleware"
	"trattoria/models"
	"trattoria/rdx"
	"trattoria/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("User already exists")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrNotVerified        = errors.New("Account not verified. Please check your email for the OTP.")
	ErrInvalidOTP         = errors.New("Invalid or expired OTP")
	ErrInvalidResetToken  = errors.New("Invalid or expired reset token")
	ErrUserNotFound       = errors.New("User not found")
	ErrMailFailed         = errors.New("Failed to send email")
)

type UserStore interface {
	// Exists reports whether a user with this email or username exists.
	Exists(ctx context.Context, email, username string) (bool, error)
	Insert(ctx context.Context, u *models.User) error
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id string) (*models.User, error)
	MarkVerified(ctx context.Context, email string) error
	SetPassword(ctx context.Context, email, hash string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

type Service struct {
	users   UserStore
	codes   Codes
	mail    Mailer
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

func NewService(users UserStore, codes Codes, mail Mailer, secret []byte, ttl time.Duration, baseURL string) *Service {
	return &Service{users: users, codes: codes, mail: mail, secret: secret, ttl: ttl, baseURL: baseURL, now: time.Now}
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=40"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// Register creates an unverified user and mails a 6-digit OTP.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	exists, err := s.users.Exists(ctx, in.Email, in.Username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	otp := GenerateOTP()
	if err := s.codes.Set(ctx, "otp:"+in.Email, otp, otpTTL); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}
	if err := s.mail.Send(in.Email, "Email Verification", "Your OTP is: "+otp); err != nil {
		log.Error().Err(err).Str("email", in.Email).Msg("failed to send OTP")
		return nil, ErrMailFailed
	}

	u := &models.User{
		ID:        utils.GetUUID(),
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hash),
		Phone:     in.Phone,
		Role:      []string{globals.RoleUser},
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.Insert(ctx, u); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	log.Info().Str("user", u.ID).Msg("user registered")
	return u, nil
}

func (s *Service) VerifyOTP(ctx context.Context, email, otp string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	stored, err := s.codes.Get(ctx, "otp:"+email)
	if errors.Is(err, rdx.ErrNil) || (err == nil && stored != otp) {
		return ErrInvalidOTP
	}
	if err != nil {
		return fmt.Errorf("read otp: %w", err)
	}
	if err := s.users.MarkVerified(ctx, email); err != nil {
		return err
	}
	if err := s.codes.Del(ctx, "otp:"+email); err != nil {
		log.Warn().Err(err).Msg("failed to clear OTP")
	}
	return nil
}

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Login checks credentials of a verified user and issues a JWT.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.ByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Verified {
		return nil, ErrNotVerified
	}

	now := s.now()
	exp := now.Add(s.ttl)
	claims := &middleware.Claims{
		Username: u.Username,
		UserID:   u.ID,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utils.GetUUID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := s.users.TouchLogin(ctx, u.ID, now.UTC()); err != nil {
		log.Warn().Err(err).Str("user", u.ID).Msg("failed to record last login")
	}
	return &Session{Token: token, ExpiresAt: exp.UTC(), User: u}, nil
}

// Logout denylists the token id until the token would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *middleware.Claims) error {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.codes.Set(ctx, "revoked:"+claims.ID, "1", ttl)
}

// IsRevoked is the lookup the auth middleware uses.
func (s *Service) IsRevoked(ctx context.Context, jti string) bool {
	ok, err := s.codes.Exists(ctx, "revoked:"+jti)
	if err != nil {
		log.Warn().Err(err).Msg("token revocation lookup failed")
	}
	return ok
}

// ForgotPassword mails a reset link. Unknown emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.users.ByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	token, err := randomToken()
	if err != nil {
		return err
	}
	if err := s.codes.Set(ctx, "reset:"+token, email, resetTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	link := s.baseURL + "/reset-password?token=" + token
	if err := s.mail.Send(email, "Password Reset", "Reset your password: "+link); err != nil {
		log.Error().Err(err).Str("email", email).Msg("failed to send reset link")
		return ErrMailFailed
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < 6 {
		return utils.Invalid("password must be at least 6 characters")
	}
	email, err := s.codes.Get(ctx, "reset:"+token)
	if errors.Is(err, rdx.ErrNil) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPassword(ctx, email, string(hash)); err != nil {
		return err
	}
	return s.codes.Del(ctx, "reset:"+token)
}

func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.users.ByID(ctx, userID)
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
