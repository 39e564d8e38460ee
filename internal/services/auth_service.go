package services

import (
	"errors"
	"fmt"
	"time"

	"tradepost/internal/domain"
	"tradepost/internal/mail"
	"tradepost/internal/repos"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCreds   = errors.New("invalid email or password")
	ErrEmailTaken = errors.New("email already registered")
	ErrSuspended  = errors.New("account suspended")
	ErrBadToken   = errors.New("invalid or expired token")
)

type AuthService struct {
	Users *repos.UserRepo
	Mail  *mail.Mailer

	Secret   string
	TokenTTL time.Duration
}

// Register creates an account and queues the verification mail. New sellers
// start unapproved and cannot list products until an admin clears them.
func (s *AuthService) Register(email, name, phone, password, role string) (*domain.User, error) {
	if !domain.ValidRole(role) {
		return nil, fmt.Errorf("role must be %s or %s", domain.RoleBuyer, domain.RoleSeller)
	}
	if _, err := s.Users.ByEmail(email); err == nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:          uuid.NewString(),
		Email:       email,
		Name:        name,
		Phone:       phone,
		Hash:        string(hash),
		Role:        role,
		Status:      domain.StatusActive,
		VerifyToken: uuid.NewString(),
	}
	if err := s.Users.Create(u); err != nil {
		return nil, err
	}
	go s.Mail.SendVerification(u.Email, u.Name, u.VerifyToken)
	return u, nil
}

// Login checks credentials and mints a bearer token. Suspended accounts are
// told apart from bad credentials so the client can show the right message.
func (s *AuthService) Login(email, password string) (*domain.User, string, error) {
	u, err := s.Users.ByEmail(email)
	if err != nil {
		return nil, "", ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, "", ErrBadCreds
	}
	if u.Suspended() {
		return nil, "", ErrSuspended
	}
	token, err := s.mintToken(u)
	if err != nil {
		return nil, "", err
	}
	_ = s.Users.TouchLogin(u.ID)
	return u, token, nil
}

// VerifyEmail consumes a verification token. Tokens are single-use.
func (s *AuthService) VerifyEmail(token string) (*domain.User, error) {
	u, err := s.Users.ByVerifyToken(token)
	if err != nil {
		return nil, ErrBadToken
	}
	if err := s.Users.MarkVerified(u.ID); err != nil {
		return nil, err
	}
	u.EmailVerified = true
	u.VerifyToken = ""
	return u, nil
}

func (s *AuthService) UpdateProfile(userID, name, phone string) (*domain.User, error) {
	if err := s.Users.UpdateProfile(userID, name, phone); err != nil {
		return nil, err
	}
	return s.Users.ByID(userID)
}

// ChangePassword swaps the credential after re-checking the current one.
// Tokens minted before the change stay valid until they expire.
func (s *AuthService) ChangePassword(userID, current, next string) error {
	u, err := s.Users.ByID(userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(current)) != nil {
		return ErrBadCreds
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), 12)
	if err != nil {
		return err
	}
	return s.Users.SetPassword(userID, string(hash))
}

func (s *AuthService) mintToken(u *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": u.Role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(s.TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
}

// UserFromToken validates a bearer token and loads its account. Expired or
// forged tokens and tokens for deleted accounts all come back ErrBadToken;
// suspension is reported separately so middleware can return 403, not 401.
func (s *AuthService) UserFromToken(raw string) (*domain.User, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.Secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrBadToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrBadToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrBadToken
	}
	u, err := s.Users.ByID(sub)
	if err != nil {
		return nil, ErrBadToken
	}
	if u.Suspended() {
		return nil, ErrSuspended
	}
	return u, nil
}
