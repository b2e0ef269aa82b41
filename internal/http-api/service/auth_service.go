package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"libtrack/internal/auth"
	"libtrack/internal/config"
	"libtrack/internal/http-api/models"
	"libtrack/internal/http-api/repository"
	"libtrack/pkg/tokenstore"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmailInUse         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidRole        = errors.New("role must be student or admin")
	ErrStudentIDRequired  = errors.New("student id is required for student accounts")
	ErrProfileNotFound    = errors.New("no profile exists for this session")
)

// Claims is the payload of an access token. Role is safe to trust from the
// token because roles are immutable after registration.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, name, email, password, role, studentID string) (*models.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *models.User, err error)
	ResolveSession(ctx context.Context, accessToken string) (*models.User, error)
	ParseAccessToken(ctx context.Context, accessToken string) (*Claims, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

type authService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	revokedTokens    tokenstore.Store
	jwtSecret        string
	accessTokenTTL   time.Duration
	refreshTokenTTL  time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	revokedTokens tokenstore.Store,
	cfg *config.Config,
) AuthService {
	return &authService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		revokedTokens:    revokedTokens,
		jwtSecret:        cfg.JWTSecret,
		accessTokenTTL:   cfg.AccessTokenTTL,
		refreshTokenTTL:  cfg.RefreshTokenTTL,
	}
}

// Register creates a user profile with the given role. Student accounts must
// carry a student id; admin accounts must not be created with one by accident,
// so a non-blank id on an admin is ignored rather than rejected.
func (s *authService) Register(ctx context.Context, name, email, password, role, studentID string) (*models.User, error) {
	if role != models.RoleStudent && role != models.RoleAdmin {
		return nil, ErrInvalidRole
	}
	studentID = strings.TrimSpace(studentID)
	if role == models.RoleStudent && studentID == "" {
		return nil, ErrStudentIDRequired
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailInUse
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Name:     name,
		Email:    email,
		Password: hashedPassword,
		Role:     role,
	}
	if role == models.RoleStudent {
		user.StudentID = &studentID
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// The unique index on email is the authority; the earlier lookup only
		// catches the common case without a race window.
		if isUniqueViolation(err) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	return user, nil
}

// Login authenticates a user and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, email, password string) (string, string, *models.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		// Dummy compare so unknown emails take as long as wrong passwords.
		auth.VerifyPassword("$2a$10$7EqJtq98hPqEX7fNZaFWoOHi6VbU5h6K9v8u5rO0m3j0h6dX5r8e", password)
		return "", "", nil, ErrInvalidCredentials
	}

	if err := auth.VerifyPassword(user.Password, password); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return "", "", nil, err
	}

	return accessToken, refreshToken, user, nil
}

// ResolveSession maps a bearer token back to the stored profile. A valid token
// without a matching user row signals inconsistent state, not a logged-out
// session, and is reported as ErrProfileNotFound.
func (s *authService) ResolveSession(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.ParseAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrProfileNotFound
	}
	return user, nil
}

// ParseAccessToken validates signature, expiry and revocation without touching
// the users table.
func (s *authService) ParseAccessToken(ctx context.Context, accessToken string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	revoked, err := s.revokedTokens.IsRevoked(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *authService) RefreshAccessToken(ctx context.Context, refreshTokenString string) (string, error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		return "", ErrInvalidToken
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		_ = s.refreshTokenRepo.Delete(ctx, refreshToken.ID)
		return "", ErrExpiredToken
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		return "", ErrProfileNotFound
	}

	return s.generateAccessToken(user)
}

// Logout revokes the refresh token row and blacklists the access token for the
// remainder of its lifetime. Logging out an already-dead session succeeds.
func (s *authService) Logout(ctx context.Context, accessToken, refreshTokenString string) error {
	if refreshTokenString != "" {
		if refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString); err == nil {
			if err := s.refreshTokenRepo.Revoke(ctx, refreshToken.ID); err != nil {
				return err
			}
		}
	}

	if accessToken != "" {
		claims := &Claims{}
		_, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(s.jwtSecret), nil
		})
		if err != nil {
			// expired or garbage tokens need no blacklist entry
			return nil
		}
		ttl := time.Duration(0)
		if claims.ExpiresAt != nil {
			ttl = time.Until(claims.ExpiresAt.Time)
		}
		return s.revokedTokens.Revoke(ctx, accessToken, ttl)
	}

	return nil
}

func (s *authService) generateAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *authService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	refreshToken := &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(s.refreshTokenTTL),
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return refreshToken.Token, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
