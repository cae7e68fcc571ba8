package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/model"
	"hazeltrade/internal/repository"
)

// --- DTOs ---

type CompanyData struct {
	Name               string `json:"name" binding:"required"`
	Country            string `json:"country" binding:"required"`
	RegistrationNumber string `json:"registration_number" binding:"required"`
	YearEstablished    int    `json:"year_established" binding:"required"`
	CompanyType        string `json:"company_type" binding:"required"`
	Address            string `json:"address" binding:"required"`
	Website            string `json:"website"`
}

type SignupRequest struct {
	Email       string       `json:"email" binding:"required,email"`
	Password    string       `json:"password" binding:"required,min=8"`
	FullName    string       `json:"full_name" binding:"required"`
	Phone       string       `json:"phone"`
	Role        string       `json:"role" binding:"required,oneof=BUYER SELLER BROKER"`
	CompanyData *CompanyData `json:"companyData"`
	InviteToken string       `json:"inviteToken"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// accessTokenTTL and refreshTokenTTL match the cookie lifetimes set by the
// middleware.
const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// --- Interface ---

// AuthService manages accounts and sessions. Signup is a saga across company
// and user rows with compensating deletes on partial failure.
type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (*model.User, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret []byte) AuthService {
	return &authService{userRepo: userRepo, jwtSecret: jwtSecret}
}

// --- Implementation ---

func (s *authService) Signup(ctx context.Context, req SignupRequest) (*model.User, error) {
	role, err := catalog.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Buyers and sellers register a company; brokers act in their own name.
	var companyID *uuid.UUID
	if req.CompanyData != nil {
		company := &model.Company{
			Name:               req.CompanyData.Name,
			Country:            req.CompanyData.Country,
			RegistrationNumber: req.CompanyData.RegistrationNumber,
			YearEstablished:    req.CompanyData.YearEstablished,
			CompanyType:        req.CompanyData.CompanyType,
			Address:            req.CompanyData.Address,
			Website:            req.CompanyData.Website,
			VerificationStatus: model.VerificationUnverified,
		}
		if err := s.userRepo.CreateCompany(ctx, company); err != nil {
			return nil, fmt.Errorf("failed to create company: %w", err)
		}
		companyID = &company.ID
	}

	user := &model.User{
		Email:         req.Email,
		PasswordHash:  string(hashed),
		FullName:      req.FullName,
		Phone:         req.Phone,
		Role:          role,
		CompanyID:     companyID,
		EmailVerified: true,
		Status:        model.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Compensating cleanup: don't leave an orphaned company behind
		if companyID != nil {
			if delErr := s.userRepo.DeleteCompany(ctx, *companyID); delErr != nil {
				return nil, fmt.Errorf("failed to create user (company cleanup also failed: %v): %w", delErr, err)
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.userRepo.GetByID(ctx, user.ID)
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	stored, err := s.userRepo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.userRepo.DeleteRefreshTokens(ctx, userID)
}

func (s *authService) GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": string(user.Role),
		"exp":  time.Now().Add(accessTokenTTL).Unix(),
	}
	if user.CompanyID != nil {
		claims["company_id"] = user.CompanyID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}
	if err := s.userRepo.SaveRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{Token: signed, RefreshToken: refresh.Token}, nil
}
