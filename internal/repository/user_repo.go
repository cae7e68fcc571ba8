package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hazeltrade/internal/model"
)

// UserRepository defines the data access surface for accounts and companies
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	// HardDelete removes the row entirely; used for compensating cleanup
	// when a later signup step fails.
	HardDelete(ctx context.Context, id uuid.UUID) error
	CreateCompany(ctx context.Context, company *model.Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error)
	DeleteCompany(ctx context.Context, id uuid.UUID) error
	ListDealCompanies(ctx context.Context, brokerID uuid.UUID, side string) ([]model.Company, error)
	SaveRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)
	DeleteRefreshTokens(ctx context.Context, userID uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := GetDB(ctx, r.db).Preload("Company").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := GetDB(ctx, r.db).Preload("Company").First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Save(user).Error
}

func (r *userRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Unscoped().Where("id = ?", id).Delete(&model.User{}).Error
}

func (r *userRepository) CreateCompany(ctx context.Context, company *model.Company) error {
	return GetDB(ctx, r.db).Create(company).Error
}

func (r *userRepository) GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	err := GetDB(ctx, r.db).First(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *userRepository) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Company{}).Error
}

// ListDealCompanies returns the distinct companies that appeared on the given
// side ("buyer", "seller" or "" for both) of the broker's past deals.
func (r *userRepository) ListDealCompanies(ctx context.Context, brokerID uuid.UUID, side string) ([]model.Company, error) {
	db := GetDB(ctx, r.db)

	var companies []model.Company
	query := db.Model(&model.Company{}).Distinct("companies.*")
	switch side {
	case "buyer":
		query = query.Joins("JOIN deals ON deals.buyer_id = companies.id AND deals.broker_id = ?", brokerID)
	case "seller":
		query = query.Joins("JOIN deals ON deals.seller_id = companies.id AND deals.broker_id = ?", brokerID)
	default:
		query = query.Joins("JOIN deals ON (deals.buyer_id = companies.id OR deals.seller_id = companies.id) AND deals.broker_id = ?", brokerID)
	}
	if err := query.Order("companies.name ASC").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *userRepository) SaveRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *userRepository) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := GetDB(ctx, r.db).First(&rt, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *userRepository) DeleteRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("user_id = ?", userID).Delete(&model.RefreshToken{}).Error
}
