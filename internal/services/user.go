package services

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/models"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// UserService manages user accounts.
type UserService struct{}

// NewUserService creates a new user service instance.
func NewUserService() *UserService {
	return &UserService{}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *UserService) Register(email, password, fullName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || strings.TrimSpace(fullName) == "" {
		return nil, ErrInvalidCredentials
	}

	var count int64
	if err := database.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		IsActive:     true,
	}
	if err := database.DB.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and stamps the last login time.
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	if err := database.DB.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID loads an active user by ID.
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return &user, nil
}

// RecalculateStorage recomputes a user's storage usage from files actually
// on record, repairing drift from partial failures.
func (s *UserService) RecalculateStorage(user *models.User) (int64, error) {
	var total int64
	err := database.DB.Model(&models.UserFile{}).
		Joins("JOIN files ON files.id = user_files.file_id").
		Where("user_files.user_id = ?", user.ID).
		Select("COALESCE(SUM(files.file_size), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}

	if err := database.DB.Model(user).Update("storage_used", total).Error; err != nil {
		return 0, err
	}
	user.StorageUsed = total
	return total, nil
}

// DashboardStats summarizes a user's account for the dashboard view.
type DashboardStats struct {
	FileCount    int64 `json:"file_count"`
	WebsiteCount int64 `json:"website_count"`
	TotalViews   int64 `json:"total_views"`
	StorageUsed  int64 `json:"storage_used"`
	MaxStorage   int64 `json:"max_storage"`
}

// Dashboard gathers per-user counts for the dashboard endpoint.
func (s *UserService) Dashboard(user *models.User) (*DashboardStats, error) {
	stats := &DashboardStats{
		StorageUsed: user.StorageUsed,
		MaxStorage:  user.MaxStorage,
	}

	if err := database.DB.Model(&models.UserFile{}).
		Where("user_id = ?", user.ID).Count(&stats.FileCount).Error; err != nil {
		return nil, err
	}
	if err := database.DB.Model(&models.Website{}).
		Where("user_id = ?", user.ID).Count(&stats.WebsiteCount).Error; err != nil {
		return nil, err
	}
	if err := database.DB.Model(&models.Link{}).
		Joins("JOIN user_files ON user_files.file_id = links.file_id").
		Where("user_files.user_id = ?", user.ID).
		Select("COALESCE(SUM(links.view_count), 0)").
		Scan(&stats.TotalViews).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
