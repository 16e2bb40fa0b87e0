package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"parley/chat-service/models"
)

var (
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// UserService owns account creation and credential checks.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (us *UserService) CreateUser(email, password, username string) (*models.User, error) {
	var existing models.User
	err := us.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:       uuid.New(),
		Email:    email,
		Username: username,
		Password: string(hashed),
	}
	if err := us.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// VerifyCredentials checks an email/password pair. Unknown email and wrong
// password return the same error so the response cannot be used to probe
// for accounts.
func (us *UserService) VerifyCredentials(email, password string) (*models.User, error) {
	var user models.User
	if err := us.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// FindByID returns a single user.
func (us *UserService) FindByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := us.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// ListOthers returns every user except the caller.
func (us *UserService) ListOthers(currentUserID uuid.UUID) ([]models.User, error) {
	var users []models.User
	if err := us.db.Where("id <> ?", currentUserID).Order("username").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Search matches username or email case-insensitively, excluding the caller.
// An empty query returns an empty list.
func (us *UserService) Search(currentUserID uuid.UUID, query string) ([]models.User, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return []models.User{}, nil
	}

	pattern := "%" + escapeLike(term) + "%"
	var users []models.User
	err := us.db.
		Where("id <> ?", currentUserID).
		Where("username ILIKE ? OR email ILIKE ?", pattern, pattern).
		Order("username").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// escapeLike neutralizes LIKE wildcards in user-supplied search terms.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
