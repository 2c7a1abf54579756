package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ahmedmirza994/whatsapp-sub001/auth"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
	"github.com/ahmedmirza994/whatsapp-sub001/repositories"
)

type IUserService interface {
	Signup(request auth.SignupRequest) (domain.User, Token, error)
	Login(request auth.LoginRequest) (domain.User, Token, error)
	GetUser(id uuid.UUID) (domain.User, error)
	FindByEmail(email string) (domain.User, error)
	UpdateProfilePicture(userID uuid.UUID, filename string) (domain.User, error)
	SearchUsers(query string, excludeID uuid.UUID) ([]domain.User, error)
}

type UserService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewUserService(repo repositories.IUserRepository, tokens *auth.TokenManager) *UserService {
	return &UserService{userRepository: repo, tokens: tokens}
}

func (s *UserService) Signup(request auth.SignupRequest) (domain.User, Token, error) {
	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateSignup(request); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(request.Password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	user, err := s.userRepository.CreateUser(request.Name, request.Email, hashedPassword)
	if err != nil {
		return domain.User{}, "", err // Will propagate ErrUserAlreadyExists if email is taken
	}

	// 4. Generate the initial session token
	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		return domain.User{}, "", err
	}

	return user, Token(token), nil
}

func (s *UserService) Login(request auth.LoginRequest) (domain.User, Token, error) {
	if err := auth.ValidateLogin(request); err != nil {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	// Generic error to prevent user enumeration attacks
	user, err := s.userRepository.GetUserByEmail(request.Email)
	if err != nil {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(request.Password, user.PasswordHash)
	if err != nil || !match {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		return domain.User{}, "", err
	}

	return user, Token(token), nil
}

func (s *UserService) GetUser(id uuid.UUID) (domain.User, error) {
	return s.userRepository.GetUserByID(id)
}

// FindByEmail resolves a token subject to a full user record.
func (s *UserService) FindByEmail(email string) (domain.User, error) {
	return s.userRepository.GetUserByEmail(email)
}

func (s *UserService) UpdateProfilePicture(userID uuid.UUID, filename string) (domain.User, error) {
	user, err := s.userRepository.GetUserByID(userID)
	if err != nil {
		return domain.User{}, err
	}
	user.ProfilePicture = filename
	if err := s.userRepository.UpdateUser(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) SearchUsers(query string, excludeID uuid.UUID) ([]domain.User, error) {
	return s.userRepository.SearchByName(query, excludeID)
}
