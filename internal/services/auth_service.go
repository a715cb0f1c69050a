package services

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"taskboard/internal/models"
	"taskboard/internal/repositories"
)

// AuthService verifies credentials. Token issuance lives in the auth
// handler; everything beyond "caller is identified" is out of scope.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

type authService struct {
	users repositories.UserRepository
}

func NewAuthService(users repositories.UserRepository) AuthService {
	return &authService{users: users}
}

func (s *authService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrPermissionDenied
	}
	return user, nil
}
