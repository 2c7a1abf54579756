package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/auth"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

func TestUserService_Signup_And_Login(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	user := f.signup(t, "Alice", "alice@example.com")
	req.Equal("Alice", user.Name)
	// The stored hash never equals the plain password
	req.NotEqual("Str0ngPassw0rd", user.PasswordHash)

	logged, token, err := f.users.Login(auth.LoginRequest{
		Email:    "alice@example.com",
		Password: "Str0ngPassw0rd",
	})
	req.NoError(err)
	req.Equal(user.ID, logged.ID)
	req.NotEmpty(token.String())
}

func TestUserService_Login_WrongPassword(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.signup(t, "Alice", "alice@example.com")

	_, _, err := f.users.Login(auth.LoginRequest{
		Email:    "alice@example.com",
		Password: "WrongPassw0rd",
	})
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	// Unknown email yields the same error, no enumeration
	_, _, err = f.users.Login(auth.LoginRequest{
		Email:    "ghost@example.com",
		Password: "Str0ngPassw0rd",
	})
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestUserService_Signup_WeakPassword(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, _, err := f.users.Signup(auth.SignupRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "short",
	})
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func TestUserService_Signup_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.signup(t, "Alice", "alice@example.com")

	_, _, err := f.users.Signup(auth.SignupRequest{
		Name:     "Imposter",
		Email:    "alice@example.com",
		Password: "Str0ngPassw0rd",
	})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserService_UpdateProfilePicture(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	user := f.signup(t, "Alice", "alice@example.com")

	updated, err := f.users.UpdateProfilePicture(user.ID, "alice.png")
	req.NoError(err)
	req.Equal("alice.png", updated.ProfilePicture)

	_, err = f.users.UpdateProfilePicture(uuid.New(), "ghost.png")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
