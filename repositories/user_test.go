package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

func TestUserRepository_Create_And_Lookup(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db)

	created, err := repo.CreateUser("Alice", "alice@example.com", "hashed")
	req.NoError(err)
	req.NotEqual(uuid.Nil, created.ID)

	byEmail, err := repo.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(created.ID, byEmail.ID)
	req.Equal("Alice", byEmail.Name)
	req.Equal("hashed", byEmail.PasswordHash)

	byID, err := repo.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal(byEmail, byID)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db)

	_, err := repo.CreateUser("Alice", "alice@example.com", "hashed")
	req.NoError(err)

	_, err = repo.CreateUser("Imposter", "alice@example.com", "other")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_UnknownUser(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db)

	_, err := repo.GetUserByEmail("ghost@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repo.GetUserByID(uuid.New())
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestUserRepository_Update(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db)

	created, err := repo.CreateUser("Alice", "alice@example.com", "hashed")
	req.NoError(err)

	created.ProfilePicture = "alice.png"
	req.NoError(repo.UpdateUser(created))

	fetched, err := repo.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal("alice.png", fetched.ProfilePicture)
}

func TestUserRepository_SearchByName(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db)

	alice, err := repo.CreateUser("Alice Wonder", "alice@example.com", "hashed")
	req.NoError(err)
	_, err = repo.CreateUser("Bob Builder", "bob@example.com", "hashed")
	req.NoError(err)

	// Case-insensitive match on name
	found, err := repo.SearchByName("alice", uuid.Nil)
	req.NoError(err)
	req.Len(found, 1)
	req.Equal(alice.ID, found[0].ID)

	// Match on email, excluding the requesting user
	found, err = repo.SearchByName("example.com", alice.ID)
	req.NoError(err)
	req.Len(found, 1)
	req.Equal("Bob Builder", found[0].Name)
}
