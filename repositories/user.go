//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

type IUserRepository interface {
	CreateUser(name, email, hashedPassword string) (domain.User, error)
	GetUserByID(id uuid.UUID) (domain.User, error)
	GetUserByEmail(email string) (domain.User, error)
	UpdateUser(user domain.User) error
	SearchByName(query string, excludeID uuid.UUID) ([]domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// diskUser is the stored representation of a user.
type diskUser struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"password_hash"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      int64     `json:"created_at"`
}

func userKey(id uuid.UUID) []byte  { return []byte("user:" + id.String()) }
func emailKey(email string) []byte { return []byte("user:email:" + email) }

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// CreateUser persists a new user under two keys: the record itself under the
// user ID, and the ID under the email for lookup at login time.
func (u *UserRepository) CreateUser(name, email, hashedPassword string) (domain.User, error) {
	user := domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(fromUser(user))
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(email), []byte(user.ID.String())); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetUserByID(id uuid.UUID) (domain.User, error) {
	var stored diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(stored), nil
}

// GetUserByEmail resolves the email index first, then loads the record.
func (u *UserRepository) GetUserByEmail(email string) (domain.User, error) {
	var stored diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		var id uuid.UUID
		if err := item.Value(func(val []byte) error {
			id, err = uuid.Parse(string(val))
			return err
		}); err != nil {
			return err
		}

		item, err = txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(stored), nil
}

// UpdateUser overwrites the stored record. The email index is not touched;
// email addresses are immutable once registered.
func (u *UserRepository) UpdateUser(user domain.User) error {
	data, err := json.Marshal(fromUser(user))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(user.ID)); err != nil {
			if goerrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrUserNotFound
			}
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
}

// SearchByName scans user records for a case-insensitive name or email match.
// The user base lives in a single embedded store, a full prefix scan is fine.
func (u *UserRepository) SearchByName(query string, excludeID uuid.UUID) ([]domain.User, error) {
	var results []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		prefix := []byte("user:")
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			// Skip the email index entries
			if len(item.Key()) > len("user:email:") && string(item.Key()[:len("user:email:")]) == "user:email:" {
				continue
			}
			var stored diskUser
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}
			if stored.ID == excludeID {
				continue
			}
			if containsFold(stored.Name, query) || containsFold(stored.Email, query) {
				results = append(results, toUser(stored))
			}
		}
		return nil
	})
	return results, err
}

func fromUser(user domain.User) diskUser {
	return diskUser{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		PasswordHash:   user.PasswordHash,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      user.CreatedAt.UnixNano(),
	}
}

func toUser(stored diskUser) domain.User {
	return domain.User{
		ID:             stored.ID,
		Name:           stored.Name,
		Email:          stored.Email,
		PasswordHash:   stored.PasswordHash,
		ProfilePicture: stored.ProfilePicture,
		CreatedAt:      time.Unix(0, stored.CreatedAt).UTC(),
	}
}
