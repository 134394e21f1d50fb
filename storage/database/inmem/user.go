package inmemdb

import (
	"context"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	excluded := make(map[string]bool, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = true
	}

	for _, usr := range repo.db.user.filter(func(u user.User) bool { return !excluded[u.ID] }) {
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	usr.Roles = append([]string{}, usr.Roles...)
	repo.db.user.upsert(usr.ID, usr)
	return usr, repo.db.changed(AppStorage)
}

func (repo *userRepository) QueryAllUsers(_ context.Context) ([]user.User, error) {
	return repo.db.user.filter(nil), nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	if usr, ok := repo.db.user.get(id); ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsernameOrEmail(_ context.Context, username string) (user.User, error) {
	users := repo.db.user.filter(func(u user.User) bool { return u.Username == username || u.Email == username })
	if len(users) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return users[0], nil
}

func (repo *userRepository) FilterUsers(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	filter.Clean()
	return repo.db.user.filter(filter.Match), nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	if !repo.db.user.update(usr.ID, usr) {
		return user.User{}, user.ErrNotFound
	}
	return usr, repo.db.changed(AppStorage)
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.user.deleteWhere(func(u user.User) bool { return core.ContainsString(ids, u.ID) })
	return repo.db.changed(AppStorage)
}
