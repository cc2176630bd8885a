package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/user"
)

var userColumns = columns(
	"id", "name", "email", "role", "student_code", "avatar_url", "google_sub",
	"is_active", "password_hash", "created_at", "updated_at", "last_login",
)

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	Role         string      `db:"role"`
	StudentCode  null.String `db:"student_code"`
	AvatarURL    string      `db:"avatar_url"`
	GoogleSub    null.String `db:"google_sub"`
	IsActive     bool        `db:"is_active"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
		StudentCode:  null.NewString(usr.StudentCode, usr.StudentCode != ""),
		AvatarURL:    usr.AvatarURL,
		GoogleSub:    null.NewString(usr.GoogleSub, usr.GoogleSub != ""),
		IsActive:     usr.IsActive,
		PasswordHash: null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Role:         row.Role,
		StudentCode:  row.StudentCode.String,
		AvatarURL:    row.AvatarURL,
		GoogleSub:    row.GoogleSub.String,
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

func (repo userRepository) unboilSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.unboil(r))
	}
	return users
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	query := psql.Select("1").From("users").Where(sq.Eq{"email": email})
	if ids := validUUIDs(excludedIDs); len(ids) > 0 {
		query = query.Where(sq.NotEq{"id": ids})
	}
	found, err := exists(ctx, repo.db, query)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if found {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) StudentCodeExists(ctx context.Context, code string) (bool, error) {
	found, err := exists(ctx, repo.db, psql.Select("1").From("users").Where(sq.Eq{"student_code": code}))
	return found, errors.Wrap(err, "checking student code")
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := repo.boil(usr)
	query := psql.Insert("users").
		Columns("name", "email", "role", "student_code", "avatar_url", "google_sub",
			"is_active", "password_hash", "created_at", "updated_at", "last_login").
		Values(row.Name, row.Email, row.Role, row.StudentCode, row.AvatarURL, row.GoogleSub,
			row.IsActive, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin).
		Suffix("RETURNING " + userColumns)

	var created userRow
	if err := get(ctx, repo.db, &created, query); err != nil {
		if isUniqueViolation(err) {
			if usr.StudentCode != "" {
				if taken, _ := repo.StudentCodeExists(ctx, usr.StudentCode); taken {
					return user.User{}, user.ErrStudentCodeExists
				}
			}
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unboil(created), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	or := sq.Or{}
	if filter.ID != "" && validUUID(filter.ID) {
		or = append(or, sq.Eq{"id": filter.ID})
	}
	if filter.Email != "" {
		or = append(or, sq.Eq{"email": filter.Email})
	}
	if filter.StudentCode != "" {
		or = append(or, sq.Eq{"student_code": filter.StudentCode})
	}
	if filter.GoogleSub != "" {
		or = append(or, sq.Eq{"google_sub": filter.GoogleSub})
	}
	if len(or) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	query := psql.Select(userColumns).From("users").Where(or).Limit(1)
	if err := get(ctx, repo.db, &row, query); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := psql.Select(userColumns).From("users").OrderBy("name ASC")
	if filter.IDs != nil {
		query = query.Where(sq.Eq{"id": validUUIDs(filter.IDs)})
	}
	if filter.Role != "" {
		query = query.Where(sq.Eq{"role": filter.Role})
	}

	var rows []userRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unboilSlice(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	row := repo.boil(usr)
	query := psql.Update("users").
		SetMap(map[string]interface{}{
			"name":          row.Name,
			"email":         row.Email,
			"role":          row.Role,
			"student_code":  row.StudentCode,
			"avatar_url":    row.AvatarURL,
			"google_sub":    row.GoogleSub,
			"is_active":     row.IsActive,
			"password_hash": row.PasswordHash,
			"updated_at":    row.UpdatedAt,
			"last_login":    row.LastLogin,
		}).
		Where(sq.Eq{"id": row.ID}).
		Suffix("RETURNING " + userColumns)

	var updated userRow
	if err := get(ctx, repo.db, &updated, query); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "updating user")
	}
	return repo.unboil(updated), nil
}
