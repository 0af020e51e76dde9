package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/user"
	"github.com/messengermaksym/diploma-project/storage/database"
)

type userRow struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	Username     null.String `db:"username"`
	FirstName    string      `db:"first_name"`
	LastName     string      `db:"last_name"`
	Role         string      `db:"role"`
	Bio          string      `db:"bio"`
	PhoneNumber  string      `db:"phone_number"`
	Degree       string      `db:"degree"`
	ProfilePhoto string      `db:"profile_photo"`
	IsActive     null.Bool   `db:"is_active"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

const userColumns = `id, email, username, first_name, last_name, role, bio, phone_number,
	degree, profile_photo, is_active, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db *database.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *database.DB) *userRepository {
	return &userRepository{db: db}
}

// ext resolves the executor for a call: the caller's transaction when one
// is passed, the pool otherwise.
func ext(db *database.DB, svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if e, ok := svcExec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return db.DB
}

func (repo userRepository) row(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		Role:         usr.Role,
		Bio:          usr.Bio,
		PhoneNumber:  usr.PhoneNumber,
		Degree:       usr.Degree,
		ProfilePhoto: usr.ProfilePhoto,
		IsActive:     null.BoolFromPtr(usr.IsActive),
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unrow(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Email:        row.Email,
		Username:     row.Username.String,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Role:         row.Role,
		Bio:          row.Bio,
		PhoneNumber:  row.PhoneNumber,
		Degree:       row.Degree,
		ProfilePhoto: row.ProfilePhoto,
		IsActive:     row.IsActive.Ptr(),
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin.Time,
	}
}

func (repo userRepository) unrowSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unrow(row))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := `SELECT EXISTS (SELECT 1 FROM "user" WHERE (username = $1 OR email = $2)`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += fmt.Sprintf(" AND id != ALL($%d)", len(args)+1)
		args = append(args, pqStrArray(ids))
	}
	q += `)`

	var exists bool
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &exists, q, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.row(usr)
	q := `
		INSERT INTO "user" (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := ext(repo.db, exec).ExecContext(
		ctx, q,
		row.ID, row.Email, row.Username, row.FirstName, row.LastName, row.Role, row.Bio,
		row.PhoneNumber, row.Degree, row.ProfilePhoto, row.IsActive, row.PasswordHash,
		row.CreatedAt, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	q := `SELECT DISTINCT u.` + strings.ReplaceAll(userColumns, ", ", ", u.") + ` FROM "user" u`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.GroupID != "" {
			q += ` JOIN user_group ug ON ug.user_id = u.id AND ug.group_id = ` + arg(filter.GroupID)
		}
		if filter.Search != "" {
			val := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf(
				"(u.first_name ILIKE %[1]s OR u.last_name ILIKE %[1]s OR u.username ILIKE %[1]s OR u.email ILIKE %[1]s)", val))
		}
		if filter.Role != "" {
			conds = append(conds, "u.role = "+arg(filter.Role))
		}
		if filter.IsActive != nil {
			conds = append(conds, "u.is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "u.created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "u.created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	if len(ordering) > 0 {
		ords := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			ords = append(ords, "u."+ord.String())
		}
		q += " ORDER BY " + strings.Join(ords, ", ")
	} else {
		q += " ORDER BY u.created_at DESC"
	}

	var rows []userRow
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := repo.unrowSlice(rows)
	if err := repo.loadGroups(ctx, exec, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := `SELECT ` + userColumns + ` FROM "user"`
	var args []interface{}
	switch {
	case filter.ID != "":
		q += ` WHERE id = $1`
		args = append(args, filter.ID)
	case filter.Username != "":
		q += ` WHERE username = $1`
		args = append(args, filter.Username)
	case filter.Email != "":
		q += ` WHERE email = $1`
		args = append(args, filter.Email)
	case len(filter.UsernameOrEmail) == 2:
		q += ` WHERE username = $1 OR email = $2`
		args = append(args, filter.UsernameOrEmail[0], filter.UsernameOrEmail[1])
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &row, q, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	usr := repo.unrow(row)
	users := []user.User{usr}
	if err := repo.loadGroups(ctx, exec, users); err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

// loadGroups hydrates GroupIDs on the given users.
func (repo userRepository) loadGroups(ctx context.Context, exec []core.DBExecutor, users []user.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	q := `SELECT user_id, group_id FROM user_group WHERE user_id = ANY($1)`
	var rows []struct {
		UserID  string `db:"user_id"`
		GroupID string `db:"group_id"`
	}
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows, q, pqStrArray(ids)); err != nil {
		return errors.Wrap(err, "loading user groups")
	}
	byUser := make(map[string][]string, len(rows))
	for _, row := range rows {
		byUser[row.UserID] = append(byUser[row.UserID], row.GroupID)
	}
	for i := range users {
		users[i].GroupIDs = byUser[users[i].ID]
	}
	return nil
}

// UpdateUser only overwrites set fields; zero-valued ones keep their stored value.
func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if usr.Email != "" {
		set("email", usr.Email)
	}
	if usr.Username != "" {
		set("username", usr.Username)
	}
	if usr.FirstName != "" {
		set("first_name", usr.FirstName)
	}
	if usr.LastName != "" {
		set("last_name", usr.LastName)
	}
	if usr.Role != "" {
		set("role", usr.Role)
	}
	if usr.Bio != "" {
		set("bio", usr.Bio)
	}
	if usr.PhoneNumber != "" {
		set("phone_number", usr.PhoneNumber)
	}
	if usr.Degree != "" {
		set("degree", usr.Degree)
	}
	if usr.ProfilePhoto != "" {
		set("profile_photo", usr.ProfilePhoto)
	}
	if usr.IsActive != nil {
		set("is_active", *usr.IsActive)
	}
	if usr.PasswordHash != nil {
		set("password_hash", usr.PasswordHash)
	}
	if !usr.UpdatedAt.IsZero() {
		set("updated_at", usr.UpdatedAt.UTC())
	}
	if !usr.LastLogin.IsZero() {
		set("last_login", usr.LastLogin.UTC())
	}
	if len(sets) == 0 {
		return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...)
	}

	args = append(args, usr.ID)
	q := fmt.Sprintf(
		`UPDATE "user" SET %s WHERE id = $%d RETURNING `+userColumns,
		strings.Join(sets, ", "), len(args),
	)
	var row userRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &row, q, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	updated := repo.unrow(row)
	users := []user.User{updated}
	if err := repo.loadGroups(ctx, exec, users); err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	existing, err := repo.GetUser(ctx, user.GetFilter{Email: usr.Email}, exec...)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return repo.CreateUser(ctx, usr, exec...)
		}
		return user.User{}, err
	}
	usr.ID = existing.ID
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) SetUserGroups(ctx context.Context, userID string, groupIDs []string, exec ...core.DBExecutor) error {
	e := ext(repo.db, exec)
	if _, err := e.ExecContext(ctx, `DELETE FROM user_group WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "clearing user groups")
	}
	for _, gid := range groupIDs {
		if _, err := e.ExecContext(ctx, `INSERT INTO user_group (user_id, group_id) VALUES ($1, $2)`, userID, gid); err != nil {
			return errors.Wrap(err, "adding user group")
		}
	}
	return nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pqStrArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
