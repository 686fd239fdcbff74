package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"go-user-admin/internal/model"
)

const pgUniqueViolation = "23505"

const userColumns = `id, username, name, email, role, status, last_login_at, created_at, updated_at`

// PostgresUserRepository stores directory records in the users table.
type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) List(ctx context.Context, filter model.UserFilter) ([]model.DirectoryUser, error) {
	var (
		where []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(username ILIKE $%[1]d OR name ILIKE $%[1]d OR email ILIKE $%[1]d OR role ILIKE $%[1]d OR status ILIKE $%[1]d)", n))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY lower(username)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.DirectoryUser, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (model.DirectoryUser, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DirectoryUser{}, fmt.Errorf("%w: %s", model.ErrUserNotFound, id)
	}
	if err != nil {
		return model.DirectoryUser{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u model.DirectoryUser) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, name, email, role, status, last_login_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, u.Name, u.Email, string(u.Role), string(u.Status), nullTime(u.LastLoginAt), u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, u.Username)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, u model.DirectoryUser) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $2, name = $3, email = $4, role = $5, status = $6, updated_at = $7
		 WHERE id = $1`,
		u.ID, u.Username, u.Name, u.Email, string(u.Role), string(u.Status), u.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, u.Username)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(res, u.ID)
}

func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(res, id)
}

func (r *PostgresUserRepository) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $2 WHERE lower(username) = lower($1)`,
		username, at.UTC())
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return expectAffected(res, username)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.DirectoryUser, error) {
	var (
		u         model.DirectoryUser
		role      string
		status    string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &role, &status, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.DirectoryUser{}, err
	}

	u.Role = model.Role(role)
	u.Status = model.UserStatus(status)
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLoginAt = &t
	}
	return u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func expectAffected(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", model.ErrUserNotFound, key)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
