package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PGRepo struct {
	DB *sql.DB
}

var _ Repo = (*PGRepo)(nil)

const userColumns = `
sys_id, user_name, name, email, department, license_type, active,
last_login, transaction_count, roles, license_cost, synced_at`

func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	const query = `
INSERT INTO directory_users (
  sys_id, user_name, name, email, department, license_type, active,
  last_login, transaction_count, roles, license_cost, synced_at, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now(), now())
ON CONFLICT (sys_id) DO UPDATE SET
  user_name = EXCLUDED.user_name,
  name = EXCLUDED.name,
  email = EXCLUDED.email,
  department = EXCLUDED.department,
  license_type = EXCLUDED.license_type,
  active = EXCLUDED.active,
  last_login = EXCLUDED.last_login,
  transaction_count = EXCLUDED.transaction_count,
  roles = EXCLUDED.roles,
  license_cost = EXCLUDED.license_cost,
  synced_at = now(),
  updated_at = now()`

	roles, err := rolesJSON(user.Roles)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		user.SysID,
		user.UserName,
		user.Name,
		nullableString(user.Email),
		nullableString(user.Department),
		nullableString(user.LicenseType),
		user.Active,
		nullableString(user.LastLogin),
		user.TransactionCount,
		roles,
		user.LicenseCost,
	)
	return err
}

func (r *PGRepo) GetBySysID(ctx context.Context, sysID string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM directory_users WHERE sys_id = $1 LIMIT 1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, sysID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM directory_users ORDER BY user_name, sys_id LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *PGRepo) All(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM directory_users ORDER BY sys_id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *PGRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM directory_users`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		user        User
		email       sql.NullString
		department  sql.NullString
		licenseType sql.NullString
		lastLogin   sql.NullString
		roles       []byte
		licenseCost sql.NullFloat64
	)
	err := row.Scan(
		&user.SysID,
		&user.UserName,
		&user.Name,
		&email,
		&department,
		&licenseType,
		&user.Active,
		&lastLogin,
		&user.TransactionCount,
		&roles,
		&licenseCost,
		&user.SyncedAt,
	)
	if err != nil {
		return User{}, err
	}
	user.Email = email.String
	user.Department = department.String
	user.LicenseType = licenseType.String
	user.LastLogin = lastLogin.String
	user.LicenseCost = licenseCost.Float64
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &user.Roles); err != nil {
			return User{}, fmt.Errorf("decode roles for %s: %w", user.SysID, err)
		}
	}
	return user, nil
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func rolesJSON(roles []string) ([]byte, error) {
	if roles == nil {
		roles = []string{}
	}
	return json.Marshal(roles)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
