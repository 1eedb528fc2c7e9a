package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go-workflow/internal/common/errs"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLDirectory reads membership from an external HR database with the tables
//
//	directory_members(user_id, username, is_superuser, is_active)
//	directory_role_members(role_code, user_id)
type SQLDirectory struct {
	driver string
	db     *sql.DB
}

func OpenSQLDirectory(ctx context.Context, driver, dsn string) (*SQLDirectory, error) {
	if driver == "postgresql" {
		driver = "postgres"
	}
	if driver != "postgres" && driver != "mysql" {
		return nil, fmt.Errorf("unsupported directory driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping directory: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return &SQLDirectory{driver: driver, db: db}, nil
}

func (d *SQLDirectory) Close() error {
	return d.db.Close()
}

// placeholder renders the n-th bind parameter for the active driver.
func (d *SQLDirectory) placeholder(n int) string {
	if d.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d *SQLDirectory) Lookup(ctx context.Context, userID string) (*Member, error) {
	query := fmt.Sprintf(
		"SELECT user_id, username, is_superuser, is_active FROM directory_members WHERE user_id = %s",
		d.placeholder(1),
	)

	var m Member
	err := d.db.QueryRowContext(ctx, query, userID).Scan(&m.UserID, &m.Username, &m.IsSuperuser, &m.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound("member", userID)
		}
		return nil, err
	}

	roles, err := d.rolesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.Roles = roles
	return &m, nil
}

func (d *SQLDirectory) rolesOf(ctx context.Context, userID string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT role_code FROM directory_role_members WHERE user_id = %s ORDER BY role_code",
		d.placeholder(1),
	)
	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		roles = append(roles, strings.TrimSpace(code))
	}
	return roles, rows.Err()
}

func (d *SQLDirectory) MembersOf(ctx context.Context, roleCode string) ([]Member, error) {
	query := fmt.Sprintf(`SELECT m.user_id, m.username, m.is_superuser, m.is_active
		FROM directory_members m
		JOIN directory_role_members r ON r.user_id = m.user_id
		WHERE r.role_code = %s AND m.is_active = %s
		ORDER BY m.username`, d.placeholder(1), d.placeholder(2))

	rows, err := d.db.QueryContext(ctx, query, roleCode, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Username, &m.IsSuperuser, &m.IsActive); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range members {
		roles, err := d.rolesOf(ctx, members[i].UserID)
		if err != nil {
			return nil, err
		}
		members[i].Roles = roles
	}
	return members, nil
}
