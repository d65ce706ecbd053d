package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoUpsert(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO directory_users").
		WithArgs(
			"aaaa000000000001",
			"jdoe",
			"Jane Doe",
			"jdoe@corp.com",
			"IT",
			"itil",
			true,
			"2026-01-15 09:30:00",
			42,
			[]byte(`["itil","approver"]`),
			float64(100),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), User{
		SysID:            "aaaa000000000001",
		UserName:         "jdoe",
		Name:             "Jane Doe",
		Email:            "jdoe@corp.com",
		Department:       "IT",
		LicenseType:      "itil",
		Active:           true,
		LastLogin:        "2026-01-15 09:30:00",
		TransactionCount: 42,
		Roles:            []string{"itil", "approver"},
		LicenseCost:      100,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoUpsertNullsEmptyStrings(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO directory_users").
		WithArgs(
			"aaaa000000000002",
			"svc_ldap",
			"",
			nil,
			nil,
			nil,
			false,
			nil,
			0,
			[]byte(`[]`),
			float64(0),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), User{SysID: "aaaa000000000002", UserName: "svc_ldap"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetBySysIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM directory_users WHERE sys_id").
		WithArgs("missing000000001").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBySysID(context.Background(), "missing000000001")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPGRepoListScansRows(t *testing.T) {
	repo, mock := newMockRepo(t)

	syncedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"sys_id", "user_name", "name", "email", "department", "license_type",
		"active", "last_login", "transaction_count", "roles", "license_cost", "synced_at",
	}).AddRow(
		"aaaa000000000001", "jdoe", "Jane Doe", "jdoe@corp.com", "IT", "itil",
		true, "2026-01-15 09:30:00", 42, []byte(`["itil"]`), 100.0, syncedAt,
	).AddRow(
		"aaaa000000000002", "svc_ldap", "", nil, nil, "integration",
		false, nil, 0, []byte(`[]`), nil, syncedAt,
	)

	mock.ExpectQuery("SELECT (.+) FROM directory_users ORDER BY user_name").
		WithArgs(50, 0).
		WillReturnRows(rows)

	users, err := repo.List(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}
	if users[0].LicenseCost != 100 || len(users[0].Roles) != 1 {
		t.Fatalf("first row scanned wrong: %+v", users[0])
	}
	if users[1].Email != "" || users[1].LicenseCost != 0 {
		t.Fatalf("null columns scanned wrong: %+v", users[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
