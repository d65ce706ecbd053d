package costs

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreSetUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("INSERT INTO license_costs").
		WithArgs("itil", float64(110)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewPostgresService(NewPGStore(db))
	if err := svc.SetOverride(context.Background(), "ITIL ", 110); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreAllScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rows := sqlmock.NewRows([]string{"license_type", "monthly_cost"}).
		AddRow("itil", 110.0).
		AddRow("custom_tier", 45.0)
	mock.ExpectQuery("SELECT license_type, monthly_cost FROM license_costs").
		WillReturnRows(rows)

	svc := NewPostgresService(NewPGStore(db))
	table, err := svc.Effective(context.Background())
	if err != nil {
		t.Fatalf("Effective: %v", err)
	}
	if table["itil"] != 110 || table["custom_tier"] != 45 {
		t.Fatalf("overrides not applied: %v", table)
	}
	if table["admin"] != 150 {
		t.Fatalf("defaults lost: admin=%v", table["admin"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
