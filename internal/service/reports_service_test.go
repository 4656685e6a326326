package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/finwise/movements-api-go/internal/domain"
)

func TestSummary_AggregatesByMonth(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})
	f.movements.movements = []domain.Movement{
		{ID: "m1", Amount: 1000, Type: domain.MovementIncome, Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{ID: "m2", Amount: 200, Type: domain.MovementExpense, Date: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)},
		{ID: "m3", Amount: 500, Type: domain.MovementIncome, Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	report, err := f.reports.Summary(context.Background(), adminPrincipal())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if report.TotalIncome != 1500 || report.TotalExpense != 200 || report.Balance != 1300 {
		t.Errorf("unexpected totals: %+v", report)
	}
	if len(report.Monthly) != 2 {
		t.Fatalf("expected 2 monthly buckets, got %d", len(report.Monthly))
	}
	if report.Monthly[0].Month != "2025-01" || report.Monthly[1].Month != "2025-02" {
		t.Errorf("months must be sorted ascending: %+v", report.Monthly)
	}
	if report.Monthly[0].Income != 1000 || report.Monthly[0].Expense != 200 {
		t.Errorf("unexpected january bucket: %+v", report.Monthly[0])
	}
}

func TestSummary_EmptyScope(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleUser})

	report, err := f.reports.Summary(context.Background(), userPrincipal("user-1"))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if report.Balance != 0 || len(report.Monthly) != 0 {
		t.Errorf("expected a zero report, got %+v", report)
	}
}

func TestSummary_CachesPerScope(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleUser})

	if _, err := f.reports.Summary(context.Background(), userPrincipal("user-1")); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if _, err := f.reports.Summary(context.Background(), userPrincipal("user-1")); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if f.movements.listRecentCalls != 1 {
		t.Errorf("second call for the same scope should hit the cache, store saw %d calls", f.movements.listRecentCalls)
	}

	// A different scope misses.
	if _, err := f.reports.Summary(context.Background(), userPrincipal("user-2")); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if f.movements.listRecentCalls != 2 {
		t.Errorf("a different scope must not share cache entries, store saw %d calls", f.movements.listRecentCalls)
	}
}

func TestExportCSV_UserScope(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleUser})
	f.movements.movements = []domain.Movement{
		{
			ID:      "m1",
			Concept: "Groceries",
			Amount:  55.5,
			Date:    time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
			Type:    domain.MovementExpense,
			UserID:  "user-1",
		},
	}
	f.users.users = []domain.User{{ID: "user-1", Name: strptr("Ana"), Email: "ana@example.com", Role: domain.RoleUser}}

	csv, err := f.reports.ExportCSV(context.Background(), userPrincipal("user-1"))
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	lines := strings.Split(csv, "\n")
	if lines[0] != "concept,amount,date,type,username" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	want := `"Groceries","55.5","2025-03-10T14:30:00.000Z","EXPENSE","Ana"`
	if lines[1] != want {
		t.Errorf("row = %q, want %q", lines[1], want)
	}
	if f.movements.lastFilter.UserID != "user-1" {
		t.Errorf("export must be scoped to the caller, got filter %+v", f.movements.lastFilter)
	}
}

func TestExportCSV_AdminLabelsOwners(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})
	f.movements.movements = []domain.Movement{
		{ID: "m1", Concept: "A", Amount: 1, Date: time.Unix(0, 0).UTC(), Type: domain.MovementIncome, UserID: "u1"},
		{ID: "m2", Concept: "B", Amount: 2, Date: time.Unix(0, 0).UTC(), Type: domain.MovementIncome, UserID: "ghost"},
	}
	f.users.users = []domain.User{{ID: "u1", Email: "u1@example.com", Role: domain.RoleUser}}

	csv, err := f.reports.ExportCSV(context.Background(), adminPrincipal())
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if !strings.Contains(csv, `"u1@example.com"`) {
		t.Errorf("expected owner email fallback in:\n%s", csv)
	}
	if !strings.Contains(csv, `"Unknown User"`) {
		t.Errorf("expected placeholder for missing owner in:\n%s", csv)
	}
	if !f.movements.lastFilter.Unscoped() {
		t.Errorf("admin export should be unscoped, got %+v", f.movements.lastFilter)
	}
}

func TestExportCSV_CapsRowCount(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})

	if _, err := f.reports.ExportCSV(context.Background(), adminPrincipal()); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if f.movements.lastMax != 10000 {
		t.Errorf("export fetch should be capped at 10000 rows, got %d", f.movements.lastMax)
	}
}
