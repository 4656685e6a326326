package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/finwise/movements-api-go/internal/domain"
)

func strptr(s string) *string { return &s }

func TestListUsers_AdminOnly(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleUser})

	_, err := f.userSvc.List(context.Background(), userPrincipal("user-1"))
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestListUsers_ReturnsProjections(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})
	f.users.users = []domain.User{
		{ID: "u1", Name: strptr("Ana"), Email: "ana@example.com", Role: domain.RoleAdmin, Image: strptr("https://cdn/img.png")},
		{ID: "u2", Email: "bob@example.com", Role: domain.RoleUser},
	}

	projections, err := f.userSvc.List(context.Background(), adminPrincipal())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(projections) != 2 {
		t.Fatalf("expected 2 projections, got %d", len(projections))
	}
	if projections[0].Email != "ana@example.com" || projections[0].Role != domain.RoleAdmin {
		t.Errorf("unexpected projection: %+v", projections[0])
	}
}

func TestMe_ReturnsOwnProfile(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleUser})
	f.users.users = []domain.User{{ID: "user-1", Email: "me@example.com", Role: domain.RoleUser}}

	u, err := f.userSvc.Me(context.Background(), userPrincipal("user-1"))
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if u.Email != "me@example.com" {
		t.Errorf("unexpected profile: %+v", u)
	}
}

func TestUpdateUser_AdminOnly(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleUser})

	_, err := f.userSvc.Update(context.Background(), userPrincipal("user-1"), "u2", &domain.UpdateUserInput{Name: strptr("X")})
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUpdateUser_InvalidRoleRejected(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})
	f.users.users = []domain.User{{ID: "u1", Email: "a@b.c", Role: domain.RoleUser}}

	_, err := f.userSvc.Update(context.Background(), adminPrincipal(), "u1", &domain.UpdateUserInput{Role: strptr("SUPERUSER")})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateUser_NameLengthCountsRunes(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})
	f.users.users = []domain.User{{ID: "u1", Email: "a@b.c", Role: domain.RoleUser}}

	// 80 two-byte characters stay under the 100-character cap.
	_, err := f.userSvc.Update(context.Background(), adminPrincipal(), "u1", &domain.UpdateUserInput{Name: strptr(strings.Repeat("ü", 80))})
	if err != nil {
		t.Fatalf("multibyte name within limit rejected: %v", err)
	}

	_, err = f.userSvc.Update(context.Background(), adminPrincipal(), "u1", &domain.UpdateUserInput{Name: strptr(strings.Repeat("ü", 101))})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation for 101 characters, got %v", err)
	}
}

func TestUpdateUser_LastAdminDemotionRefused(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})
	f.users.users = []domain.User{{ID: "admin-1", Email: "a@b.c", Role: domain.RoleAdmin}}
	f.users.adminCount = 1

	_, err := f.userSvc.Update(context.Background(), adminPrincipal(), "admin-1", &domain.UpdateUserInput{Role: strptr("USER")})
	var invariant *domain.ErrDomainInvariant
	if !errors.As(err, &invariant) {
		t.Fatalf("expected ErrDomainInvariant, got %v", err)
	}
	if f.users.updateChanges != nil {
		t.Error("store must not be patched when the invariant fails")
	}
}

func TestUpdateUser_DemotionAllowedWithAnotherAdmin(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})
	f.users.users = []domain.User{{ID: "admin-2", Email: "a@b.c", Role: domain.RoleAdmin}}
	f.users.adminCount = 2

	_, err := f.userSvc.Update(context.Background(), adminPrincipal(), "admin-2", &domain.UpdateUserInput{Role: strptr("USER")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if f.users.updateChanges["role"] != "USER" {
		t.Errorf("expected role change, got %+v", f.users.updateChanges)
	}
}

func TestDeleteUser_NotFound(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})

	err := f.userSvc.Delete(context.Background(), adminPrincipal(), "missing")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteUser_LastAdminRefused(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})
	f.users.users = []domain.User{{ID: "admin-1", Email: "a@b.c", Role: domain.RoleAdmin}}
	f.users.adminCount = 1

	err := f.userSvc.Delete(context.Background(), adminPrincipal(), "admin-1")
	var invariant *domain.ErrDomainInvariant
	if !errors.As(err, &invariant) {
		t.Fatalf("expected ErrDomainInvariant, got %v", err)
	}
	if f.users.deletedID != "" {
		t.Error("store must not delete when the invariant fails")
	}
}

func TestDeleteUser_RegularUserSkipsAdminCount(t *testing.T) {
	f := newFixture(&mockRoleLookup{role: domain.RoleAdmin})
	f.users.users = []domain.User{{ID: "u2", Email: "b@b.c", Role: domain.RoleUser}}
	f.users.adminCount = 1 // would trip the invariant if it were consulted

	if err := f.userSvc.Delete(context.Background(), adminPrincipal(), "u2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.users.deletedID != "u2" {
		t.Errorf("expected u2 deleted, got %q", f.users.deletedID)
	}
}
