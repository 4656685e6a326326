package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/finwise/movements-api-go/internal/domain"
)

// ============================================================
// Users — CRUD via PostgREST (implements port.UserStore and
// port.RoleLookup)
// ============================================================

// userRow maps the users table columns.
type userRow struct {
	ID        string  `json:"id"`
	Name      *string `json:"name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
	Role      string  `json:"role"`
	Image     *string `json:"image"`
	CreatedAt string  `json:"created_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		Role:      domain.Role(r.Role),
		Image:     r.Image,
		CreatedAt: parseTimestamp(r.CreatedAt),
	}
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Users.List")
	defer span.End()

	body, err := c.getWithRetry(ctx, "users?order=created_at.desc")
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}
	return decodeUsers(body)
}

func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Users.Get")
	defer span.End()

	path := fmt.Sprintf("users?id=eq.%s&limit=1", url.QueryEscape(id))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	rows, err := decodeUserRows(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	u := rows[0].toDomain()
	return &u, nil
}

func (c *Client) CountUsersByRole(ctx context.Context, role domain.Role) (int64, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Users.CountByRole")
	defer span.End()

	path := fmt.Sprintf("users?select=id&role=eq.%s", url.QueryEscape(string(role)))
	total, err := c.doCount(ctx, path)
	if err != nil {
		return 0, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}
	return total, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, changes map[string]any) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Users.Update")
	defer span.End()

	path := fmt.Sprintf("users?id=eq.%s", url.QueryEscape(id))
	body, err := c.doPatch(ctx, path, changes)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	rows, err := decodeUserRows(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	u := rows[0].toDomain()
	return &u, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Users.Delete")
	defer span.End()

	path := fmt.Sprintf("users?id=eq.%s", url.QueryEscape(id))
	body, err := c.doDelete(ctx, path)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	rows, err := decodeUserRows(body)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &domain.ErrNotFound{Resource: "user", ID: id}
	}
	return nil
}

// GetUserRole implements port.RoleLookup with a narrow column select.
func (c *Client) GetUserRole(ctx context.Context, userID string) (domain.Role, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Users.GetRole")
	defer span.End()

	path := fmt.Sprintf("users?id=eq.%s&select=role&limit=1", url.QueryEscape(userID))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return "", &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	var rows []struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return "", &domain.ErrExternalService{Service: "supabase/users", Err: fmt.Errorf("decode role: %w", err)}
	}
	if len(rows) == 0 {
		return "", &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return domain.Role(rows[0].Role), nil
}

func decodeUserRows(body []byte) ([]userRow, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var rows []userRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: fmt.Errorf("decode users: %w", err)}
	}
	return rows, nil
}

func decodeUsers(body []byte) ([]domain.User, error) {
	rows, err := decodeUserRows(body)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toDomain())
	}
	return users, nil
}
