package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/finwise/movements-api-go/internal/domain"
	"github.com/finwise/movements-api-go/internal/port"
)

// ============================================================
// Movements — CRUD via PostgREST (implements port.MovementStore)
// ============================================================

// movementRow maps the movements table columns.
type movementRow struct {
	ID        string  `json:"id"`
	Concept   string  `json:"concept"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
	Type      string  `json:"type"`
	UserID    string  `json:"user_id"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func (r movementRow) toDomain() domain.Movement {
	return domain.Movement{
		ID:        r.ID,
		Concept:   r.Concept,
		Amount:    r.Amount,
		Date:      parseTimestamp(r.Date),
		Type:      domain.MovementType(r.Type),
		UserID:    r.UserID,
		CreatedAt: parseTimestamp(r.CreatedAt),
		UpdatedAt: parseTimestamp(r.UpdatedAt),
	}
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02", s)
	}
	return t
}

func movementFilterQuery(filter port.MovementFilter) string {
	if filter.Unscoped() {
		return ""
	}
	return fmt.Sprintf("&user_id=eq.%s", url.QueryEscape(filter.UserID))
}

func (c *Client) ListMovements(ctx context.Context, filter port.MovementFilter, page, limit int) ([]domain.Movement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Movements.List")
	defer span.End()

	offset := (page - 1) * limit
	path := fmt.Sprintf("movements?order=date.desc&offset=%d&limit=%d%s", offset, limit, movementFilterQuery(filter))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/movements", Err: err}
	}

	return decodeMovements(body)
}

func (c *Client) ListRecentMovements(ctx context.Context, filter port.MovementFilter, max int) ([]domain.Movement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Movements.ListRecent")
	defer span.End()

	path := "movements?order=date.desc" + movementFilterQuery(filter)
	if max > 0 {
		path += fmt.Sprintf("&limit=%d", max)
	}
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/movements", Err: err}
	}

	return decodeMovements(body)
}

func (c *Client) CountMovements(ctx context.Context, filter port.MovementFilter) (int64, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Movements.Count")
	defer span.End()

	total, err := c.doCount(ctx, "movements?select=id"+movementFilterQuery(filter))
	if err != nil {
		return 0, &domain.ErrExternalService{Service: "supabase/movements", Err: err}
	}
	return total, nil
}

func (c *Client) GetMovement(ctx context.Context, id string) (*domain.Movement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Movements.Get")
	defer span.End()

	path := fmt.Sprintf("movements?id=eq.%s&limit=1", url.QueryEscape(id))
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/movements", Err: err}
	}

	rows, err := decodeMovementRows(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "movement", ID: id}
	}
	m := rows[0].toDomain()
	return &m, nil
}

func (c *Client) CreateMovement(ctx context.Context, m *domain.Movement) (*domain.Movement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Movements.Create")
	defer span.End()

	body, err := c.doPost(ctx, "movements", map[string]any{
		"id":         m.ID,
		"concept":    m.Concept,
		"amount":     m.Amount,
		"date":       m.Date.UTC().Format(time.RFC3339Nano),
		"type":       string(m.Type),
		"user_id":    m.UserID,
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": m.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/movements", Err: err}
	}

	rows, err := decodeMovementRows(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/movements", Err: fmt.Errorf("insert returned no representation")}
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (c *Client) UpdateMovement(ctx context.Context, id string, changes map[string]any) (*domain.Movement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Movements.Update")
	defer span.End()

	path := fmt.Sprintf("movements?id=eq.%s", url.QueryEscape(id))
	body, err := c.doPatch(ctx, path, changes)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/movements", Err: err}
	}

	rows, err := decodeMovementRows(body)
	if err != nil {
		return nil, err
	}
	// Row vanished between lookup and patch.
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "movement", ID: id}
	}
	updated := rows[0].toDomain()
	return &updated, nil
}

func (c *Client) DeleteMovement(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Movements.Delete")
	defer span.End()

	path := fmt.Sprintf("movements?id=eq.%s", url.QueryEscape(id))
	body, err := c.doDelete(ctx, path)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/movements", Err: err}
	}

	rows, err := decodeMovementRows(body)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &domain.ErrNotFound{Resource: "movement", ID: id}
	}
	return nil
}

func decodeMovementRows(body []byte) ([]movementRow, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var rows []movementRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/movements", Err: fmt.Errorf("decode movements: %w", err)}
	}
	return rows, nil
}

func decodeMovements(body []byte) ([]domain.Movement, error) {
	rows, err := decodeMovementRows(body)
	if err != nil {
		return nil, err
	}
	movements := make([]domain.Movement, 0, len(rows))
	for _, r := range rows {
		movements = append(movements, r.toDomain())
	}
	return movements, nil
}
