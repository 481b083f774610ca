package postgres

import (
	"context"
	"errors"
	"fmt"

	"sms-billing-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TemplateRepo implements ports.TemplateRepository.
type TemplateRepo struct {
	pool Pool
}

// NewTemplateRepo creates a new TemplateRepo.
func NewTemplateRepo(pool Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

// Create inserts a new message template.
func (r *TemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	query := `INSERT INTO sms_templates (id, owner_id, name, content, tag, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.OwnerID, t.Name, t.Content, t.Tag, t.Default, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// GetByID fetches a template by UUID. Returns nil when not found.
func (r *TemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	query := `SELECT id, owner_id, name, content, tag, is_default, created_at
		FROM sms_templates WHERE id = $1`

	t := &domain.Template{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.OwnerID, &t.Name, &t.Content, &t.Tag, &t.Default, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template by id: %w", err)
	}
	return t, nil
}
