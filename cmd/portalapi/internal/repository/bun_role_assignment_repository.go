package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunRoleAssignmentRepository implements RoleAssignmentRepository using Bun ORM.
// Rows are only ever inserted.
type BunRoleAssignmentRepository struct {
	db bun.IDB
}

// NewBunRoleAssignmentRepository creates a new Bun-based role assignment repository
func NewBunRoleAssignmentRepository(db bun.IDB) *BunRoleAssignmentRepository {
	return &BunRoleAssignmentRepository{db: db}
}

// Append adds an entry to the role log
func (r *BunRoleAssignmentRepository) Append(ctx context.Context, assignment *models.RoleAssignment) error {
	_, err := r.db.NewInsert().
		Model(assignment).
		Returning("id").
		Exec(ctx)
	return classify("append role assignment", err)
}

// EffectiveRole returns the newest role for an account, ties on assigned_at broken by id
func (r *BunRoleAssignmentRepository) EffectiveRole(ctx context.Context, accountID int64) (int, error) {
	var role int
	err := r.db.NewSelect().
		Model((*models.RoleAssignment)(nil)).
		Column("ra.role").
		Where("ra.account_id = ?", accountID).
		OrderExpr("ra.assigned_at DESC, ra.id DESC").
		Limit(1).
		Scan(ctx, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(fmt.Sprintf("effective role for account %d", accountID), err)
	}
	return role, nil
}

// History returns every assignment of an account, newest first
func (r *BunRoleAssignmentRepository) History(ctx context.Context, accountID int64) ([]models.RoleAssignment, error) {
	var assignments []models.RoleAssignment
	err := r.db.NewSelect().
		Model(&assignments).
		Where("ra.account_id = ?", accountID).
		OrderExpr("ra.assigned_at DESC, ra.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, classify("role history", err)
	}
	return assignments, nil
}
