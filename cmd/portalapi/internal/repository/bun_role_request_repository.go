package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunRoleRequestRepository implements RoleRequestRepository using Bun ORM
type BunRoleRequestRepository struct {
	db bun.IDB
}

// NewBunRoleRequestRepository creates a new Bun-based role request repository
func NewBunRoleRequestRepository(db bun.IDB) *BunRoleRequestRepository {
	return &BunRoleRequestRepository{db: db}
}

// Create inserts a new role change request
func (r *BunRoleRequestRepository) Create(ctx context.Context, request *models.RoleChangeRequest) error {
	_, err := r.db.NewInsert().
		Model(request).
		Returning("id").
		Exec(ctx)
	return classify("create role request", err)
}

// GetByID retrieves a role change request with its account
func (r *BunRoleRequestRepository) GetByID(ctx context.Context, id int64) (*models.RoleChangeRequest, error) {
	request := new(models.RoleChangeRequest)
	err := r.db.NewSelect().
		Model(request).
		Relation("Account").
		Where("rcr.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, classify(fmt.Sprintf("get role request %d", id), err)
	}
	return request, nil
}

// List retrieves all role change requests, newest first
func (r *BunRoleRequestRepository) List(ctx context.Context) ([]models.RoleChangeRequest, error) {
	var requests []models.RoleChangeRequest
	err := r.db.NewSelect().
		Model(&requests).
		Relation("Account").
		OrderExpr("rcr.created_at DESC, rcr.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, classify("list role requests", err)
	}
	return requests, nil
}

// ListByAccount retrieves the role change requests filed by one account, newest first
func (r *BunRoleRequestRepository) ListByAccount(ctx context.Context, accountID int64) ([]models.RoleChangeRequest, error) {
	var requests []models.RoleChangeRequest
	err := r.db.NewSelect().
		Model(&requests).
		Relation("Account").
		Where("rcr.account_id = ?", accountID).
		OrderExpr("rcr.created_at DESC, rcr.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, classify("list role requests by account", err)
	}
	return requests, nil
}

// Resolve performs a compare-and-set from Pending to status
func (r *BunRoleRequestRepository) Resolve(ctx context.Context, id int64, status models.ApprovalStatus, reviewerID int64, comment *string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.RoleChangeRequest)(nil)).
		Set("status = ?", status).
		Set("reviewer_id = ?", reviewerID).
		Set("review_comment = ?", comment).
		Set("reviewed_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", models.ApprovalPending).
		Exec(ctx)
	if err != nil {
		return classify("resolve role request", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("resolve role request", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing matched: either the row is gone or someone else resolved it first.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("resolve role request %d: %w", id, ErrNotPending)
}
