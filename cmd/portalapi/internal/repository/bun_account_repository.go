package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/uptrace/bun"
)

// bootstrapClaimID is the only primary key account_bootstrap accepts.
const bootstrapClaimID = 1

// BunAccountRepository implements AccountRepository using Bun ORM
type BunAccountRepository struct {
	db bun.IDB
}

// NewBunAccountRepository creates a new Bun-based account repository
func NewBunAccountRepository(db bun.IDB) *BunAccountRepository {
	return &BunAccountRepository{db: db}
}

// Create inserts a new account and populates its generated ID
func (r *BunAccountRepository) Create(ctx context.Context, account *models.Account) error {
	_, err := r.db.NewInsert().
		Model(account).
		Returning("id").
		Exec(ctx)
	return classify("create account", err)
}

// GetByID retrieves an account by ID
func (r *BunAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("a.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, classify(fmt.Sprintf("get account %d", id), err)
	}
	return account, nil
}

// GetByIdentity retrieves an account by its IdP provider and subject
func (r *BunAccountRepository) GetByIdentity(ctx context.Context, provider, subject string) (*models.Account, error) {
	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("a.idp_provider = ?", provider).
		Where("a.idp_subject = ?", subject).
		Scan(ctx)
	if err != nil {
		return nil, classify("get account by identity", err)
	}
	return account, nil
}

// List retrieves all accounts ordered by ID
func (r *BunAccountRepository) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.NewSelect().
		Model(&accounts).
		Order("a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, classify("list accounts", err)
	}
	return accounts, nil
}

// Exists reports whether at least one account row is present
func (r *BunAccountRepository) Exists(ctx context.Context) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.Account)(nil)).
		Exists(ctx)
	if err != nil {
		return false, classify("check accounts exist", err)
	}
	return exists, nil
}

// ClaimBootstrap inserts the bootstrap marker unless another transaction already did.
// The conflict clause keeps a losing PostgreSQL transaction usable.
func (r *BunAccountRepository) ClaimBootstrap(ctx context.Context, at time.Time) (bool, error) {
	claim := &models.BootstrapClaim{ID: bootstrapClaimID, ClaimedAt: at}
	res, err := r.db.NewInsert().
		Model(claim).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, classify("claim bootstrap", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("claim bootstrap", err)
	}
	return n == 1, nil
}

// TouchLogin records a successful sign-in
func (r *BunAccountRepository) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("last_login_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return classify("touch account login", err)
}

// SetApproval changes the approval status of an account
func (r *BunAccountRepository) SetApproval(ctx context.Context, id int64, status models.ApprovalStatus, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("approval_status = ?", status).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return classify("set account approval", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("set account approval", err)
	}
	if n == 0 {
		return fmt.Errorf("set account approval %d: %w", id, ErrNotFound)
	}
	return nil
}
