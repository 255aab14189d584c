// Package index maintains the denormalized relational view of contracts:
// the contracts, permissions and invitations tables used for "contracts by
// creator" and "contracts by collaborator" listings, plus the users table
// backing profile lookups. The document store stays authoritative; every
// mutation operation that touches collaborators or status emits the
// matching index update.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AsiwajuPseudo/contracts/pkg/domain"
)

type Index struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func New(pool *pgxpool.Pool) *Index {
	return &Index{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (x *Index) Close() { x.pool.Close() }

func (x *Index) Ping(ctx context.Context) error { return x.pool.Ping(ctx) }

// CreateContract inserts the listing row for a freshly created contract.
func (x *Index) CreateContract(ctx context.Context, id, title, creatorID string, status domain.Status, createdAt time.Time) error {
	q := x.qb.Insert("contracts").
		Columns("contract_id", "title", "creator_id", "status", "created_at").
		Values(id, title, creatorID, string(status), createdAt)
	return x.exec(ctx, q)
}

// DeleteContract removes the listing row; permissions and invitations
// cascade.
func (x *Index) DeleteContract(ctx context.Context, id string) error {
	return x.exec(ctx, x.qb.Delete("contracts").Where(sq.Eq{"contract_id": id}))
}

// SetStatus mirrors a status transition into the index.
func (x *Index) SetStatus(ctx context.Context, id string, status domain.Status) error {
	q := x.qb.Update("contracts").
		Set("status", string(status)).
		Where(sq.Eq{"contract_id": id})
	return x.exec(ctx, q)
}

// AddPermission records a collaborator grant.
func (x *Index) AddPermission(ctx context.Context, permissionID, contractID, userID string, role domain.Role) error {
	q := x.qb.Insert("permissions").
		Columns("permission_id", "contract_id", "user_id", "role").
		Values(permissionID, contractID, userID, string(role)).
		Suffix("ON CONFLICT (contract_id, user_id) DO UPDATE SET role = EXCLUDED.role")
	return x.exec(ctx, q)
}

// RemovePermission drops a collaborator grant.
func (x *Index) RemovePermission(ctx context.Context, contractID, userID string) error {
	q := x.qb.Delete("permissions").
		Where(sq.Eq{"contract_id": contractID, "user_id": userID})
	return x.exec(ctx, q)
}

// UpdatePermission rewrites the role on an existing grant.
func (x *Index) UpdatePermission(ctx context.Context, contractID, userID string, role domain.Role) error {
	q := x.qb.Update("permissions").
		Set("role", string(role)).
		Where(sq.Eq{"contract_id": contractID, "user_id": userID})
	return x.exec(ctx, q)
}

// AddInvitation records a pending invite for an unknown email.
func (x *Index) AddInvitation(ctx context.Context, inv domain.Invitation) error {
	q := x.qb.Insert("invitations").
		Columns("invitation_id", "contract_id", "email", "role", "status", "created_at").
		Values(inv.ID, inv.ContractID, inv.Email, string(inv.Role), inv.Status, inv.CreatedAt)
	return x.exec(ctx, q)
}

// ListInvitations returns all invitations recorded for a contract, newest
// first.
func (x *Index) ListInvitations(ctx context.Context, contractID string) ([]domain.Invitation, error) {
	q := x.qb.Select("invitation_id", "contract_id", "email", "role", "status", "created_at").
		From("invitations").
		Where(sq.Eq{"contract_id": contractID}).
		OrderBy("created_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build query: %v", domain.ErrStorage, err)
	}
	rows, err := x.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list invitations: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := []domain.Invitation{}
	for rows.Next() {
		var inv domain.Invitation
		var role string
		if err := rows.Scan(&inv.ID, &inv.ContractID, &inv.Email, &role, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan invitation: %v", domain.ErrStorage, err)
		}
		inv.Role = domain.Role(role)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// LookupUserByID resolves a user id to a profile.
func (x *Index) LookupUserByID(ctx context.Context, userID string) (domain.Profile, error) {
	return x.lookupUser(ctx, sq.Eq{"user_id": userID})
}

// LookupUserByEmail resolves an email address to a profile.
func (x *Index) LookupUserByEmail(ctx context.Context, email string) (domain.Profile, error) {
	return x.lookupUser(ctx, sq.Eq{"email": email})
}

func (x *Index) lookupUser(ctx context.Context, where sq.Eq) (domain.Profile, error) {
	q := x.qb.Select("user_id", "name", "email").From("users").Where(where)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: build query: %v", domain.ErrStorage, err)
	}
	var p domain.Profile
	err = x.pool.QueryRow(ctx, sqlStr, args...).Scan(&p.UserID, &p.Name, &p.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, fmt.Errorf("%w: user", domain.ErrNotFound)
		}
		return domain.Profile{}, fmt.Errorf("%w: lookup user: %v", domain.ErrStorage, err)
	}
	return p, nil
}

// UpsertUser writes a profile row; used by account provisioning and tests.
func (x *Index) UpsertUser(ctx context.Context, p domain.Profile) error {
	q := x.qb.Insert("users").
		Columns("user_id", "name", "email").
		Values(p.UserID, p.Name, p.Email).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email")
	return x.exec(ctx, q)
}

func (x *Index) exec(ctx context.Context, q sq.Sqlizer) error {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("%w: build query: %v", domain.ErrStorage, err)
	}
	if _, err := x.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}
