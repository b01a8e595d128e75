package receiving

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists package records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertPackage stores one received package.
func (r *Repository) InsertPackage(ctx context.Context, pkg Package) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO packages (id, reference, carrier, tracking_number, quantity, received_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		pkg.ID, pkg.Reference, pkg.Carrier, pkg.TrackingNumber, pkg.Quantity, pkg.ReceivedBy, pkg.CreatedAt)
	return err
}

// GetPackage loads one package by id.
func (r *Repository) GetPackage(ctx context.Context, id string) (Package, error) {
	var pkg Package
	err := r.pool.QueryRow(ctx, `SELECT id, reference, carrier, tracking_number, quantity, received_by, created_at
FROM packages WHERE id=$1`, id).
		Scan(&pkg.ID, &pkg.Reference, &pkg.Carrier, &pkg.TrackingNumber, &pkg.Quantity, &pkg.ReceivedBy, &pkg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Package{}, ErrPackageNotFound
	}
	return pkg, err
}

// ListPackages returns packages newest first.
func (r *Repository) ListPackages(ctx context.Context, limit, offset int) ([]Package, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, reference, carrier, tracking_number, quantity, received_by, created_at
FROM packages ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	packages := []Package{}
	for rows.Next() {
		var pkg Package
		if err := rows.Scan(&pkg.ID, &pkg.Reference, &pkg.Carrier, &pkg.TrackingNumber, &pkg.Quantity, &pkg.ReceivedBy, &pkg.CreatedAt); err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}
