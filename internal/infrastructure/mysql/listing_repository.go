package mysql

import (
	"auction-settlement/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var listingColumns = []string{
	"id", "seller_id", "category_id", "title", "description", "starting_price",
	"min_increment", "auction_end_at", "status", "created_at", "updated_at",
}

type MySQLListingRepository struct {
	q  queryer
	sb sq.StatementBuilderType
}

func (r *MySQLListingRepository) CreateListing(ctx context.Context, listing *domain.Listing) error {
	query, args, err := r.sb.Insert("listings").Columns(listingColumns...).
		Values(listing.ID, listing.SellerID, listing.CategoryID, listing.Title, listing.Description,
			listing.StartingPrice, listing.MinIncrement, listing.AuctionEndAt,
			int(listing.Status), listing.CreatedAt, listing.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, query, args...)
	return err
}

func (r *MySQLListingRepository) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	query, args, err := r.sb.Select(listingColumns...).From("listings").
		Where(sq.Eq{"id": listingID}).ToSql()
	if err != nil {
		return nil, err
	}

	listing, err := scanListing(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mysql: get listing %s: %w", listingID, domain.ErrListingNotFound)
	}
	return listing, err
}

// UpdateListingStatus only moves an ACTIVE listing to a terminal status.
func (r *MySQLListingRepository) UpdateListingStatus(ctx context.Context, listingID string, status domain.ListingStatus, at time.Time) error {
	if !domain.ListingActive.CanTransitionTo(status) {
		return fmt.Errorf("mysql: listing status %s is not a valid target: %w", status, domain.ErrListingNotActive)
	}

	query, args, err := r.sb.Update("listings").
		Set("status", int(status)).
		Set("updated_at", at).
		Where(sq.Eq{"id": listingID, "status": int(domain.ListingActive)}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	found, err := exists(ctx, r.q, r.sb, "listings", listingID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("mysql: update listing %s: %w", listingID, domain.ErrListingNotFound)
	}
	return fmt.Errorf("mysql: update listing %s: %w", listingID, domain.ErrListingNotActive)
}

// UpdateListingDetails runs under the listing's row lock. Zero affected rows
// means nothing changed or the listing left ACTIVE, so it re-reads the status.
func (r *MySQLListingRepository) UpdateListingDetails(ctx context.Context, listing *domain.Listing) error {
	query, args, err := r.sb.Update("listings").
		Set("category_id", listing.CategoryID).
		Set("title", listing.Title).
		Set("description", listing.Description).
		Set("starting_price", listing.StartingPrice).
		Set("min_increment", listing.MinIncrement).
		Set("auction_end_at", listing.AuctionEndAt).
		Set("updated_at", listing.UpdatedAt).
		Where(sq.Eq{"id": listing.ID, "status": int(domain.ListingActive)}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	current, err := r.GetListing(ctx, listing.ID)
	if err != nil {
		return err
	}
	if current.Status != domain.ListingActive {
		return fmt.Errorf("mysql: update listing %s: %w", listing.ID, domain.ErrListingNotActive)
	}
	return nil
}

func (r *MySQLListingRepository) ListListings(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, error) {
	builder := r.sb.Select(listingColumns...).From("listings").OrderBy("created_at DESC", "id")
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": int(*filter.Status)})
	}
	if filter.SellerID != "" {
		builder = builder.Where(sq.Eq{"seller_id": filter.SellerID})
	}
	if filter.CategoryID != "" {
		builder = builder.Where(sq.Eq{"category_id": filter.CategoryID})
	}
	return r.query(ctx, builder)
}

func (r *MySQLListingRepository) ListExpirable(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	builder := r.sb.Select(listingColumns...).From("listings").
		Where(sq.Eq{"status": int(domain.ListingActive)}).
		Where(sq.LtOrEq{"auction_end_at": now}).
		OrderBy("auction_end_at")
	return r.query(ctx, builder)
}

func (r *MySQLListingRepository) query(ctx context.Context, builder sq.SelectBuilder) ([]*domain.Listing, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var listing domain.Listing
	var status int

	err := row.Scan(&listing.ID, &listing.SellerID, &listing.CategoryID, &listing.Title,
		&listing.Description, &listing.StartingPrice, &listing.MinIncrement,
		&listing.AuctionEndAt, &status, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return nil, err
	}

	listing.Status = domain.ListingStatus(status)
	return &listing, nil
}
