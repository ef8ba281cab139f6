package mysql

import (
	"auction-settlement/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var bidColumns = []string{"id", "listing_id", "bidder_id", "amount", "status", "created_at"}

// MySQLBidRepository is the bid ledger. Rows are never deleted; seq breaks
// ties between bids submitted in the same instant.
type MySQLBidRepository struct {
	q  queryer
	sb sq.StatementBuilderType
}

func (r *MySQLBidRepository) CreateBid(ctx context.Context, bid *domain.Bid) error {
	query, args, err := r.sb.Insert("bids").Columns(bidColumns...).
		Values(bid.ID, bid.ListingID, bid.BidderID, bid.Amount, int(bid.Status), bid.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, query, args...)
	return err
}

func (r *MySQLBidRepository) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	query, args, err := r.sb.Select(bidColumns...).From("bids").Where(sq.Eq{"id": bidID}).ToSql()
	if err != nil {
		return nil, err
	}

	bid, err := scanBid(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mysql: get bid %s: %w", bidID, domain.ErrBidNotFound)
	}
	return bid, err
}

func (r *MySQLBidRepository) ListBidsForListing(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	return r.query(ctx, r.sb.Select(bidColumns...).From("bids").
		Where(sq.Eq{"listing_id": listingID}).
		OrderBy("created_at ASC", "seq ASC"))
}

func (r *MySQLBidRepository) ListBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	return r.query(ctx, r.sb.Select(bidColumns...).From("bids").
		Where(sq.Eq{"bidder_id": bidderID}).
		OrderBy("created_at DESC", "seq DESC"))
}

func (r *MySQLBidRepository) CountBidsByBidder(ctx context.Context, minBids int) ([]*domain.BidderActivity, error) {
	query, args, err := r.sb.Select("bidder_id", "COUNT(*) AS bid_count").From("bids").
		GroupBy("bidder_id").
		Having("COUNT(*) >= ?", minBids).
		OrderBy("bid_count DESC", "bidder_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.BidderActivity
	for rows.Next() {
		var a domain.BidderActivity
		if err := rows.Scan(&a.BidderID, &a.BidCount); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *MySQLBidRepository) UpdateBidStatus(ctx context.Context, bidID string, status domain.BidStatus) error {
	query, args, err := r.sb.Update("bids").Set("status", int(status)).Where(sq.Eq{"id": bidID}).ToSql()
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

	// MySQL reports zero rows when the value is unchanged.
	found, err := exists(ctx, r.q, r.sb, "bids", bidID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("mysql: update bid %s: %w", bidID, domain.ErrBidNotFound)
	}
	return nil
}

func (r *MySQLBidRepository) query(ctx context.Context, builder sq.SelectBuilder) ([]*domain.Bid, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	var status int

	if err := row.Scan(&bid.ID, &bid.ListingID, &bid.BidderID, &bid.Amount, &status, &bid.CreatedAt); err != nil {
		return nil, err
	}

	bid.Status = domain.BidStatus(status)
	return &bid, nil
}
