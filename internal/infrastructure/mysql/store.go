package mysql

import (
	"auction-settlement/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	mysqldriver "github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// MySQLStore persists the marketplace in MySQL. Mutations run inside a
// transaction that row-locks the listing.
type MySQLStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

func (s *MySQLStore) Listings() domain.ListingRepository { return s.repos(s.db).Listings() }
func (s *MySQLStore) Bids() domain.BidRepository         { return s.repos(s.db).Bids() }
func (s *MySQLStore) Orders() domain.OrderRepository     { return s.repos(s.db).Orders() }
func (s *MySQLStore) Payments() domain.PaymentRepository { return s.repos(s.db).Payments() }

func (s *MySQLStore) WithinListingTx(ctx context.Context, listingID string, fn func(tx domain.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := s.sb.Select("id").From("listings").
		Where(sq.Eq{"id": listingID}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return err
	}
	var id string
	if err = tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("mysql: lock listing %s: %w", listingID, domain.ErrListingNotFound)
		}
		return fmt.Errorf("mysql: lock listing %s: %w", listingID, err)
	}

	if err = fn(s.repos(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("mysql: commit: %w", err)
	}
	return nil
}

func (s *MySQLStore) repos(q queryer) repositories {
	return repositories{q: q, sb: s.sb}
}

type repositories struct {
	q  queryer
	sb sq.StatementBuilderType
}

func (r repositories) Listings() domain.ListingRepository { return &MySQLListingRepository{q: r.q, sb: r.sb} }
func (r repositories) Bids() domain.BidRepository         { return &MySQLBidRepository{q: r.q, sb: r.sb} }
func (r repositories) Orders() domain.OrderRepository     { return &MySQLOrderRepository{q: r.q, sb: r.sb} }
func (r repositories) Payments() domain.PaymentRepository { return &MySQLPaymentRepository{q: r.q, sb: r.sb} }

// exists reports whether table has a row with the given id.
func exists(ctx context.Context, q queryer, sb sq.StatementBuilderType, table, id string) (bool, error) {
	query, args, err := sb.Select("1").From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func isDuplicateEntry(err error) bool {
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
}

var (
	_ domain.Store        = (*MySQLStore)(nil)
	_ domain.Repositories = repositories{}
)
