package mysql

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
)

// MySQLDirectory answers category and user lookups from tables owned by the
// catalogue and account services.
type MySQLDirectory struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewMySQLDirectory(db *sql.DB) *MySQLDirectory {
	return &MySQLDirectory{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

func (d *MySQLDirectory) CategoryExists(ctx context.Context, categoryID string) (bool, error) {
	return exists(ctx, d.db, d.sb, "categories", categoryID)
}

func (d *MySQLDirectory) IsValidUser(ctx context.Context, userID string) (bool, error) {
	query, args, err := d.sb.Select("is_active").From("users").Where(sq.Eq{"id": userID}).ToSql()
	if err != nil {
		return false, err
	}
	var active bool
	err = d.db.QueryRowContext(ctx, query, args...).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return active, err
}
