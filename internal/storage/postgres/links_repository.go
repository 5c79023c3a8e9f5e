package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tinylink-io/tinylink/internal/infrastructure/db"
	"github.com/tinylink-io/tinylink/internal/processing/links"
)

const pgUniqueViolation = "23505"

type LinksRepository struct {
	pool *pgxpool.Pool
}

func NewLinksRepository(p *db.Postgres) (*LinksRepository, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	return &LinksRepository{pool: p.Pool}, nil
}

const findLinkByCodeSQL = `
SELECT id, code, url, clicks, last_clicked_at, created_at
FROM links
WHERE code = $1
`

func (r *LinksRepository) FindByCode(ctx context.Context, code string) (*links.Link, error) {
	link, err := scanLink(r.pool.QueryRow(ctx, findLinkByCodeSQL, code))
	if err == nil {
		return link, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, links.ErrNotFound
	}
	return nil, err
}

const insertLinkSQL = `
INSERT INTO links (code, url)
VALUES ($1, $2)
RETURNING id, code, url, clicks, last_clicked_at, created_at
`

// Insert relies on the unique index on code; a concurrent claim of the
// same code surfaces as ErrCodeExists, never as a second row.
func (r *LinksRepository) Insert(ctx context.Context, code, url string) (*links.Link, error) {
	link, err := scanLink(r.pool.QueryRow(ctx, insertLinkSQL, code, url))
	if err == nil {
		return link, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return nil, links.ErrCodeExists
	}
	return nil, err
}

const deleteLinkByCodeSQL = `
DELETE FROM links
WHERE code = $1
`

func (r *LinksRepository) DeleteByCode(ctx context.Context, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, deleteLinkByCodeSQL, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const incrementClickSQL = `
UPDATE links
SET clicks = clicks + 1,
    last_clicked_at = now()
WHERE code = $1
RETURNING id, code, url, clicks, last_clicked_at, created_at
`

// IncrementClick is a single atomic read-modify-write; concurrent
// redirects for the same code serialize on the row, so no increment is
// ever lost.
func (r *LinksRepository) IncrementClick(ctx context.Context, code string) (*links.Link, error) {
	link, err := scanLink(r.pool.QueryRow(ctx, incrementClickSQL, code))
	if err == nil {
		return link, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, links.ErrNotFound
	}
	return nil, err
}

const listAllLinksSQL = `
SELECT id, code, url, clicks, last_clicked_at, created_at
FROM links
ORDER BY created_at DESC, id DESC
`

func (r *LinksRepository) ListAll(ctx context.Context) ([]*links.Link, error) {
	rows, err := r.pool.Query(ctx, listAllLinksSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*links.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

func scanLink(row pgx.Row) (*links.Link, error) {
	var (
		link          links.Link
		lastClickedAt pgtype.Timestamptz
		createdAt     pgtype.Timestamptz
	)

	err := row.Scan(&link.ID, &link.Code, &link.URL, &link.Clicks, &lastClickedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	link.CreatedAt = createdAt.Time.UTC()
	if lastClickedAt.Valid {
		t := lastClickedAt.Time.UTC()
		link.LastClickedAt = &t
	}

	return &link, nil
}

func toNullableText(v string) pgtype.Text {
	if v == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{
		String: v,
		Valid:  true,
	}
}

func nullableTextValue(v pgtype.Text) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func toTimestamptz(v time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{
		Time:  v.UTC(),
		Valid: true,
	}
}
