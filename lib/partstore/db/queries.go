package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type CreateBookParams struct {
	Title     string
	CreatedAt int64
}

func (q *Queries) CreateBook(ctx context.Context, arg CreateBookParams) error {
	_, err := q.db.ExecContext(
		ctx,
		`insert into books (title, created_at) values (?, ?)
		 on conflict (title) do nothing`,
		arg.Title, arg.CreatedAt,
	)
	return err
}

func (q *Queries) GetBookId(ctx context.Context, title string) (int64, error) {
	row := q.db.QueryRowContext(ctx, `select id from books where title = ?`, title)
	var id int64
	err := row.Scan(&id)
	return id, err
}

type Book struct {
	ID        int64
	Title     string
	CreatedAt int64
}

func (q *Queries) GetBooks(ctx context.Context) ([]Book, error) {
	rows, err := q.db.QueryContext(ctx, `select id, title, created_at from books order by title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		var b Book
		err := rows.Scan(&b.ID, &b.Title, &b.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type CreatePartParams struct {
	BookID     int64
	Part       int64
	Url        string
	Path       string
	Size       int64
	CapturedAt int64
}

func (q *Queries) CreatePart(ctx context.Context, arg CreatePartParams) error {
	_, err := q.db.ExecContext(
		ctx,
		`insert into parts (book_id, part, url, path, size, captured_at)
		 values (?, ?, ?, ?, ?, ?)
		 on conflict (book_id, part) do update set
		     url = excluded.url,
		     path = excluded.path,
		     size = excluded.size,
		     captured_at = excluded.captured_at`,
		arg.BookID, arg.Part, arg.Url, arg.Path, arg.Size, arg.CapturedAt,
	)
	return err
}

type PartRow struct {
	Part       int64
	Url        string
	Path       string
	Size       int64
	CapturedAt int64
}

func (q *Queries) GetParts(ctx context.Context, bookID int64) ([]PartRow, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`select part, url, path, size, captured_at from parts
		 where book_id = ? order by part`,
		bookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PartRow
	for rows.Next() {
		var p PartRow
		err := rows.Scan(&p.Part, &p.Url, &p.Path, &p.Size, &p.CapturedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
