package partstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"libbydl/lib/capture"
	"libbydl/lib/partstore/db"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Store is the capture ledger: which parts of which book have been
// written to disk. It lets an interrupted run resume without saving
// parts twice.
type Store struct {
	db  *sql.DB
	qry *db.Queries
}

// Open opens the ledger at a local file path or, for libsql:// and
// https:// urls, on a remote sqld instance.
func Open(path string) (Store, error) {
	var sqlite *sql.DB
	var err error
	if strings.HasPrefix(path, "libsql://") || strings.HasPrefix(path, "https://") {
		sqlite, err = sql.Open("libsql", path)
	} else {
		sqlite, err = sql.Open("sqlite", path)
		if err == nil {
			// see this stackoverflow post for information on why the following
			// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
			sqlite.SetMaxOpenConns(1)
			_, err = sqlite.Exec("PRAGMA journal_mode=WAL")
		}
	}
	if err != nil {
		return Store{}, err
	}
	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		sqlite.Close()
		return Store{}, err
	}
	return New(sqlite), nil
}

func New(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

func (s Store) Close() error {
	return s.db.Close()
}

// Book returns the id for a title, creating it if necessary.
func (s Store) Book(ctx context.Context, title string) (int64, error) {
	err := s.qry.CreateBook(ctx, db.CreateBookParams{
		Title:     title,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return 0, err
	}
	return s.qry.GetBookId(ctx, title)
}

func (s Store) Books(ctx context.Context) ([]db.Book, error) {
	return s.qry.GetBooks(ctx)
}

// Parts returns the recorded parts for a book as capture.Part values,
// suitable for seeding a tracker.
func (s Store) Parts(ctx context.Context, bookID int64) ([]capture.Part, error) {
	rows, err := s.qry.GetParts(ctx, bookID)
	if err != nil {
		return nil, err
	}

	out := make([]capture.Part, len(rows))
	for i, r := range rows {
		out[i] = capture.Part{
			Number:     int(r.Part),
			Url:        r.Url,
			Path:       r.Path,
			Size:       r.Size,
			CapturedAt: time.Unix(r.CapturedAt, 0),
		}
	}
	return out, nil
}

// BookRecorder binds the store to one book so it satisfies
// capture.Recorder.
type BookRecorder struct {
	store  Store
	bookID int64
}

func (s Store) Recorder(bookID int64) BookRecorder {
	return BookRecorder{store: s, bookID: bookID}
}

func (r BookRecorder) RecordPart(ctx context.Context, part capture.Part) error {
	return r.store.qry.CreatePart(ctx, db.CreatePartParams{
		BookID:     r.bookID,
		Part:       int64(part.Number),
		Url:        part.Url,
		Path:       part.Path,
		Size:       part.Size,
		CapturedAt: part.CapturedAt.Unix(),
	})
}
