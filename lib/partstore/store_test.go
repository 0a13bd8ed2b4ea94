package partstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"libbydl/lib/capture"
	"libbydl/lib/partstore/db"
	"libbydl/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func setup(t testing.TB) (Store, func()) {
	cleanup := telemetry.SetupForTesting(t, "test:lib/partstore")

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		t.Fatal(err)
	}

	return New(sqlite), cleanup
}

func TestBookUpsert(t *testing.T) {
	store, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	id1, err := store.Book(ctx, "The Stand")
	require.NoError(t, err)
	id2, err := store.Book(ctx, "The Stand")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	id3, err := store.Book(ctx, "Dune")
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)

	books, err := store.Books(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
}

func TestPartRoundtrip(t *testing.T) {
	store, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	bookId, err := store.Book(ctx, "The Stand")
	require.NoError(t, err)

	captured := time.Now().Truncate(time.Second)
	recorder := store.Recorder(bookId)
	err = recorder.RecordPart(ctx, capture.Part{
		Number:     2,
		Url:        "https://audioclips.cdn.overdrive.com/b",
		Path:       "/tmp/Part_02.mp3",
		Size:       64,
		CapturedAt: captured,
	})
	require.NoError(t, err)
	err = recorder.RecordPart(ctx, capture.Part{
		Number:     1,
		Url:        "https://audioclips.cdn.overdrive.com/a",
		Path:       "/tmp/Part_01.mp3",
		Size:       32,
		CapturedAt: captured,
	})
	require.NoError(t, err)

	parts, err := store.Parts(ctx, bookId)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	require.Equal(t, 1, parts[0].Number)
	require.Equal(t, "/tmp/Part_01.mp3", parts[0].Path)
	require.Equal(t, int64(32), parts[0].Size)
	require.Equal(t, captured.Unix(), parts[0].CapturedAt.Unix())
	require.Equal(t, 2, parts[1].Number)
}

func TestPartUpsert(t *testing.T) {
	store, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	bookId, err := store.Book(ctx, "Dune")
	require.NoError(t, err)

	recorder := store.Recorder(bookId)
	err = recorder.RecordPart(ctx, capture.Part{
		Number: 1, Path: "/tmp/old.mp3", Size: 16, CapturedAt: time.Now(),
	})
	require.NoError(t, err)
	err = recorder.RecordPart(ctx, capture.Part{
		Number: 1, Path: "/tmp/Part_01.mp3", Size: 48, CapturedAt: time.Now(),
	})
	require.NoError(t, err)

	parts, err := store.Parts(ctx, bookId)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, "/tmp/Part_01.mp3", parts[0].Path)
	require.Equal(t, int64(48), parts[0].Size)
}

func TestPartsAreScopedToBook(t *testing.T) {
	store, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	book1, err := store.Book(ctx, "The Stand")
	require.NoError(t, err)
	book2, err := store.Book(ctx, "Dune")
	require.NoError(t, err)

	err = store.Recorder(book1).RecordPart(ctx, capture.Part{
		Number: 1, Path: "/tmp/Part_01.mp3", CapturedAt: time.Now(),
	})
	require.NoError(t, err)

	parts, err := store.Parts(ctx, book2)
	require.NoError(t, err)
	require.Empty(t, parts)
}
