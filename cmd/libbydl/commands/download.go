package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"libbydl/cmd/libbydl/utils"
	"libbydl/lib/browser"
	"libbydl/lib/capture"
	"libbydl/lib/partstore"
	"libbydl/lib/restyutil"
	"libbydl/lib/scrapers/libby"
	"libbydl/lib/serviceutil"
	"libbydl/lib/telemetry"
	"libbydl/lib/textutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mazen160/go-random"
	"github.com/spf13/cobra"
)

var downloadTitle *string
var downloadDb *string

func init() {
	downloadTitle = downloadCmd.Flags().String("title", "", "Audiobook title to open, matched fuzzily against your shelf. Prompts if omitted.")
	downloadDb = downloadCmd.Flags().String("db", "", "The capture ledger database. Defaults to libbydl.db inside the download directory.")
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download [--title <audiobook>] [--db <path/to/ledger.db>]",
	Short: "Logs into Libby, opens an audiobook from your shelf and captures its audio parts.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx)
		prompt := utils.NewConsolePrompter()

		cfg, err := loadConfig(prompt)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}

		if *verbose {
			libby.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/libby"))
		}

		dbPath := *downloadDb
		if dbPath == "" {
			dbPath = filepath.Join(cfg.DownloadDir, "libbydl.db")
		}
		store, err := partstore.Open(dbPath)
		if err != nil {
			serviceutil.Fatal("failed to open capture ledger", err)
		}
		defer store.Close()

		runId, err := random.String(8)
		if err != nil {
			serviceutil.Fatal("failed to generate run id", err)
		}
		shotDir := filepath.Join(cfg.DownloadDir, "screenshots", runId)
		err = os.MkdirAll(shotDir, 0755)
		if err != nil {
			serviceutil.Fatal("failed to create screenshot directory", err)
		}
		slog.InfoContext(ctx, "starting run", "run_id", runId, "screenshots", shotDir)

		slog.InfoContext(ctx, "launching browser", "headless", cfg.Headless)
		session, err := browser.NewSession(ctx, browser.Options{
			Headless:   cfg.Headless,
			ProfileDir: cfg.ProfileDir,
			ExecPath:   cfg.ChromePath,
		})
		if err != nil {
			serviceutil.Fatal("failed to launch browser", err)
		}
		defer session.Close()

		client := libby.NewClient(libby.ClientOptions{
			Session:       session,
			Prompt:        prompt,
			ScreenshotDir: shotDir,
		})

		login, err := client.Login(ctx, libby.LoginOptions{
			Credentials: libby.Credentials{
				CardNumber: cfg.CardNumber,
				Pin:        cfg.Pin,
				Library:    cfg.Library,
			},
			LibraryResultIndex: cfg.LibraryResultIndex,
			CardUsageIndex:     cfg.CardUsageIndex,
		})
		if err != nil {
			serviceutil.Fatal("failed to login to libby", err)
		}

		// remember the selections for next time
		cfg.LibraryResultIndex = &login.LibraryResultIndex
		cfg.CardUsageIndex = &login.CardUsageIndex
		err = saveConfig(cfg)
		if err != nil {
			serviceutil.Fatal("failed to save config", err)
		}

		titles, err := client.OpenShelf(ctx)
		if err != nil {
			serviceutil.Fatal("failed to open shelf", err)
		}

		idx := -1
		if *downloadTitle != "" {
			idx = libby.MatchTitle(*downloadTitle, titles)
			if idx < 0 {
				serviceutil.Fatal(
					"no audiobook on your shelf matches the requested title",
					fmt.Errorf("title: %q", *downloadTitle),
				)
			}
			slog.InfoContext(ctx, "matched title", "requested", *downloadTitle, "matched", titles[idx])
		} else {
			idx, err = prompt.Choose("Audiobooks on your Shelf:", titles)
			if err != nil {
				serviceutil.Fatal("failed to read audiobook choice", err)
			}
		}
		title := titles[idx]

		bookId, err := store.Book(ctx, title)
		if err != nil {
			serviceutil.Fatal("failed to register book", err)
		}
		previous, err := store.Parts(ctx, bookId)
		if err != nil {
			serviceutil.Fatal("failed to read capture ledger", err)
		}

		bookDir := filepath.Join(cfg.DownloadDir, textutil.SafeFilename(title))
		err = os.MkdirAll(bookDir, 0755)
		if err != nil {
			serviceutil.Fatal("failed to create book directory", err)
		}

		tracker := capture.NewTracker(capture.TrackerOptions{
			Dir:      bookDir,
			Recorder: store.Recorder(bookId),
		})
		tracker.Seed(previous)
		if len(previous) > 0 {
			slog.InfoContext(ctx, "resuming from earlier run", "parts", len(previous))
		}

		session.CaptureAudio(tracker)

		t1 := time.Now()
		err = client.OpenAudiobook(ctx, idx, title)
		if err != nil {
			serviceutil.Fatal("failed to open audiobook player", err)
		}
		err = client.DiscoverForward(ctx, tracker)
		if err != nil {
			serviceutil.Fatal("forward discovery aborted", err)
		}
		err = client.RecoverMissing(ctx, tracker)
		if err != nil {
			serviceutil.Fatal("missing part recovery aborted", err)
		}
		refetchFailed(ctx, session, tracker, bookDir)
		t2 := time.Now()

		slog.InfoContext(ctx, "capture time", "seconds", t2.Sub(t1).Seconds())
		printSummary(tracker, title)
	},
}

// refetchFailed re-downloads parts whose CDN response was observed
// but whose body could not be captured, using the browser's cookies
// over plain HTTP.
func refetchFailed(ctx context.Context, session *browser.Session, tracker *capture.Tracker, bookDir string) {
	failed := tracker.FailedUrls()
	if len(failed) == 0 {
		return
	}
	slog.InfoContext(ctx, "refetching failed parts directly", "count", len(failed))

	cookies, err := session.Cookies(time.Second * 10)
	if err != nil {
		slog.WarnContext(ctx, "failed to export browser cookies", "err", err)
		return
	}
	direct, err := libby.NewDirectClient(cookies, "")
	if err != nil {
		slog.WarnContext(ctx, "failed to build direct client", "err", err)
		return
	}

	for part, url := range failed {
		body, err := direct.FetchPart(ctx, url)
		if err != nil {
			slog.WarnContext(ctx, "direct refetch failed", "part", part, "err", err)
			continue
		}

		name := fmt.Sprintf("Part_%02d.mp3", part)
		path := filepath.Join(bookDir, name)
		err = os.WriteFile(path, body, 0644)
		if err != nil {
			slog.WarnContext(ctx, "failed to write part file", "part", part, "err", err)
			continue
		}

		tracker.MarkSaved(ctx, capture.Part{
			Number:     part,
			Url:        url,
			Path:       path,
			Size:       int64(len(body)),
			CapturedAt: time.Now(),
		})
		slog.InfoContext(ctx, "refetched part directly", "part", part, "file", name)
	}
}

func printSummary(tracker *capture.Tracker, title string) {
	t := utils.NewTable()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"part", "size", "file"})
	for _, p := range tracker.Saved() {
		t.AppendRow(table.Row{p.Number, p.Size, filepath.Base(p.Path)})
	}
	t.Render()

	missing := tracker.Missing()
	if len(missing) == 0 {
		fmt.Println("No missing parts detected. All parts downloaded successfully!")
	} else {
		fmt.Printf("Parts still missing after all attempts: %v\n", missing)
	}
}
