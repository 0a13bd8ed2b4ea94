package commands

import (
	"fmt"
	"path/filepath"

	"libbydl/cmd/libbydl/utils"
	"libbydl/lib/capture"
	"libbydl/lib/partstore"
	"libbydl/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var partsDb *string

func init() {
	partsDb = partsCmd.Flags().String("db", "", "The capture ledger database. Defaults to libbydl.db inside the download directory.")
	rootCmd.AddCommand(partsCmd)
}

var partsCmd = &cobra.Command{
	Use:   "parts [--db <path/to/ledger.db>]",
	Short: "Lists captured audio parts recorded in the capture ledger.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		dbPath := *partsDb
		if dbPath == "" {
			cfg, err := loadConfig(utils.NewConsolePrompter())
			if err != nil {
				serviceutil.Fatal("failed to load config", err)
			}
			dbPath = filepath.Join(cfg.DownloadDir, "libbydl.db")
		}
		store, err := partstore.Open(dbPath)
		if err != nil {
			serviceutil.Fatal("failed to open capture ledger", err)
		}
		defer store.Close()

		books, err := store.Books(ctx)
		if err != nil {
			serviceutil.Fatal("failed to list books", err)
		}
		if len(books) == 0 {
			fmt.Println("The capture ledger is empty.")
			return
		}

		for _, book := range books {
			parts, err := store.Parts(ctx, book.ID)
			if err != nil {
				serviceutil.Fatal("failed to list parts", err)
			}

			t := utils.NewTable()
			t.SetTitle(book.Title)
			t.AppendHeader(table.Row{"part", "size", "captured at", "file"})
			for _, p := range parts {
				t.AppendRow(table.Row{
					p.Number,
					p.Size,
					p.CapturedAt.Format("2006-01-02 15:04:05"),
					filepath.Base(p.Path),
				})
			}
			t.Render()

			missing := missingParts(parts)
			if len(missing) > 0 {
				fmt.Printf("Missing parts: %v\n", missing)
			}
		}
	},
}

func missingParts(parts []capture.Part) []int {
	have := map[int]bool{}
	max := 0
	for _, p := range parts {
		have[p.Number] = true
		if p.Number > max {
			max = p.Number
		}
	}
	var missing []int
	for n := 1; n <= max; n++ {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	return missing
}
