package commands

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"libbydl/cmd/libbydl/utils"
	"libbydl/lib/configutil"
)

const configFile = "libby_config.json5"

type Config struct {
	CardNumber  string `json:"card_number"`
	Pin         string `json:"pin"`
	Library     string `json:"library"`
	DownloadDir string `json:"download_dir"`
	Headless    bool   `json:"headless"`
	ChromePath  string `json:"chrome_path"`
	ProfileDir  string `json:"profile_dir"`
	// selections remembered from an earlier run
	LibraryResultIndex *int `json:"library_search_result_index"`
	CardUsageIndex     *int `json:"card_usage_option_index"`
}

// loadConfig reads libby_config.json5 and prompts for any missing
// required field, saving the answers back.
func loadConfig(prompt utils.ConsolePrompter) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](configFile)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no configuration found, prompting for details", "file", configFile)
		err = nil
	}
	if err != nil {
		return cfg, err
	}

	changed := false
	if cfg.CardNumber == "" {
		cfg.CardNumber, err = prompt.Input("Please enter your library card number", "")
		if err != nil {
			return cfg, err
		}
		changed = true
	}
	if cfg.Pin == "" {
		cfg.Pin, err = prompt.Input("Please enter your Libby password (PIN)", "")
		if err != nil {
			return cfg, err
		}
		changed = true
	}
	if cfg.Library == "" {
		cfg.Library, err = prompt.Input("Please enter your library (e.g. Boston Public Library)", "")
		if err != nil {
			return cfg, err
		}
		changed = true
	}
	if cfg.DownloadDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return cfg, err
		}
		fallback := filepath.Join(cwd, "Libby_Audiobook_Downloads")
		cfg.DownloadDir, err = prompt.Input("Enter download directory", fallback)
		if err != nil {
			return cfg, err
		}
		changed = true
	}

	if changed {
		err = saveConfig(cfg)
		if err != nil {
			return cfg, err
		}
	}

	err = os.MkdirAll(cfg.DownloadDir, 0755)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func saveConfig(cfg Config) error {
	err := configutil.WriteConfig(configFile, cfg)
	if err != nil {
		return err
	}
	slog.Info("saved configuration", "file", configFile)
	return nil
}
