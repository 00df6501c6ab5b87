package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/practicesync/internal/config"
	"github.com/mschirtzinger/practicesync/internal/credential"
	"github.com/mschirtzinger/practicesync/internal/model"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show configuration, credential and cache status",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		fmt.Println(renderHeader("Configuration"))
		fmt.Printf("   File:      %s\n", path)
		fmt.Printf("   API:       %s\n", cfg.API.BaseURL)
		if err := cfg.RequireDatabases(); err != nil {
			fmt.Printf("   Databases: %s\n", renderWarn(err.Error()))
		} else {
			fmt.Printf("   Databases: %s\n", renderPass("configured"))
		}

		fmt.Println(renderHeader("Credential"))
		switch _, err := cfg.Credentials().Token(); {
		case err == nil:
			fmt.Printf("   %s token available\n", renderPass("✓"))
		case errors.Is(err, credential.ErrNoCredential):
			fmt.Printf("   %s no token; run 'practice login'\n", renderWarn("⚠"))
		default:
			fmt.Printf("   %s %v\n", renderFail("✗"), err)
		}

		fmt.Println(renderHeader("Cache"))
		info, err := os.Stat(cfg.Cache.Path)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("   %s not created yet; run 'practice sync'\n", renderWarn("⚠"))
			return nil
		}
		if err != nil {
			return err
		}

		a, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.store.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("   Path:     %s (%s)\n", st.Path, formatSize(info.Size()))
		fmt.Printf("   Library:  %d items%s\n", st.LibraryItems, updated(st.Updated(model.MetadataLibrary)))
		fmt.Printf("   Sessions: %d%s\n", st.Sessions, updated(st.Updated(model.MetadataSessions)))
		fmt.Printf("   Logs:     %d\n", st.Logs)
		return nil
	},
}

func updated(t time.Time, ok bool) string {
	if !ok {
		return renderMuted("  never synced")
	}
	return renderMuted("  synced " + humanizeAge(time.Since(t)) + " ago")
}

func humanizeAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
