package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/store"
)

func init() {
	rootCmd.AddCommand(presenceCmd)
}

type presenceRow struct {
	UserID    string    `json:"user_id"`
	State     string    `json:"state"`
	ChangedAt time.Time `json:"changed_at"`
}

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "Show last known presence from the profile cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := activeProfile()
		if err != nil {
			return err
		}
		path := profile.CachePath(name)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no cache for profile %q: %w", name, err)
		}
		db, err := store.OpenReadOnly(path)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		records, err := db.LoadPresence()
		if err != nil {
			return err
		}
		rows := make([]presenceRow, 0, len(records))
		for _, r := range records {
			rows = append(rows, presenceRow{UserID: r.SubjectID, State: string(r.State), ChangedAt: r.ChangedAt})
		}

		if jsonFlag {
			return outputJSON(rows)
		}
		if len(rows) == 0 {
			fmt.Println("No presence recorded.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%-12s %-8s %s\n", r.UserID, r.State, r.ChangedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}
