package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/profile"
)

func init() {
	profilesCmd.AddCommand(profilesListCmd)
	rootCmd.AddCommand(profilesCmd)
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage profiles",
}

type profileRow struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Running bool   `json:"running"`
	Mode    string `json:"mode,omitempty"`
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := profile.List()
		if err != nil {
			return err
		}
		rows := make([]profileRow, 0, len(names))
		for _, n := range names {
			held, _, mode := lock.Probe(profile.Dir(n))
			rows = append(rows, profileRow{Name: n, Path: profile.Dir(n), Running: held, Mode: mode})
		}

		if jsonFlag {
			return outputJSON(rows)
		}
		if len(rows) == 0 {
			fmt.Println("No profiles found.")
			return nil
		}
		for _, r := range rows {
			state := "stopped"
			if r.Running {
				state = "running " + r.Mode
			}
			fmt.Printf("%-20s %s (%s)\n", r.Name, r.Path, state)
		}
		return nil
	},
}
