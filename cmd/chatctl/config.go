package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/profile"
)

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// setting binds a config key to the field it edits.
type setting struct {
	get func(*config.Config) string
	set func(*config.Config, string) error
}

var settings = map[string]setting{
	"notification-mode": {
		get: func(c *config.Config) string { return c.Notifications.Mode },
		set: func(c *config.Config, v string) error {
			switch v {
			case config.ModeSingleLatest, config.ModeQueue, config.ModeMultiple:
				c.Notifications.Mode = v
				return nil
			}
			return fmt.Errorf("notification-mode must be %s, %s or %s", config.ModeSingleLatest, config.ModeQueue, config.ModeMultiple)
		},
	},
	"grouping": {
		get: func(c *config.Config) string { return strconv.FormatBool(c.Notifications.Grouping) },
		set: func(c *config.Config, v string) error { return setBool(&c.Notifications.Grouping, v) },
	},
	"sound": {
		get: func(c *config.Config) string { return strconv.FormatBool(c.Notifications.Sound) },
		set: func(c *config.Config, v string) error { return setBool(&c.Notifications.Sound, v) },
	},
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", v)
	}
	*dst = b
	return nil
}

func lookup(key string) (setting, error) {
	s, ok := settings[key]
	if !ok {
		return setting{}, fmt.Errorf("unknown key %q (notification-mode, grouping, sound)", key)
	}
	return s, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or change notification settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := lookup(args[0])
		if err != nil {
			return err
		}
		cfg, err := config.LoadOrDefault(profile.ConfigPath())
		if err != nil {
			return err
		}
		fmt.Println(s.get(cfg))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting; running processes pick it up on restart",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := lookup(args[0])
		if err != nil {
			return err
		}
		cfg, err := config.LoadOrDefault(profile.ConfigPath())
		if err != nil {
			return err
		}
		if err := s.set(cfg, args[1]); err != nil {
			return err
		}
		if err := config.Save(profile.ConfigPath(), cfg); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], s.get(cfg))
		return nil
	},
}
