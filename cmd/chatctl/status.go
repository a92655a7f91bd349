package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/chatsync/internal/daemon"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/profile"
)

const probeTimeout = 2 * time.Second

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Profile string `json:"profile"`
	Locked  bool   `json:"locked"`
	PID     int    `json:"pid,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Health  string `json:"health"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the profile's daemon is running and connected",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := activeProfile()
		if err != nil {
			return err
		}
		r := statusReport{Profile: name, Health: "UNREACHABLE"}
		r.Locked, r.PID, r.Mode = lock.Probe(profile.Dir(name))
		if r.Locked && r.Mode == daemon.ModeDaemon {
			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()
			if st, err := probe(ctx, profile.SocketPath(name)); err == nil {
				r.Health = st
			}
		}

		if jsonFlag {
			return outputJSON(r)
		}
		fmt.Printf("Profile: %s\n", r.Profile)
		if !r.Locked {
			fmt.Println("Process: not running")
			return nil
		}
		fmt.Printf("Process: %s (PID %d)\n", r.Mode, r.PID)
		if r.Mode == daemon.ModeDaemon {
			fmt.Printf("Engine:  %s\n", r.Health)
		}
		return nil
	},
}

// probe asks the daemon's health service whether the engine is serving.
func probe(ctx context.Context, socketPath string) (string, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: daemon.EngineService})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}
