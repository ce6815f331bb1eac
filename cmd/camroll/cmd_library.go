package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlverezYari/camroll/pkg/camera"
)

func init() {
	rootCmd.AddCommand(listCmd, devicesCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List photos and videos in the media library, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openLibrary(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		granted, err := store.RequestPermission(ctx)
		if err != nil || !granted {
			return fmt.Errorf("media library access denied")
		}

		assets, err := store.ListAssets(ctx)
		if err != nil {
			return fmt.Errorf("list assets: %w", err)
		}
		if len(assets) == 0 {
			fmt.Fprintln(os.Stdout, "No photos or videos yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tKIND\tID\tURI")
		for _, a := range assets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.CreatedAt.Local().Format(time.DateTime), a.Kind, a.ID, a.URI)
		}
		return w.Flush()
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List cameras the configured backend can see",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cam, err := openCamera(cfg)
		if err != nil {
			return err
		}
		scanner, ok := cam.(camera.Scanner)
		if !ok {
			return fmt.Errorf("backend %q cannot list devices", cfg.Camera.Backend)
		}

		devices, err := scanner.ScanDevices()
		if err != nil {
			return fmt.Errorf("scan devices: %w", err)
		}
		for _, d := range devices {
			status := "available"
			if !d.IsAvailable {
				status = "busy"
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.DeviceType, status)
		}
		return nil
	},
}
