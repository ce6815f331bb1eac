// cmd/camroll/main.go
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/AlverezYari/camroll/internal/capture"
	"github.com/AlverezYari/camroll/internal/config"
	"github.com/AlverezYari/camroll/internal/logging"
	"github.com/AlverezYari/camroll/internal/media"
	"github.com/AlverezYari/camroll/internal/permission"
	"github.com/AlverezYari/camroll/internal/server"
	"github.com/AlverezYari/camroll/internal/tui"
	"github.com/AlverezYari/camroll/pkg/camera"
	"github.com/AlverezYari/camroll/pkg/medialib"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "camroll",
	Short:         "Take photos and videos and browse them in a terminal camera roll",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScreen,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.config/camroll/config.json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openLibrary(cfg *config.AppConfig) (*medialib.Store, error) {
	store, err := medialib.Open(cfg.LibraryDir, medialib.WithPermission(cfg.Permissions.MediaLibrary))
	if err != nil {
		return nil, fmt.Errorf("open media library: %w", err)
	}
	return store, nil
}

func openCamera(cfg *config.AppConfig) (camera.Service, error) {
	if err := os.MkdirAll(cfg.CaptureDir, 0755); err != nil {
		return nil, fmt.Errorf("create capture directory: %w", err)
	}
	return camera.Open(camera.Options{
		Backend:    cfg.Camera.Backend,
		OutputDir:  cfg.CaptureDir,
		Permission: cfg.Permissions.Camera,
	})
}

func surfaceFor(cfg *config.AppConfig) (camera.Surface, error) {
	w, h, err := cfg.Camera.StreamConfig.Size()
	if err != nil {
		return camera.Surface{}, err
	}
	return camera.Surface{
		DeviceID: cfg.Camera.DeviceID,
		Stream: camera.StreamConfig{
			Width:     w,
			Height:    h,
			Framerate: cfg.Camera.StreamConfig.FPS,
		},
	}, nil
}

func runScreen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logs := logging.NewRing(200)
	logFile, err := logging.Setup(cfg.Log.Level, cfg.Log.File, logs)
	if err != nil {
		return err
	}
	defer logFile.Close()

	store, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cam, err := openCamera(cfg)
	if err != nil {
		return err
	}
	surface, err := surfaceFor(cfg)
	if err != nil {
		return err
	}

	gate := permission.NewGate(cam, store, cfg.Permissions.Timeout)
	collection := media.NewCollection()

	persist := capture.NewPersister(store, gate, cfg.Capture.PersistWorkers, cfg.Capture.PersistTimeout)
	defer func() {
		persist.Wait()
		persist.Close()
	}()

	session := capture.NewSession(cam, gate, collection, persist, capture.Config{
		CaptureTimeout: cfg.Capture.CaptureTimeout,
		RecordTimeout:  cfg.Capture.RecordTimeout,
	})
	defer session.Close()

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server.Port, collection)
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("Error starting gallery server")
			srv = nil
		} else {
			defer srv.Stop()
		}
	}

	log.Info().
		Str("backend", cfg.Camera.Backend).
		Str("library", cfg.LibraryDir).
		Msg("Starting camera roll")

	p := tea.NewProgram(
		tui.New(tui.Deps{
			Gate:       gate,
			Session:    session,
			Collection: collection,
			Library:    store,
			Surface:    surface,
			Server:     srv,
			Logs:       logs,
		}),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run screen: %w", err)
	}
	return nil
}
