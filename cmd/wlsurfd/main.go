// wlsurfd is a headless Wayland compositor. Clients can connect, attach
// shared memory buffers to surfaces and commit them; the results are
// composited into an in-memory framebuffer at the configured refresh
// rate.
package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"sync"
	"time"

	"deedles.dev/wlsurf/internal/config"
	"deedles.dev/wlsurf/internal/debug"
	"deedles.dev/wlsurf/output"
	"deedles.dev/wlsurf/server"
	"deedles.dev/wlsurf/surface"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type state struct {
	cfg    *config.Config
	logger *log.Logger
	done   chan struct{}
	close  sync.Once
	start  time.Time

	compositor *server.Compositor
	server     *server.Server
	output     *output.Output
	cascade    image.Point
}

func (s *state) init() error {
	s.done = make(chan struct{})
	s.start = time.Now()

	s.output = output.New(output.Options{
		Width:    s.cfg.Output.Width,
		Height:   s.cfg.Output.Height,
		Portrait: s.cfg.Output.Portrait,
		Logger:   s.logger,
	})

	s.compositor = server.NewCompositor(server.Options{
		Surface: surface.Options{
			PoolWarnThreshold: s.cfg.Surface.PoolWarnThreshold,
			DeferOpaqueRegion: s.cfg.Surface.DeferOpaqueRegion,
			Orientation:       s.output,
		},
		Logger: s.logger,
	})
	s.compositor.OnSurface(s.showSurface)

	srv, err := server.Listen(s.cfg.Server.Socket, s.compositor)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	s.server = srv
	s.server.ClientAdded = func(c *server.Client) { s.logger.Debug("client connected", "client", c) }
	s.server.ClientRemoved = func(c *server.Client) { s.logger.Debug("client disconnected", "client", c) }

	s.logger.Info("listening", "socket", s.server.Addr())
	return nil
}

// showSurface places new surfaces in a cascade across the output.
func (s *state) showSurface(surf *surface.Surface) {
	s.output.Show(surf, s.cascade)

	s.cascade = s.cascade.Add(image.Pt(32, 32))
	if !s.cascade.In(s.output.Image().Bounds()) {
		s.cascade = image.Point{}
	}
}

func (s *state) stop() {
	s.close.Do(func() { close(s.done) })
	if s.server != nil {
		s.server.Close()
		s.server = nil
	}
}

// now returns the frame callback timestamp, in milliseconds.
func (s *state) now() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

func (s *state) run(ctx context.Context) {
	tick := time.NewTicker(time.Second / time.Duration(s.cfg.Output.Refresh))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-tick.C:
			err := s.server.Flush()
			if err != nil {
				s.logger.Error("flush", "err", err)
			}

			s.output.Frame(s.compositor, s.now())
		}
	}
}

// screenshot writes the framebuffer as a PNG.
func (s *state) screenshot(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	err = png.Encode(file, s.output.Image())
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return file.Close()
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configPath, screenshot string

	cmd := &cobra.Command{
		Use:          "wlsurfd",
		Short:        "Headless Wayland compositor",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, screenshot)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default: search for wlsurf.yaml)")
	cmd.Flags().StringVar(&screenshot, "screenshot", "", "write the final framebuffer to this PNG file on exit")
	addConfigFlags(cmd, v)

	return cmd
}

// addConfigFlags adds flags to cmd for the config keys that are
// commonly overridden from the command line.
func addConfigFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.StringP("socket", "s", config.Default.Server.Socket, "Wayland socket name")
	flags.String("log-level", config.Default.Log.Level, "log level")
	flags.Int("width", config.Default.Output.Width, "output width")
	flags.Int("height", config.Default.Output.Height, "output height")
	flags.Int("refresh", config.Default.Output.Refresh, "output refresh rate in Hz")
	flags.Bool("portrait", config.Default.Output.Portrait, "output is natively portrait")

	keys := map[string]string{
		"server.socket":   "socket",
		"log.level":       "log-level",
		"output.width":    "width",
		"output.height":   "height",
		"output.refresh":  "refresh",
		"output.portrait": "portrait",
	}
	for key, flag := range keys {
		err := v.BindPFlag(key, cmd.Flags().Lookup(flag))
		if err != nil {
			panic(fmt.Errorf("bind flag %q: %w", flag, err))
		}
	}
}

func run(ctx context.Context, cfg *config.Config, screenshot string) error {
	err := debug.SetLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("set log level: %w", err)
	}

	s := state{cfg: cfg, logger: debug.Logger}
	defer s.stop()

	err = s.init()
	if err != nil {
		return err
	}
	s.run(ctx)

	if screenshot != "" {
		err = s.screenshot(screenshot)
		if err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
		s.logger.Info("wrote screenshot", "path", screenshot)
	}
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}
