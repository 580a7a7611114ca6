package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/schedula/internal/api"
	"github.com/satriahrh/schedula/internal/auth"
	"github.com/satriahrh/schedula/internal/websocket"
)

const controlTokenTTL = 24 * time.Hour

var portFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a session behind the local control API",
	Long: `serve starts a conversation session and exposes it over HTTP and a
websocket event stream. When control.token (SCHEDULA_CONTROL_TOKEN) is set,
a bearer token signed with it is printed and required on every request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(zapcore.Lock(os.Stderr))
		if err != nil {
			return err
		}
		defer a.close()

		port := a.cfg.Control.Port
		if portFlag != "" {
			port = portFlag
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session, err := a.newSession(ctx)
		if err != nil {
			return err
		}
		session.Start(ctx)
		defer session.Close()

		var secret []byte
		if a.cfg.Control.Token != "" {
			secret = []byte(a.cfg.Control.Token)
			token, err := auth.GenerateControlToken(secret, controlTokenTTL)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Control token (valid %s): %s\n", controlTokenTTL, token)
		}

		hub := websocket.NewHub(session, a.logger)
		events, unsubscribe := session.Subscribe()
		defer unsubscribe()

		e := echo.New()
		e.HideBanner = true
		e.Use(middleware.Logger())
		e.Use(middleware.Recover())
		e.Use(middleware.CORS())

		api.InitRoutes(e, api.Deps{
			Session:       session,
			Schedule:      a.scheduleService(),
			Hub:           hub,
			ControlSecret: secret,
		}, a.logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		g.Go(func() error {
			hub.Forward(gctx, events)
			return nil
		})
		g.Go(func() error {
			if err := session.LoadHistory(gctx); err != nil {
				a.logger.Warn("Failed to load history", zap.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			a.logger.Info("Control API listening", zap.String("port", port))
			if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.logger.Info("Server is shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		})

		err = g.Wait()
		a.logger.Info("Server exited")
		return err
	},
}

func init() {
	serveCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Port to listen on (default from PORT or 8080)")
}
