package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/xdrprobe/internal/env"
	"github.com/luma/xdrprobe/schema/replicator"
	"github.com/luma/xdrprobe/storage"
	"github.com/luma/xdrprobe/transport"
)

var (
	// The host to listen on
	stubHost string

	// The port to listen for http requests on
	httpPort string

	// The port to listen for tcp clients on
	stubPort int

	// Answer requests concurrently, so responses can be reordered
	stubAsync bool
)

func init() {
	registerStubFlags(StubCmd)
}

func registerStubFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.IntVarP(&stubPort, "port", "p", env.DefaultPort, "The port to listen for client connections on, overrides XDRPROBE_PORT")
	flags.StringVar(&httpPort, "http-port", "6777", "The port to listen to HTTP requests on")
	flags.StringVarP(&stubHost, "host", "a", "127.0.0.1", "The host to listen on, overrides XDRPROBE_HOST")
	flags.BoolVar(&stubAsync, "async", false, "Answer requests concurrently instead of in arrival order")
}

// listenAddr picks the stub's host and port: flags that were given win,
// otherwise the configuration applies.
func listenAddr(cmd *cobra.Command, conf *env.Config) (string, int) {
	host, port := conf.Host, conf.Port

	if cmd.Flags().Changed("host") {
		host = stubHost
	}
	if cmd.Flags().Changed("port") {
		port = stubPort
	}

	return host, port
}

var StubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Stand in for a replicator server",
	Long: `Stand in for a replicator server

Usage
	xdrprobe stub

Answers LOGON commands as a version 1.1.1 server would, and records every
command it receives. GET /requests on the HTTP port returns that record.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}
		defer log.Sync() // nolint:errcheck

		host, port := listenAddr(cmd, conf)

		journal := storage.NewJournal(storage.NewInmemoryStore())
		defer journal.Close()

		stub := replicator.NewStub(replicator.ServerVersion, journal, log)

		router := setupRouter(conf.DebugHTTP, log)

		// Ping test
		router.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		router.GET("/requests", func(c *gin.Context) {
			dump, err := journal.Dump()
			if err != nil {
				c.AbortWithError(http.StatusInternalServerError, err) // nolint:errcheck
				return
			}

			c.Data(http.StatusOK, "application/json", dump)
		})

		router.GET("/requests/:id", func(c *gin.Context) {
			id, err := strconv.ParseUint(c.Param("id"), 10, 32)
			if err != nil {
				c.String(http.StatusBadRequest, "request ids are unsigned 32 bit integers")
				return
			}

			entry, err := journal.Entry(c.Request.Context(), uint32(id))
			if err != nil {
				c.AbortWithError(http.StatusInternalServerError, err) // nolint:errcheck
				return
			}

			if !entry.Exists() {
				c.Status(http.StatusNotFound)
				return
			}

			c.Data(http.StatusOK, "application/json", []byte(entry.Raw))
		})

		s := &http.Server{
			Addr:    net.JoinHostPort(host, httpPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		tcp := transport.NewTCP(transport.Options{
			Host:      host,
			Port:      port,
			Reuseport: true,
			Handler:   stub.Handle,
			Async:     stubAsync,
			Log:       log.Named("transport"),
		})

		if err := tcp.Start(ctx); err != nil {
			return err
		}

		log.Info("Listening",
			zap.Any("config", conf),
			zap.String("host", host),
			zap.Int("port", port),
			zap.String("httpPort", httpPort),
			zap.Stringer("version", replicator.ServerVersion))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(ctx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if err := tcp.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, in UTC
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}
