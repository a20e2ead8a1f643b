package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livedevhub/collab-relay/internal/chatstore"
	"github.com/livedevhub/collab-relay/internal/relay"
	"github.com/livedevhub/collab-relay/internal/server/middleware"
	"github.com/livedevhub/collab-relay/pkg/config"
	"github.com/livedevhub/collab-relay/pkg/state"
	"github.com/livedevhub/collab-relay/pkg/state/statemanager"
	"github.com/livedevhub/collab-relay/pkg/transport"
)

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	groups       *transport.GroupTable
	relay        *relay.Relay
	metrics      *serverMetrics
	wg           sync.WaitGroup
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, chats chatstore.Store, reg *prometheus.Registry) *App {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	stateManager := statemanager.NewInMemoryManager(logger)
	groups := transport.NewGroupTable(logger)
	eventRelay := relay.New(logger, stateManager, groups, chats, cfg.Chat.SaveTimeout, reg)

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		groups:       groups,
		relay:        eventRelay,
		metrics:      newServerMetrics(reg),
		config:       cfg,
		ctx:          rootCtx,
	}

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewUpgradeLogger(app.logger),
			middleware.NewConnectionLimiter(logger, stateManager.ConnectionCountByIP, cfg.Server.MaxConnsPerIP),
			middleware.NewAuthMiddleware(logger, cfg.Server.Auth),
		),
	)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		a.logger.Error("Upgrade handler reached without request metadata. Check the middleware chain.")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
	)

	acceptOpts := &websocket.AcceptOptions{}
	if len(a.config.Server.AllowedOrigins) > 0 {
		acceptOpts.OriginPatterns = a.config.Server.AllowedOrigins
	} else {
		acceptOpts.InsecureSkipVerify = true
	}

	wsConn, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		a.metrics.upgradeFailures.Inc()
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		nil,
		nil,
		a.logger,
	)
	if _, err := a.stateManager.RegisterConnection(conn, reqMeta.IP); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}
	conn.SetOnMessageHandler(a.relay.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		a.relay.HandleClose(id, err)
		a.metrics.activeConnections.Dec()
	})

	a.metrics.connectionsTotal.Inc()
	a.metrics.activeConnections.Inc()
	connLogger.Info("Client connection fully established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.stateManager.Connections() {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
