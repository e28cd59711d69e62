package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/runcell/runcell/language"
	"github.com/runcell/runcell/playground"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playground HTTP API",
	Long: `Start an HTTP server exposing the orchestration API.

Endpoints:
  GET    /api/v1/runtimes                    Runtime status snapshot
  POST   /api/v1/runtimes/{language}/init    Initialize a runtime
  POST   /api/v1/runtimes/{language}/preload Warm a runtime up
  DELETE /api/v1/runtimes/{language}         Tear a runtime down
  POST   /api/v1/execute                     Execute code
  GET    /api/v1/history[?language=...]      Execution history
  DELETE /api/v1/history[?language=...]      Clear history
  GET    /api/v1/ws                          Status + execution stream
  GET    /health                             Health check`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "Bind address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

type server struct {
	pg  *playground.Playground
	log *logrus.Entry
}

type executeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.BindAddress = addr
	}

	pg, engine, err := buildPlayground(cfg)
	if err != nil {
		fatal(err)
	}
	defer engine.Close()
	defer pg.Close()

	s := &server{
		pg:  pg,
		log: logrus.WithField("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runtimes", s.handleRuntimes)
		r.Post("/runtimes/{language}/init", s.handleInit)
		r.Post("/runtimes/{language}/preload", s.handlePreload)
		r.Delete("/runtimes/{language}", s.handleCleanup)
		r.Post("/execute", s.handleExecute)
		r.Get("/history", s.handleHistory)
		r.Delete("/history", s.handleClearHistory)
		r.Get("/ws", s.handleWebSocket)
	})

	httpServer := &http.Server{
		Addr:    cfg.BindAddress,
		Handler: r,
	}

	go func() {
		s.log.Infof("listening on %s", cfg.BindAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		s.log.WithError(err).Error("shutdown failed")
	}
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *server) pathLanguage(w http.ResponseWriter, r *http.Request) (language.Language, bool) {
	lang, err := language.Parse(chi.URLParam(r, "language"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return "", false
	}
	return lang, true
}

func (s *server) handleRuntimes(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pg.RuntimeStatus())
}

func (s *server) handleInit(w http.ResponseWriter, r *http.Request) {
	lang, ok := s.pathLanguage(w, r)
	if !ok {
		return
	}
	if err := s.pg.InitRuntime(r.Context(), lang); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, s.pg.RuntimeStatus()[lang])
}

func (s *server) handlePreload(w http.ResponseWriter, r *http.Request) {
	lang, ok := s.pathLanguage(w, r)
	if !ok {
		return
	}
	// Fire and forget: preloading must not block the caller.
	go func() {
		if err := s.pg.PreloadRuntime(context.Background(), lang); err != nil {
			s.log.WithField("language", lang.String()).WithError(err).Warn("preload failed")
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	lang, ok := s.pathLanguage(w, r)
	if !ok {
		return
	}
	if err := s.pg.Cleanup(lang); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	lang, err := language.Parse(req.Language)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rec, err := s.pg.RunCode(r.Context(), req.Code, lang)
	if err == playground.ErrExecutionInProgress {
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("language"); name != "" {
		lang, err := language.Parse(name)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, s.pg.HistoryFor(lang))
		return
	}
	s.writeJSON(w, http.StatusOK, s.pg.History())
}

func (s *server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("language"); name != "" {
		lang, err := language.Parse(name)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.pg.ClearHistoryFor(lang)
	} else {
		s.pg.ClearHistory()
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsMessage struct {
	Type     string `json:"type"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
	Payload  any    `json:"payload,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleWebSocket streams status snapshots to the client and accepts
// run requests, replying with the finished record.
func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg wsMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			s.log.WithError(err).Debug("websocket write failed")
		}
	}

	unsubscribe := s.pg.Subscribe(func(snap playground.Snapshot) {
		send(wsMessage{Type: "status", Payload: snap})
	})
	defer unsubscribe()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "run":
			lang, err := language.Parse(msg.Language)
			if err != nil {
				send(wsMessage{Type: "error", Error: err.Error()})
				continue
			}
			go func(code string, lang language.Language) {
				rec, err := s.pg.RunCode(r.Context(), code, lang)
				if err != nil {
					send(wsMessage{Type: "error", Error: err.Error()})
					return
				}
				send(wsMessage{Type: "result", Payload: rec})
			}(msg.Code, lang)
		case "ping":
			send(wsMessage{Type: "pong"})
		default:
			send(wsMessage{Type: "error", Error: "unknown message type"})
		}
	}
}
