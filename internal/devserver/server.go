package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"codeberg.org/snonux/lingogate/internal/api"
	"codeberg.org/snonux/lingogate/internal/metrics"
	"codeberg.org/snonux/lingogate/internal/translation"
)

const (
	// TestSiteKey is the provider's always-passing public test key
	TestSiteKey = "1x00000000000000000000AA"

	DefaultListen  = "127.0.0.1:8080"
	DefaultPassTTL = 10 * time.Minute

	maxChars     = 5000
	maxBodyBytes = 64 << 10
)

// Config holds dev server settings
type Config struct {
	Listen     string
	SiteKey    string
	HeaderName string
	PassTTL    time.Duration
	Engine     translation.Engine
	Verifier   Verifier
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Server implements the translation API locally
type Server struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	mu     sync.Mutex
	passes map[string]time.Time
	spent  map[string]struct{}
}

// New creates a server, filling in defaults for empty settings
func New(cfg Config) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.SiteKey == "" {
		cfg.SiteKey = TestSiteKey
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = api.DefaultTokenHeader
	}
	if cfg.PassTTL <= 0 {
		cfg.PassTTL = DefaultPassTTL
	}
	if cfg.Engine == nil {
		cfg.Engine = translation.EchoEngine{}
	}
	if cfg.Verifier == nil {
		cfg.Verifier = AcceptAll{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Server{
		cfg:    cfg,
		log:    cfg.Logger,
		now:    time.Now,
		passes: make(map[string]time.Time),
		spent:  make(map[string]struct{}),
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withRequestLogging, withCORS(s.cfg.HeaderName))

	r.HandleFunc(api.SiteKeyPath, s.handleSiteKey).Methods("GET", "OPTIONS")
	r.HandleFunc(api.TranslatePath, s.handleTranslate).Methods("POST", "OPTIONS")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics.Handler()).Methods("GET")
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.log.Info("server.start", "addr", s.cfg.Listen, "engine", s.cfg.Engine.Name(), "site_key", s.cfg.SiteKey)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		s.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	s.log.Info("server.stopped")
	return nil
}

func (s *Server) handleSiteKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.SiteKeyResponse{
		SiteKey:    s.cfg.SiteKey,
		HeaderName: s.cfg.HeaderName,
	})
}

type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req api.TranslateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, problem{Title: "Invalid request body", Detail: err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" || req.TargetLang == "" {
		writeJSON(w, http.StatusBadRequest, problem{Title: "Text and targetLang are required"})
		return
	}
	if utf8.RuneCountInString(req.Text) > maxChars {
		http.Error(w, fmt.Sprintf("text exceeds %d characters", maxChars), http.StatusRequestEntityTooLarge)
		return
	}

	issued, err := s.authorize(r)
	if err != nil {
		s.cfg.Metrics.Translate(metrics.OutcomeRejected)
		writeJSON(w, http.StatusForbidden, problem{Title: err.Error()})
		return
	}
	if issued != "" {
		w.Header().Set(api.PassHeader, issued)
	}

	source := ""
	if req.SourceLang != nil {
		source = *req.SourceLang
	}
	out, err := s.cfg.Engine.Translate(r.Context(), req.Text, source, req.TargetLang)
	if err != nil {
		s.log.Warn("engine.fail", "engine", s.cfg.Engine.Name(), "err", err)
		s.cfg.Metrics.Translate(metrics.OutcomeFailed)
		http.Error(w, "translation engine error: "+err.Error(), http.StatusBadGateway)
		return
	}

	if source == "" {
		source = "auto"
	}
	s.cfg.Metrics.Translate(metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, api.TranslateResponse{
		SourceLang:     source,
		TargetLang:     req.TargetLang,
		TranslatedText: out,
	})
}

// refusal is a verification failure; its text becomes the problem title
type refusal string

func (r refusal) Error() string { return string(r) }

const (
	errVerificationRequired refusal = "Verification required"
	errPassExpired          refusal = "Pass expired"
	errTokenSpent           refusal = "Verification token already used"
	errVerificationFailed   refusal = "Verification failed"
)

// authorize checks the proof on r. A valid widget token is spent and
// exchanged for a new pass, which is returned.
func (s *Server) authorize(r *http.Request) (string, error) {
	if p := r.Header.Get(api.PassHeader); p != "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		expiry, ok := s.passes[p]
		if !ok {
			return "", errVerificationRequired
		}
		if !s.now().Before(expiry) {
			delete(s.passes, p)
			s.cfg.Metrics.Pass("expired")
			return "", errPassExpired
		}
		return "", nil
	}

	token := r.Header.Get(s.cfg.HeaderName)
	if token == "" {
		return "", errVerificationRequired
	}

	s.mu.Lock()
	_, used := s.spent[token]
	s.spent[token] = struct{}{}
	s.mu.Unlock()
	if used {
		return "", errTokenSpent
	}

	if err := s.cfg.Verifier.Verify(r.Context(), token, remoteIP(r)); err != nil {
		s.log.Info("token.rejected", "err", err)
		return "", errVerificationFailed
	}

	return s.issuePass(), nil
}

func (s *Server) issuePass() string {
	p := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	for k, exp := range s.passes {
		if !now.Before(exp) {
			delete(s.passes, k)
		}
	}
	s.passes[p] = now.Add(s.cfg.PassTTL)
	s.mu.Unlock()

	s.cfg.Metrics.Pass("issued")
	return p
}

// ActivePasses returns the number of unexpired passes
func (s *Server) ActivePasses() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, exp := range s.passes {
		if now.Before(exp) {
			n++
		}
	}
	return n
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
