// Package api serves the repository summarization endpoint over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repodigest/internal/types"
)

const (
	defaultListenAddress    = "127.0.0.1:0"
	defaultShutdownDuration = 5 * time.Second
	maxRequestBodyBytes     = 1 << 20
	headerContentType       = "Content-Type"
	mimeTypeJSON            = "application/json"
	summarizePath           = "/summarize"
	healthPath              = "/healthz"
	rootPath                = "/"
	statusError             = "error"
	statusOK                = "ok"

	logFieldAddress  = "address"
	logFieldMethod   = "method"
	logFieldPath     = "path"
	logFieldStatus   = "status"
	logFieldDuration = "duration"
)

// SummarizeRequest is the body accepted by POST /summarize.
type SummarizeRequest struct {
	GitHubURL *string `json:"github_url"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// RepositorySummarizer produces a summary for a repository URL.
type RepositorySummarizer interface {
	Summarize(ctx context.Context, rawURL string) (types.Summary, error)
}

// RepositorySummarizerFunc adapts a function into a RepositorySummarizer.
type RepositorySummarizerFunc func(context.Context, string) (types.Summary, error)

// Summarize invokes the underlying function.
func (summarizerFunc RepositorySummarizerFunc) Summarize(ctx context.Context, rawURL string) (types.Summary, error) {
	return summarizerFunc(ctx, rawURL)
}

// Config defines runtime options for the HTTP server.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
	Summarizer      RepositorySummarizer
	Version         string
	Logger          *zap.Logger
}

// Server exposes the summarization pipeline over HTTP.
type Server struct {
	config Config
}

// NewServer creates a new Server with defaults applied.
func NewServer(config Config) Server {
	normalized := config
	if normalized.Address == "" {
		normalized.Address = defaultListenAddress
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = defaultShutdownDuration
	}
	if normalized.Logger == nil {
		normalized.Logger = zap.NewNop()
	}
	return Server{config: normalized}
}

// Handler returns the routed HTTP handler, wrapped with request logging.
func (server Server) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc(summarizePath, server.handleSummarize)
	router.HandleFunc(healthPath, server.handleHealth)
	router.HandleFunc(rootPath, server.handleNotFound)
	return server.logRequests(router)
}

// Run starts the HTTP server and blocks until the provided context is canceled.
// The notify callback receives the bound address once the listener is active.
func (server Server) Run(ctx context.Context, notify func(string)) error {
	listener, listenErr := net.Listen("tcp", server.config.Address)
	if listenErr != nil {
		return fmt.Errorf("listen on %s: %w", server.config.Address, listenErr)
	}
	actualAddress := listener.Addr().String()

	httpServer := &http.Server{Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", serveErr)
		}
		return nil
	})

	server.config.Logger.Info("listening", zap.String(logFieldAddress, actualAddress))
	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf("shutdown HTTP: %w", shutdownErr)
		}
		server.config.Logger.Info("stopped", zap.String(logFieldAddress, actualAddress))
		return nil
	})

	return group.Wait()
}

func (server Server) handleSummarize(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		server.writeError(writer, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}
	gitHubURL, decodeErr := decodeSummarizeRequest(writer, request)
	if decodeErr != nil {
		server.writeError(writer, http.StatusBadRequest, messageInvalidBody)
		return
	}
	if server.config.Summarizer == nil {
		server.writeError(writer, http.StatusInternalServerError, messageAnalysisFailed+"no summarizer configured")
		return
	}
	summary, summarizeErr := server.config.Summarizer.Summarize(request.Context(), gitHubURL)
	if summarizeErr != nil {
		statusCode, message := ClassifyError(summarizeErr)
		server.writeError(writer, statusCode, message)
		return
	}
	if summary.Technologies == nil {
		summary.Technologies = []string{}
	}
	server.writeJSON(writer, http.StatusOK, summary)
}

func (server Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		server.writeError(writer, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}
	server.writeJSON(writer, http.StatusOK, HealthResponse{Status: statusOK, Version: server.config.Version})
}

func (server Server) handleNotFound(writer http.ResponseWriter, request *http.Request) {
	server.writeError(writer, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

func decodeSummarizeRequest(writer http.ResponseWriter, request *http.Request) (string, error) {
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxRequestBodyBytes))
	var payload SummarizeRequest
	if decodeErr := decoder.Decode(&payload); decodeErr != nil {
		return "", decodeErr
	}
	if payload.GitHubURL == nil {
		return "", errMissingGitHubURL
	}
	return strings.TrimSpace(*payload.GitHubURL), nil
}

func (server Server) writeError(writer http.ResponseWriter, statusCode int, message string) {
	server.writeJSON(writer, statusCode, ErrorResponse{Status: statusError, Message: message})
}

func (server Server) writeJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	var buffer bytes.Buffer
	if encodeErr := json.NewEncoder(&buffer).Encode(payload); encodeErr != nil {
		fallback := ErrorResponse{Status: statusError, Message: fmt.Sprintf("encode response: %v", encodeErr)}
		writer.Header().Set(headerContentType, mimeTypeJSON)
		writer.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(writer).Encode(fallback)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeJSON)
	writer.WriteHeader(statusCode)
	_, _ = writer.Write(buffer.Bytes())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (recorder *statusRecorder) WriteHeader(statusCode int) {
	recorder.statusCode = statusCode
	recorder.ResponseWriter.WriteHeader(statusCode)
}

func (server Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		startedAt := time.Now()
		recorder := &statusRecorder{ResponseWriter: writer, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, request)
		server.config.Logger.Info("request",
			zap.String(logFieldMethod, request.Method),
			zap.String(logFieldPath, request.URL.Path),
			zap.Int(logFieldStatus, recorder.statusCode),
			zap.Duration(logFieldDuration, time.Since(startedAt)),
		)
	})
}
