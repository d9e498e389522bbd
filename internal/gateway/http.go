// Package gateway exposes the todo RPC service as a JSON REST API.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"todo/backend/internal/rpc"
)

const maxBodyBytes = 16 << 10

type HTTPServer struct {
	todos      rpc.TodoServiceClient
	health     grpc_health_v1.HealthClient
	corsOrigin string
	logger     *slog.Logger
}

// NewHTTPServer builds the gateway. health may be nil, in which case /ready
// only reports the gateway itself.
func NewHTTPServer(todos rpc.TodoServiceClient, health grpc_health_v1.HealthClient, corsOrigin string, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPServer{todos: todos, health: health, corsOrigin: corsOrigin, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

type todoJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type todosJSON struct {
	Todos []todoJSON `json:"todos"`
}

type createBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type updateBody struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	IsCompleted bool   `json:"is_completed"`
}

func toJSON(in *rpc.Todo) todoJSON {
	item := in.Entity()
	return todoJSON{
		ID:          item.ID,
		Title:       item.Title,
		Body:        item.Body,
		IsCompleted: item.IsCompleted,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	parts := splitPath(r.URL.Path)
	isRead := r.Method == http.MethodGet || r.Method == http.MethodHead

	switch {
	case isRead && len(parts) == 1 && parts[0] == "health":
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	case isRead && len(parts) == 1 && parts[0] == "ready":
		s.handleReady(w, r)
		return
	}

	if len(parts) == 0 || parts[0] != "todos" {
		writeError(w, http.StatusNotFound, "not found", "not found")
		return
	}

	ctx := r.Context()
	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			res, err := s.todos.List(ctx, &rpc.ListRequest{})
			if err != nil {
				s.writeRPCError(w, r, err)
				return
			}
			out := todosJSON{Todos: make([]todoJSON, 0, len(res.Todos))}
			for _, item := range res.Todos {
				out.Todos = append(out.Todos, toJSON(item))
			}
			writeJSON(w, http.StatusOK, out)
		case http.MethodPost:
			var body createBody
			if err := decodeBody(w, r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid body", err.Error())
				return
			}
			res, err := s.todos.Create(ctx, &rpc.CreateRequest{Title: body.Title, Body: body.Body})
			if err != nil {
				s.writeRPCError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, toJSON(res))
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method not allowed")
		}
		return

	case 2:
		id := parts[1]
		switch r.Method {
		case http.MethodGet:
			res, err := s.todos.GetByID(ctx, &rpc.TodoID{ID: id})
			if err != nil {
				s.writeRPCError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toJSON(res))
		case http.MethodPut:
			var body updateBody
			if err := decodeBody(w, r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid body", err.Error())
				return
			}
			res, err := s.todos.Update(ctx, &rpc.UpdateRequest{
				ID:          id,
				Title:       body.Title,
				Body:        body.Body,
				IsCompleted: body.IsCompleted,
			})
			if err != nil {
				s.writeRPCError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toJSON(res))
		case http.MethodDelete:
			if _, err := s.todos.Delete(ctx, &rpc.TodoID{ID: id}); err != nil {
				s.writeRPCError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method not allowed")
		}
		return

	case 3:
		if parts[2] != "complete" {
			break
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method not allowed")
			return
		}
		res, err := s.todos.Complete(ctx, &rpc.TodoID{ID: parts[1]})
		if err != nil {
			s.writeRPCError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toJSON(res))
		return
	}

	writeError(w, http.StatusNotFound, "not found", "not found")
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := s.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil || res.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		check := map[string]any{"status": "error"}
		if err != nil {
			check["error"] = status.Convert(err).Message()
		} else {
			check["error"] = res.GetStatus().String()
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":     false,
			"status": "not_ready",
			"checks": map[string]any{"todo": check},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"status": "ready",
		"checks": map[string]any{"todo": map[string]any{"status": "ok"}},
	})
}

func (s *HTTPServer) writeRPCError(w http.ResponseWriter, r *http.Request, err error) {
	st := status.Convert(err)
	code := mapStatusCode(st.Code())
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "rpc call failed",
			"request_id", requestID(r.Context()),
			"code", st.Code().String(),
			"err", st.Message(),
		)
	}
	writeError(w, code, "rpc error", st.Message())
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", id)

		next.ServeHTTP(writer, r)

		s.logger.InfoContext(ctx, "handled request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes the error envelope: a short category in status and a
// human readable message.
func writeError(w http.ResponseWriter, code int, category, message string) {
	writeJSON(w, code, map[string]string{
		"status":  category,
		"message": message,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	if r.Body == nil {
		return errors.New("missing JSON body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("missing JSON body")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapStatusCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
