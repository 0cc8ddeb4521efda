package web

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
)

//go:embed templates/index.html
var templatesFS embed.FS

// Chatter handles one user message per call. The web server keeps no
// conversational state of its own.
type Chatter interface {
	Handle(ctx context.Context, message string) (string, error)
	Reset()
}

// Server hosts the chat UI and its small JSON API.
type Server struct {
	chat      Chatter
	indexHTML []byte
	log       *slog.Logger
}

func NewServer(chat Chatter, logger *slog.Logger) (*Server, error) {
	indexHTML, err := templatesFS.ReadFile("templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to load chat page: %w", err)
	}
	return &Server{
		chat:      chat,
		indexHTML: indexHTML,
		log:       logger,
	}, nil
}

// ListenAndServe starts the chat UI at addr and blocks.
func ListenAndServe(addr string, chat Chatter, logger *slog.Logger) error {
	server, err := NewServer(chat, logger)
	if err != nil {
		return err
	}

	logger.Info("starting chat ui", "addr", "http://"+addr)
	return http.ListenAndServe(addr, server.Routes())
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/reset", s.handleReset)
	return mux
}

// requireMethod sends a 405 and returns false when the request method does
// not match.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(s.indexHTML)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Bad Request: empty message", http.StatusBadRequest)
		return
	}

	reply, err := s.chat.Handle(r.Context(), req.Message)
	if err != nil {
		// surfaced in the conversation rather than as a transport error
		s.log.Warn("chat turn failed", "err", err)
		reply = "I encountered an error while processing your request. Please try again."
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatResponse{Reply: reply}); err != nil {
		s.log.Warn("failed to write response", "err", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.chat.Reset()
	w.WriteHeader(http.StatusNoContent)
}
