package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modfin/bellman/prompt"
	"github.com/sandrev/curate/internal/ai"
	"github.com/sandrev/curate/internal/fetch"
	"github.com/sandrev/curate/internal/store"

	_ "modernc.org/sqlite"
)

// stubAssistant returns canned interpretations and embeddings and records
// what the session hands it, so dispatch can be asserted without a model.
type stubAssistant struct {
	command      ai.Command
	interpretErr error

	summary  string
	category string

	embedVector  []float64
	queryVectors map[string][]float64

	interpretedMessage string
	embeddedText       string
	lastResult         string
	replyCalled        bool
}

func (s *stubAssistant) Interpret(_ context.Context, _ []prompt.Prompt, message string) (ai.Command, error) {
	s.interpretedMessage = message
	return s.command, s.interpretErr
}

func (s *stubAssistant) SummarizePage(_ context.Context, _ string) (string, error) {
	return s.summary, nil
}

func (s *stubAssistant) Categorize(_ context.Context, _, _, _ string, _ []string, _ string) (string, error) {
	return s.category, nil
}

func (s *stubAssistant) Reply(_ context.Context, _ []prompt.Prompt, _ string, result string) (string, error) {
	s.replyCalled = true
	s.lastResult = result
	return "rendered: " + result, nil
}

func (s *stubAssistant) Embed(_ context.Context, text string) ([]float64, error) {
	s.embeddedText = text
	return s.embedVector, nil
}

func (s *stubAssistant) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	vector, ok := s.queryVectors[text]
	if !ok {
		return nil, fmt.Errorf("no stub vector for query %q", text)
	}
	return vector, nil
}

func (s *stubAssistant) EmbedModelName() string {
	return "Stub/embedding"
}

type stubFetcher struct {
	pages map[string]fetch.Page
	errs  map[string]error
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (fetch.Page, error) {
	if err := f.errs[url]; err != nil {
		return fetch.Page{}, err
	}
	page, ok := f.pages[url]
	if !ok {
		return fetch.Page{}, fmt.Errorf("no stub page for %s", url)
	}
	return page, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "curate.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func newTestSession(t *testing.T, assistant *stubAssistant, fetcher *stubFetcher) (*Session, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	if fetcher == nil {
		fetcher = &stubFetcher{}
	}
	return NewSession(assistant, fetcher, st, slog.Default()), st
}

func seed(t *testing.T, st *store.Store, url, category string, vector []float64) {
	t.Helper()
	_, err := st.Add(context.Background(), store.Bookmark{
		URL:       url,
		Title:     "Title of " + url,
		Summary:   "Summary of " + url,
		Category:  category,
		Embedding: vector,
	})
	if err != nil {
		t.Fatalf("failed to seed bookmark: %v", err)
	}
}

func TestHandleSearch(t *testing.T) {
	assistant := &stubAssistant{
		command:      ai.Command{Action: ai.ActionSearch, Query: "machine learning", MaxResults: 2},
		queryVectors: map[string][]float64{"machine learning": {1, 0}},
	}
	session, st := newTestSession(t, assistant, nil)
	ctx := context.Background()

	seed(t, st, "https://ml.example", "Tech/ML", []float64{0.9, 0.1})
	seed(t, st, "https://cooking.example", "Food", []float64{0, 1})

	reply, err := session.Handle(ctx, "Find bookmarks about machine learning")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if assistant.interpretedMessage != "Find bookmarks about machine learning" {
		t.Errorf("interpreter got %q", assistant.interpretedMessage)
	}
	if !strings.Contains(assistant.lastResult, `"status":"found"`) {
		t.Errorf("expected found result, got %s", assistant.lastResult)
	}
	if !strings.Contains(assistant.lastResult, "https://ml.example") {
		t.Errorf("expected ml bookmark in result, got %s", assistant.lastResult)
	}
	if !strings.HasPrefix(reply, "rendered:") {
		t.Errorf("expected rendered reply, got %q", reply)
	}

	// search must not touch the store
	all, err := st.All(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 bookmarks after search, got %d", len(all))
	}
}

func TestHandleAdd(t *testing.T) {
	t.Run("runs the full pipeline", func(t *testing.T) {
		assistant := &stubAssistant{
			command:     ai.Command{Action: ai.ActionAdd, URLs: []string{"https://go.dev"}},
			summary:     "The Go programming language homepage.",
			category:    "Technology/Programming/Go",
			embedVector: []float64{0.5, 0.5},
		}
		fetcher := &stubFetcher{pages: map[string]fetch.Page{
			"https://go.dev": {URL: "https://go.dev", Title: "The Go Programming Language", Text: "Go is fun"},
		}}
		session, st := newTestSession(t, assistant, fetcher)
		ctx := context.Background()

		_, err := session.Handle(ctx, "bookmark https://go.dev for me")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(assistant.lastResult, `"status":"added"`) {
			t.Errorf("expected added result, got %s", assistant.lastResult)
		}

		b, err := st.GetByURL(ctx, "https://go.dev")
		if err != nil {
			t.Fatalf("expected bookmark stored, got %v", err)
		}
		if b.Summary != "The Go programming language homepage." {
			t.Errorf("unexpected summary %q", b.Summary)
		}
		if b.Category != "Technology/Programming/Go" {
			t.Errorf("unexpected category %q", b.Category)
		}
		if b.EmbeddingModel != "Stub/embedding" {
			t.Errorf("unexpected embedding model %q", b.EmbeddingModel)
		}
		if !strings.Contains(assistant.embeddedText, "Title: The Go Programming Language") {
			t.Errorf("expected the content string to be embedded, got %q", assistant.embeddedText)
		}
	})

	t.Run("fetch failure stores nothing", func(t *testing.T) {
		assistant := &stubAssistant{
			command: ai.Command{Action: ai.ActionAdd, URLs: []string{"https://down.example"}},
		}
		fetcher := &stubFetcher{errs: map[string]error{
			"https://down.example": errors.New("connection refused"),
		}}
		session, st := newTestSession(t, assistant, fetcher)
		ctx := context.Background()

		_, err := session.Handle(ctx, "bookmark https://down.example")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(assistant.lastResult, `"status":"error"`) {
			t.Errorf("expected error result, got %s", assistant.lastResult)
		}

		all, err := st.All(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(all) != 0 {
			t.Errorf("expected nothing stored, got %d bookmarks", len(all))
		}
	})
}

func TestHandleDelete(t *testing.T) {
	t.Run("unknown url reports not_found", func(t *testing.T) {
		assistant := &stubAssistant{
			command: ai.Command{Action: ai.ActionDelete, URL: "https://nope.example"},
		}
		session, _ := newTestSession(t, assistant, nil)

		_, err := session.Handle(context.Background(), "remove the bookmark for https://nope.example")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(assistant.lastResult, `"status":"not_found"`) {
			t.Errorf("expected not_found result, got %s", assistant.lastResult)
		}
	})

	t.Run("removes the bookmark", func(t *testing.T) {
		assistant := &stubAssistant{
			command: ai.Command{Action: ai.ActionDelete, URL: "https://gone.example"},
		}
		session, st := newTestSession(t, assistant, nil)
		ctx := context.Background()

		seed(t, st, "https://gone.example", "", []float64{1, 0})

		_, err := session.Handle(ctx, "remove the bookmark for https://gone.example")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(assistant.lastResult, `"status":"deleted"`) {
			t.Errorf("expected deleted result, got %s", assistant.lastResult)
		}
		if _, err := st.GetByURL(ctx, "https://gone.example"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected bookmark gone, got %v", err)
		}
	})
}

func TestHandleMoveCategory(t *testing.T) {
	assistant := &stubAssistant{
		command: ai.Command{Action: ai.ActionMoveCategory, Category: "Tech", NewCategory: "Technology"},
	}
	session, st := newTestSession(t, assistant, nil)
	ctx := context.Background()

	seed(t, st, "https://go.dev", "Tech/Go", []float64{1, 0})
	seed(t, st, "https://bbc.com", "News", []float64{0, 1})

	_, err := session.Handle(ctx, "rename the Tech category to Technology")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	moved, err := st.GetByURL(ctx, "https://go.dev")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if moved.Category != "Technology/Go" {
		t.Errorf("expected category 'Technology/Go', got %q", moved.Category)
	}

	untouched, err := st.GetByURL(ctx, "https://bbc.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if untouched.Category != "News" {
		t.Errorf("expected category 'News', got %q", untouched.Category)
	}
}

func TestHandleReplyAction(t *testing.T) {
	assistant := &stubAssistant{
		command: ai.Command{Action: ai.ActionReply, Reply: "Hello! I can manage your bookmarks."},
	}
	session, _ := newTestSession(t, assistant, nil)

	reply, err := session.Handle(context.Background(), "hi there")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if reply != "Hello! I can manage your bookmarks." {
		t.Errorf("unexpected reply %q", reply)
	}
	if assistant.replyCalled {
		t.Error("reply action should not trigger a second model call")
	}
}

func TestHandleInterpretError(t *testing.T) {
	assistant := &stubAssistant{interpretErr: errors.New("rate limited")}
	session, _ := newTestSession(t, assistant, nil)

	_, err := session.Handle(context.Background(), "anything")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected interpretation error, got %v", err)
	}
}

func TestHistoryLimit(t *testing.T) {
	assistant := &stubAssistant{
		command: ai.Command{Action: ai.ActionReply, Reply: "ok"},
	}
	session, _ := newTestSession(t, assistant, nil)

	for i := 0; i < HistoryLimit; i++ {
		if _, err := session.Handle(context.Background(), fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	if len(session.history) > HistoryLimit {
		t.Errorf("expected history capped at %d, got %d", HistoryLimit, len(session.history))
	}
	// the newest turn survives trimming
	last := session.history[len(session.history)-1]
	if last.Role != prompt.AssistantRole || last.Text != "ok" {
		t.Errorf("unexpected last history entry %+v", last)
	}

	session.Reset()
	if len(session.history) != 0 {
		t.Errorf("expected empty history after reset, got %d", len(session.history))
	}
}
