package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/modfin/bellman/prompt"
	"github.com/modfin/henry/slicez"
	"github.com/sandrev/curate/internal/ai"
	"github.com/sandrev/curate/internal/fetch"
	"github.com/sandrev/curate/internal/store"
)

// HistoryLimit caps how many conversation turns a session keeps.
const HistoryLimit = 25

// Assistant is the slice of the AI assistant a chat session needs.
type Assistant interface {
	Interpret(ctx context.Context, history []prompt.Prompt, message string) (ai.Command, error)
	SummarizePage(ctx context.Context, contents string) (string, error)
	Categorize(ctx context.Context, title, url, summary string, existing []string, guidance string) (string, error)
	Reply(ctx context.Context, history []prompt.Prompt, message string, result string) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EmbedModelName() string
}

// Fetcher retrieves a website's readable content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Page, error)
}

// Session handles one conversation: each turn is interpreted into a command,
// dispatched against the store, and the outcome phrased back to the user.
// State is the capped message history; everything durable lives in the store.
type Session struct {
	assistant Assistant
	fetcher   Fetcher
	store     *store.Store

	history      []prompt.Prompt
	historyLimit int

	log *slog.Logger
}

func NewSession(assistant Assistant, fetcher Fetcher, s *store.Store, logger *slog.Logger) *Session {
	return &Session{
		assistant:    assistant,
		fetcher:      fetcher,
		store:        s,
		historyLimit: HistoryLimit,
		log:          logger,
	}
}

// Reset drops the conversation history.
func (s *Session) Reset() {
	s.history = nil
}

// Handle processes one user message and returns the assistant's response.
// Command execution failures become a result the assistant phrases for the
// user; only interpretation or reply generation failures are returned as
// errors.
func (s *Session) Handle(ctx context.Context, message string) (string, error) {
	cmd, err := s.assistant.Interpret(ctx, s.history, message)
	if err != nil {
		return "", fmt.Errorf("failed to interpret message: %w", err)
	}

	if cmd.Action == ai.ActionReply {
		s.remember(message, cmd.Reply)
		return cmd.Reply, nil
	}

	result := s.execute(ctx, cmd)
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	s.log.Debug("executed command", "action", cmd.Action, "status", result.Status)

	reply, err := s.assistant.Reply(ctx, s.history, message, string(payload))
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	s.remember(message, reply)
	return reply, nil
}

func (s *Session) remember(message, reply string) {
	s.history = append(s.history,
		prompt.Prompt{Role: prompt.UserRole, Text: message},
		prompt.Prompt{Role: prompt.AssistantRole, Text: reply},
	)
	if over := len(s.history) - s.historyLimit; over > 0 {
		s.history = s.history[over:]
	}
}

// Result is the outcome of an executed command, handed to the assistant as
// JSON so it can phrase a response.
type Result struct {
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	Bookmarks  []BookmarkResult `json:"bookmarks,omitempty"`
	Categories map[string]any   `json:"categories,omitempty"`
}

type BookmarkResult struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

func errorResult(err error) Result {
	return Result{Status: "error", Message: fmt.Sprintf("Error occurred: %v", err)}
}

func bookmarkResults(bookmarks []store.Bookmark) []BookmarkResult {
	return slicez.Map(bookmarks, func(b store.Bookmark) BookmarkResult {
		return BookmarkResult{
			URL:      b.URL,
			Title:    b.Title,
			Summary:  b.Summary,
			Category: b.Category,
		}
	})
}

// execute dispatches a validated command. Failures are folded into the result
// rather than returned, so every command produces something to tell the user.
func (s *Session) execute(ctx context.Context, cmd ai.Command) Result {
	switch cmd.Action {

	case ai.ActionAdd:
		for _, url := range cmd.URLs {
			if err := s.Add(ctx, url, cmd.Guidance); err != nil {
				return errorResult(err)
			}
		}
		return Result{Status: "added", Message: "Bookmarks added successfully"}

	case ai.ActionSearch:
		vector, err := s.assistant.EmbedQuery(ctx, cmd.Query)
		if err != nil {
			return errorResult(err)
		}
		bookmarks, err := s.store.Search(ctx, vector, cmd.MaxResults)
		if err != nil {
			return errorResult(err)
		}
		return Result{Status: "found", Message: "Bookmarks found", Bookmarks: bookmarkResults(bookmarks)}

	case ai.ActionList:
		bookmarks, err := s.store.ByCategoryPrefix(ctx, cmd.Category)
		if err != nil {
			return errorResult(err)
		}
		return Result{Status: "found", Message: "Bookmarks found", Bookmarks: bookmarkResults(bookmarks)}

	case ai.ActionMove:
		err := s.store.SetCategory(ctx, cmd.URL, cmd.Category)
		if errors.Is(err, store.ErrNotFound) {
			return Result{Status: "not_found", Message: "Bookmark not found"}
		}
		if err != nil {
			return errorResult(err)
		}
		return Result{Status: "moved", Message: "Bookmark moved successfully"}

	case ai.ActionMoveCategory:
		bookmarks, err := s.store.ByCategoryPrefix(ctx, cmd.Category)
		if err != nil {
			return errorResult(err)
		}
		if len(bookmarks) == 0 {
			return Result{Status: "not_found", Message: "No bookmarks found in the specified category"}
		}
		for _, b := range bookmarks {
			category := strings.Replace(b.Category, cmd.Category, cmd.NewCategory, 1)
			if err := s.store.SetCategory(ctx, b.URL, category); err != nil {
				return errorResult(err)
			}
		}
		return Result{Status: "moved", Message: "Bookmarks moved successfully"}

	case ai.ActionDelete:
		err := s.store.Delete(ctx, cmd.URL)
		if errors.Is(err, store.ErrNotFound) {
			return Result{Status: "not_found", Message: "Bookmark not found"}
		}
		if err != nil {
			return errorResult(err)
		}
		return Result{Status: "deleted", Message: "Bookmark deleted successfully"}

	case ai.ActionDeleteCategory:
		bookmarks, err := s.store.ByCategoryPrefix(ctx, cmd.Category)
		if err != nil {
			return errorResult(err)
		}
		if len(bookmarks) == 0 {
			return Result{Status: "not_found", Message: "No bookmarks found in the specified category"}
		}
		for _, b := range bookmarks {
			if err := s.store.Delete(ctx, b.URL); err != nil {
				return errorResult(err)
			}
		}
		return Result{Status: "deleted", Message: "Bookmarks deleted successfully"}

	case ai.ActionCategories:
		tree, err := s.store.CategoryTree(ctx)
		if err != nil {
			return errorResult(err)
		}
		return Result{Status: "found", Message: "Categories found", Categories: tree}
	}

	return errorResult(fmt.Errorf("unhandled action %q", cmd.Action))
}

// Add runs the full add pipeline for one url: fetch the page, summarize it,
// pick a category, embed the content and persist. The cli uses it directly,
// bypassing interpretation.
func (s *Session) Add(ctx context.Context, url string, guidance string) error {
	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}

	summary, err := s.assistant.SummarizePage(ctx, page.Contents())
	if err != nil {
		return err
	}

	existing, err := s.store.Categories(ctx)
	if err != nil {
		return err
	}

	category, err := s.assistant.Categorize(ctx, page.Title, url, summary, existing, guidance)
	if err != nil {
		return err
	}

	bookmark := store.Bookmark{
		URL:            url,
		Title:          page.Title,
		Summary:        summary,
		Category:       category,
		EmbeddingModel: s.assistant.EmbedModelName(),
	}

	vector, err := s.assistant.Embed(ctx, bookmark.ContentString())
	if err != nil {
		return err
	}
	bookmark.Embedding = vector

	_, err = s.store.Add(ctx, bookmark)
	return err
}
