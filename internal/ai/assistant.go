package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/bellman/prompt"
	"github.com/modfin/bellman/schema"
)

const interpretSystemPrompt = `You are the command interpreter for a bookmark manager.
Map the user's latest message to exactly one command.

A bookmark is represented as:
Title: 'My Bookmark'
Category: 'Category/Subcategory'
URL: 'https://example.com'
Summary: 'This is a summary of the bookmark.'

Category paths are hierarchical and use '/' as separator.
If the message needs no bookmark operation, use the reply action and answer
the user in the reply field.`

const replySystemPrompt = `You are a helpful assistant that manages the user's bookmarks.
A bookmark operation was just performed on the user's behalf. Phrase its result
for the user, briefly. List bookmarks as markdown links with their summaries.
If you think follow-up actions are needed, confirm with the user first.`

// Assistant is the LLM-backed half of the system: it turns chat messages into
// commands, page text into summaries and categories, and text into embeddings.
type Assistant struct {
	proxy      *Proxy
	embedModel embed.Model
	llmModel   gen.Model
	log        *slog.Logger
}

func NewAssistant(proxy *Proxy, embedModel embed.Model, llmModel gen.Model, logger *slog.Logger) *Assistant {
	return &Assistant{
		proxy:      proxy,
		embedModel: embedModel,
		llmModel:   llmModel,
		log:        logger,
	}
}

// EmbedModelName returns the "Provider/Name" identifier of the embedding
// model, recorded alongside stored vectors.
func (a *Assistant) EmbedModelName() string {
	return a.embedModel.Provider + "/" + a.embedModel.Name
}

// Embed embeds document text, for storing bookmarks.
func (a *Assistant) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := a.proxy.Embed(embed.Request{
		Ctx:   ctx,
		Model: a.embedModel,
		Text:  text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed: %w", err)
	}
	return resp.AsFloat64(), nil
}

// EmbedQuery embeds search text, for querying stored bookmarks.
func (a *Assistant) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	model := a.embedModel
	model.Type = embed.TypeQuery

	resp, err := a.proxy.Embed(embed.Request{
		Ctx:   ctx,
		Model: model,
		Text:  text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return resp.AsFloat64(), nil
}

type pageSummary struct {
	Summary string `json:"summary" json-description:"A concise 1-2 sentence summary of the page, suitable as a bookmark description"`
}

// SummarizePage produces a short bookmark description from the page contents.
func (a *Assistant) SummarizePage(ctx context.Context, contents string) (string, error) {
	llm, err := a.proxy.Gen(a.llmModel)
	if err != nil {
		return "", fmt.Errorf("failed to create llm: %w", err)
	}

	res, err := llm.
		System("Create a concise summary (1-2 sentences) of the website content "+
			"that would be perfect for a bookmark description. The summary should clearly "+
			"convey what the page contains and why someone might find it valuable, "+
			"without being too lengthy.").
		Output(schema.From(pageSummary{})).
		Prompt(prompt.Prompt{
			Role: prompt.UserRole,
			Text: fmt.Sprintf("<website-content>\n%s\n</website-content>", contents),
		})
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	var out pageSummary
	if err := res.Unmarshal(&out); err != nil {
		return "", fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	a.log.Debug("summarized page",
		"input-tokens", res.Metadata.InputTokens,
		"output-tokens", res.Metadata.OutputTokens)

	return strings.TrimSpace(out.Summary), nil
}

type categoryPath struct {
	Category []string `json:"category" json-description:"The hierarchical category path for the bookmark, one string per level"`
}

// Categorize assigns a "/"-separated category path to a bookmark, preferring
// existing categories and honoring the user's guidance when given.
func (a *Assistant) Categorize(ctx context.Context, title, url, summary string, existing []string, guidance string) (string, error) {
	llm, err := a.proxy.Gen(a.llmModel)
	if err != nil {
		return "", fmt.Errorf("failed to create llm: %w", err)
	}

	var sb strings.Builder
	if len(existing) > 0 {
		sb.WriteString("Existing categories:\n")
		sb.WriteString(strings.Join(existing, "\n"))
		sb.WriteString("\n\n")
	}
	if guidance != "" {
		fmt.Fprintf(&sb, "User guidance: %s\n\n", guidance)
	}
	fmt.Fprintf(&sb, "Generate an appropriate category for this bookmark:\nTitle: %s\nURL: %s\nSummary: %s",
		title, url, summary)

	res, err := llm.
		System("You categorize bookmarks into a hierarchical category structure. "+
			"If a bookmark fits an existing category, use that. Otherwise, create a "+
			"logical new category. Incorporate user guidance into the category selection "+
			"when it is given.").
		Output(schema.From(categoryPath{})).
		Prompt(prompt.Prompt{
			Role: prompt.UserRole,
			Text: sb.String(),
		})
	if err != nil {
		return "", fmt.Errorf("failed to generate category: %w", err)
	}

	var out categoryPath
	if err := res.Unmarshal(&out); err != nil {
		return "", fmt.Errorf("failed to unmarshal category: %w", err)
	}

	a.log.Debug("categorized bookmark",
		"url", url,
		"category", strings.Join(out.Category, "/"),
		"input-tokens", res.Metadata.InputTokens,
		"output-tokens", res.Metadata.OutputTokens)

	return strings.Join(out.Category, "/"), nil
}

// Interpret classifies a chat message into a Command, given the conversation
// so far. Extraction is entirely model-side; there is no local grammar.
func (a *Assistant) Interpret(ctx context.Context, history []prompt.Prompt, message string) (Command, error) {
	llm, err := a.proxy.Gen(a.llmModel)
	if err != nil {
		return Command{}, fmt.Errorf("failed to create llm: %w", err)
	}

	res, err := llm.
		System(interpretSystemPrompt).
		Output(schema.From(Command{})).
		Prompt(append(append([]prompt.Prompt{}, history...), prompt.Prompt{
			Role: prompt.UserRole,
			Text: message,
		})...)
	if err != nil {
		return Command{}, fmt.Errorf("failed to interpret message: %w", err)
	}

	var cmd Command
	if err := res.Unmarshal(&cmd); err != nil {
		return Command{}, fmt.Errorf("failed to unmarshal command: %w", err)
	}

	a.log.Debug("interpreted message",
		"action", cmd.Action,
		"input-tokens", res.Metadata.InputTokens,
		"output-tokens", res.Metadata.OutputTokens)

	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

type chatReply struct {
	Reply string `json:"reply" json-description:"The assistant's message to the user"`
}

// Reply phrases the outcome of an executed command for the user.
func (a *Assistant) Reply(ctx context.Context, history []prompt.Prompt, message string, result string) (string, error) {
	llm, err := a.proxy.Gen(a.llmModel)
	if err != nil {
		return "", fmt.Errorf("failed to create llm: %w", err)
	}

	prompts := append(append([]prompt.Prompt{}, history...),
		prompt.Prompt{
			Role: prompt.UserRole,
			Text: message,
		},
		prompt.Prompt{
			Role: prompt.UserRole,
			Text: fmt.Sprintf("<tool-result> %s </tool-result>", result),
		},
	)

	res, err := llm.
		System(replySystemPrompt).
		Output(schema.From(chatReply{})).
		Prompt(prompts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	var out chatReply
	if err := res.Unmarshal(&out); err != nil {
		return "", fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	a.log.Debug("generated reply",
		"input-tokens", res.Metadata.InputTokens,
		"output-tokens", res.Metadata.OutputTokens)

	return out.Reply, nil
}
