package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MatusOllah/slogcolor"
	"github.com/modfin/clix"
	"github.com/sandrev/curate/internal/ai"
	"github.com/sandrev/curate/internal/chat"
	"github.com/sandrev/curate/internal/fetch"
	"github.com/sandrev/curate/internal/store"
	"github.com/sandrev/curate/internal/store/vec"
	"github.com/sandrev/curate/internal/web"
	"github.com/urfave/cli/v3"
	_ "modernc.org/sqlite"
)

func main() {

	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, slogcolor.DefaultOptions)))

	defer func() {
		vec.Statistics()
	}()

	cmd := &cli.Command{
		Name:  "curate",
		Usage: "a chat driven bookmark manager, storing urls with llm generated summaries and categories in a local vector index",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "./curate.db",
				Sources: cli.EnvVars("CURATE_DB"),
			},

			&cli.StringFlag{
				Name:    "bellman-url",
				Sources: cli.EnvVars("CURATE_BELLMAN_URL"),
			},
			&cli.StringFlag{
				Name:    "bellman-key",
				Sources: cli.EnvVars("CURATE_BELLMAN_KEY"),
			},
			&cli.StringFlag{
				Name:    "bellman-key-name",
				Value:   "curate",
				Sources: cli.EnvVars("CURATE_BELLMAN_KEY_NAME"),
			},

			&cli.StringFlag{
				Name:    "vertexai-credential",
				Sources: cli.EnvVars("CURATE_VERTEXAI_CREDENTIAL"),
			},
			&cli.StringFlag{
				Name:    "vertexai-project",
				Sources: cli.EnvVars("CURATE_VERTEXAI_PROJECT"),
			},
			&cli.StringFlag{
				Name:    "vertexai-region",
				Sources: cli.EnvVars("CURATE_VERTEXAI_REGION"),
			},

			&cli.StringFlag{
				Name:    "openai-key",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "anthropic-key",
				Sources: cli.EnvVars("ANTHROPIC_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "voyageai-key",
				Sources: cli.EnvVars("CURATE_VOYAGEAI_KEY"),
			},

			&cli.StringFlag{
				Name:    "embed-model",
				Value:   "OpenAI/text-embedding-3-small",
				Sources: cli.EnvVars("CURATE_EMBED_MODEL"),
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Value:   "OpenAI/gpt-4o-mini",
				Sources: cli.EnvVars("MODEL", "CURATE_LLM_MODEL"),
			},

			&cli.DurationFlag{
				Name:    "fetch-timeout",
				Value:   fetch.DefaultTimeout,
				Sources: cli.EnvVars("CURATE_FETCH_TIMEOUT"),
			},

			&cli.BoolFlag{
				Name:    "verbose",
				Sources: cli.EnvVars("CURATE_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {

			if cmd.Bool("verbose") {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}

			return ctx, nil
		},

		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the chat ui in a local web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Value:   "localhost:7860",
						Sources: cli.EnvVars("CURATE_ADDR"),
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					rt, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					defer rt.store.Close()

					return web.ListenAndServe(cmd.String("addr"), rt.session(cmd), slog.Default())
				},
			},

			{
				Name:      "add",
				Usage:     "bookmark one or more urls",
				ArgsUsage: "<url>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "guidance for the category selection",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					rt, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					defer rt.store.Close()

					session := rt.session(cmd)
					for _, url := range cmd.Args().Slice() {
						logger := slog.Default().With("url", url)
						logger.Debug("adding bookmark")

						if err := session.Add(ctx, url, cmd.String("category")); err != nil {
							return fmt.Errorf("failed to add bookmark %s: %w", url, err)
						}

						bookmark, err := rt.store.GetByURL(ctx, url)
						if err != nil {
							return fmt.Errorf("failed to read back bookmark %s: %w", url, err)
						}
						logger.Info("added bookmark", "category", bookmark.Category)
					}
					return nil
				},
			},

			{
				Name:      "search",
				Usage:     "search bookmarks by similarity",
				ArgsUsage: "<query>...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Usage:   "the maximum number of bookmarks to return",
						Value:   5,
						Sources: cli.EnvVars("CURATE_LIMIT"),
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					rt, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					defer rt.store.Close()

					query := strings.Join(cmd.Args().Slice(), " ")
					vector, err := rt.assistant.EmbedQuery(ctx, query)
					if err != nil {
						return err
					}

					bookmarks, err := rt.store.Search(ctx, vector, int(cmd.Int("limit")))
					if err != nil {
						return fmt.Errorf("failed to search bookmarks: %w", err)
					}

					printBookmarks(bookmarks)
					return nil
				},
			},

			{
				Name:  "list",
				Usage: "list bookmarks, optionally under a category",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "category path to list, including subcategories",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					rt, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					defer rt.store.Close()

					var bookmarks []store.Bookmark
					if category := cmd.String("category"); category != "" {
						bookmarks, err = rt.store.ByCategoryPrefix(ctx, category)
					} else {
						bookmarks, err = rt.store.All(ctx)
					}
					if err != nil {
						return fmt.Errorf("failed to list bookmarks: %w", err)
					}

					printBookmarks(bookmarks)
					return nil
				},
			},

			{
				Name:  "categories",
				Usage: "list all category paths in use",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					rt, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					defer rt.store.Close()

					categories, err := rt.store.Categories(ctx)
					if err != nil {
						return fmt.Errorf("failed to list categories: %w", err)
					}
					for _, category := range categories {
						fmt.Println(category)
					}
					return nil
				},
			},

			{
				Name:      "delete",
				Usage:     "delete bookmarks by url",
				ArgsUsage: "<url>...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					rt, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					defer rt.store.Close()

					for _, url := range cmd.Args().Slice() {
						err := rt.store.Delete(ctx, url)
						if errors.Is(err, store.ErrNotFound) {
							slog.Default().Warn("no bookmark for url", "url", url)
							continue
						}
						if err != nil {
							return fmt.Errorf("failed to delete bookmark %s: %w", url, err)
						}
						slog.Default().Info("deleted bookmark", "url", url)
					}
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Default().Error("got error running curate", "err", err)
		os.Exit(1)
	}
}

type runtime struct {
	store     *store.Store
	assistant *ai.Assistant
}

// setup wires the shared pieces: provider proxy from credentials, the sqlite
// store, and the assistant with its configured models.
func setup(ctx context.Context, cmd *cli.Command) (*runtime, error) {
	credentials := clix.ParseCommand[ai.Credentials](cmd)
	proxy, err := ai.New(credentials, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	st, err := store.Open(ctx, cmd.String("db"))
	if err != nil {
		return nil, err
	}

	embedModel := ai.ParseEmbedModel(cmd.String("embed-model"))
	llmModel := ai.ParseGenModel(cmd.String("llm-model"))
	slog.Default().Debug("models", "embed", cmd.String("embed-model"), "llm", cmd.String("llm-model"))

	assistant := ai.NewAssistant(proxy, embedModel, llmModel, slog.Default())

	return &runtime{store: st, assistant: assistant}, nil
}

func (rt *runtime) session(cmd *cli.Command) *chat.Session {
	fetcher := fetch.New(cmd.Duration("fetch-timeout"))
	return chat.NewSession(rt.assistant, fetcher, rt.store, slog.Default())
}

func printBookmarks(bookmarks []store.Bookmark) {
	for _, b := range bookmarks {
		fmt.Printf("============ %s: %s ============\nSummary: %s\n", b.Category, b.URL, b.Summary)
	}
}
