package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modfin/bellman"
	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/bellman/services/anthropic"
	"github.com/modfin/bellman/services/openai"
	"github.com/modfin/bellman/services/vertexai"
	"github.com/modfin/bellman/services/voyageai"
)

// Credentials holds the API keys for the model providers. Only providers with
// a key configured get registered on the proxy.
type Credentials struct {
	BellmanURL     string `cli:"bellman-url"`
	BellmanKeyName string `cli:"bellman-key-name"`
	BellmanKey     string `cli:"bellman-key"`

	VertexAICredential string `cli:"vertexai-credential"`
	VertexAIProject    string `cli:"vertexai-project"`
	VertexAIRegion     string `cli:"vertexai-region"`

	OpenAIKey    string `cli:"openai-key"`
	AnthropicKey string `cli:"anthropic-key"`
	VoyageAIKey  string `cli:"voyageai-key"`
}

// New builds a Proxy with every provider the credentials allow.
func New(credentials Credentials, logger *slog.Logger) (*Proxy, error) {
	proxy := newProxy()

	if credentials.AnthropicKey != "" {
		client := anthropic.New(credentials.AnthropicKey)
		proxy.RegisterGen(client)
		logger.Debug("adding llm provider", "provider", client.Provider())
	}

	if credentials.OpenAIKey != "" {
		client := openai.New(credentials.OpenAIKey)
		proxy.RegisterGen(client)
		logger.Debug("adding llm provider", "provider", client.Provider())

		proxy.RegisterEmbeder(client)
		logger.Debug("adding embed provider", "provider", client.Provider())
	}

	if credentials.VertexAIRegion != "" && credentials.VertexAIProject != "" {
		client, err := vertexai.New(vertexai.GoogleConfig{
			Project:    credentials.VertexAIProject,
			Region:     credentials.VertexAIRegion,
			Credential: credentials.VertexAICredential,
		})
		if err != nil {
			return nil, err
		}

		proxy.RegisterGen(client)
		logger.Debug("adding llm provider", "provider", client.Provider())

		proxy.RegisterEmbeder(client)
		logger.Debug("adding embed provider", "provider", client.Provider())
	}

	if credentials.VoyageAIKey != "" {
		client := voyageai.New(credentials.VoyageAIKey)
		proxy.RegisterEmbeder(client)
		logger.Debug("adding embed provider", "provider", client.Provider())
	}

	if credentials.BellmanKey != "" && credentials.BellmanURL != "" {
		client := bellman.New(credentials.BellmanURL, bellman.Key{
			Name:  credentials.BellmanKeyName,
			Token: credentials.BellmanKey,
		})
		proxy.RegisterGen(client)
		logger.Debug("adding llm provider", "provider", client.Provider())

		proxy.RegisterEmbeder(client)
		logger.Debug("adding embed provider", "provider", client.Provider())
	}

	return proxy, nil
}

var ErrNoModelProvided = errors.New("no model was provided")
var ErrClientNotFound = errors.New("client not found")

// Proxy routes embedding and generation requests to the registered provider
// named by a model's "Provider/Name" identifier.
type Proxy struct {
	embeders map[string]embed.Embeder
	gens     map[string]gen.Gen
}

func newProxy() *Proxy {
	return &Proxy{
		embeders: map[string]embed.Embeder{},
		gens:     map[string]gen.Gen{},
	}
}

func (p *Proxy) RegisterEmbeder(embeder embed.Embeder) {
	p.embeders[embeder.Provider()] = embeder
}

func (p *Proxy) RegisterGen(llm gen.Gen) {
	p.gens[llm.Provider()] = llm
}

func (p *Proxy) Embed(req embed.Request) (*embed.Response, error) {
	client, ok := p.embeders[req.Model.Provider]
	if !ok || client == nil {
		return nil, fmt.Errorf("no embed client registered for provider '%s', %w", req.Model.Provider, ErrClientNotFound)
	}

	if req.Model.Provider == bellman.Provider {
		provider, name, found := strings.Cut(req.Model.Name, "/")
		if !found {
			return nil, fmt.Errorf("invalid bellman model name '%s', %w", req.Model.Name, ErrNoModelProvided)
		}
		req.Model.Provider = provider
		req.Model.Name = name
	}

	if req.Model.Name == "" {
		return nil, fmt.Errorf("embed model name is not set, %w", ErrNoModelProvided)
	}
	return client.Embed(req)
}

func (p *Proxy) Gen(model gen.Model) (*gen.Generator, error) {
	client, ok := p.gens[model.Provider]
	if !ok || client == nil {
		return nil, fmt.Errorf("no llm client registered for provider '%s', %w", model.Provider, ErrClientNotFound)
	}

	if model.Provider == bellman.Provider {
		provider, name, found := strings.Cut(model.Name, "/")
		if !found {
			return nil, fmt.Errorf("invalid bellman model name '%s', %w", model.Name, ErrNoModelProvided)
		}
		model.Provider = provider
		model.Name = name
	}

	if model.Name == "" {
		return nil, fmt.Errorf("llm model name is not set, %w", ErrNoModelProvided)
	}

	return client.Generator(gen.WithModel(model)), nil
}

// ParseEmbedModel splits a "Provider/Name" identifier into an embed model.
func ParseEmbedModel(identifier string) embed.Model {
	provider, name, _ := strings.Cut(identifier, "/")
	return embed.Model{Provider: provider, Name: name}
}

// ParseGenModel splits a "Provider/Name" identifier into a generation model.
func ParseGenModel(identifier string) gen.Model {
	provider, name, _ := strings.Cut(identifier, "/")
	return gen.Model{Provider: provider, Name: name}
}
