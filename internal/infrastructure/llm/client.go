// Package llm implements the enricher (C5): one structured classification
// call per new RawArticle, with a deterministic stub fallback. Grounded
// directly on the teacher's infrastructure/llm.ChatGPTClient — same
// bearer-token POST to an OpenAI-compatible chat-completions endpoint,
// extended to require a JSON object response and validate it against the
// closed severity/crime-category domains.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// maxBodyChars is the safe prompt budget spec.md §4.5 names (~8k chars).
const maxBodyChars = 8000

// maxConcurrent caps in-flight LLM calls per spec.md §5 ("enforce a modest
// internal concurrency cap (≤ 2)").
const maxConcurrent = 2

// Config carries the enrichment settings, including the API key.
type Config struct {
	Endpoint      string
	Model         string
	APIKey        string
	PromptVersion string
}

// Client implements ports.Enricher. When APIKey is empty, Enrich always
// returns the stub path without making a network call, satisfying "missing
// credentials disables enrichment".
type Client struct {
	cfg        Config
	httpClient *http.Client
	sem        chan struct{}
}

var _ ports.Enricher = (*Client)(nil)

// New builds an enricher. cfg.APIKey == "" means enrichment is disabled.
func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sem:        make(chan struct{}, maxConcurrent),
	}
}

// Enrich implements the C5 contract: exactly one model call per article
// when a provider is configured, falling through to the deterministic
// stub on missing credentials or any unrecoverable failure.
func (c *Client) Enrich(ctx context.Context, article domain.RawArticle, source domain.Source) (domain.EnrichedIncident, error) {
	if c.cfg.APIKey == "" {
		return stub(article), nil
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return stub(article), nil
	}

	incident, err := c.classify(ctx, article, source)
	if err != nil {
		return stub(article), fmt.Errorf("%w: %v", domain.ErrEnrichment, err)
	}
	return incident, nil
}

func (c *Client) classify(ctx context.Context, article domain.RawArticle, source domain.Source) (domain.EnrichedIncident, error) {
	prompt := buildPrompt(article, source)

	body, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt()},
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return domain.EnrichedIncident{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.EnrichedIncident{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.EnrichedIncident{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.EnrichedIncident{}, fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var wire struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return domain.EnrichedIncident{}, fmt.Errorf("decode envelope: %w", err)
	}
	if len(wire.Choices) == 0 {
		return domain.EnrichedIncident{}, fmt.Errorf("empty choices")
	}

	incident, err := parseAndValidate(wire.Choices[0].Message.Content, article.ID)
	if err != nil {
		return domain.EnrichedIncident{}, err
	}

	incident.LLMModel = c.cfg.Model
	incident.PromptVersion = c.cfg.PromptVersion
	incident.ProcessedAt = time.Now().UTC()
	return incident, nil
}

func systemPrompt() string {
	return "You are a police newsroom release classifier. Respond with a single JSON object only, matching the requested schema exactly."
}

func buildPrompt(article domain.RawArticle, source domain.Source) string {
	body := article.BodyRaw
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}

	published := "unknown"
	if article.PublishedAt != nil {
		published = article.PublishedAt.Format("2006-01-02")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Agency: %s\n", source.AgencyName)
	fmt.Fprintf(&b, "Region: %s\n", source.RegionLabel)
	fmt.Fprintf(&b, "Published: %s\n", published)
	fmt.Fprintf(&b, "Title: %s\n", article.TitleRaw)
	fmt.Fprintf(&b, "Body:\n%s\n\n", body)
	b.WriteString(`Return JSON with fields: severity (LOW|MEDIUM|HIGH|CRITICAL), ` +
		`summary_tactical (<=200 chars), tags (array of strings), ` +
		`entities (array of {type: Person|Group|Location, name}), ` +
		`location_label, lat, lng, graph_cluster_key, ` +
		`crime_category (Violent Crime|Property Crime|Traffic Incident|Drug Offense|` +
		`Sexual Offense|Cybercrime|Public Safety|Other|Unknown), ` +
		`temporal_context, weapon_involved, tactical_advice. ` +
		`Optional fields may be null.`)
	return b.String()
}

// stub returns the deterministic fallback EnrichedIncident spec.md §4.5
// fixes exactly: MEDIUM severity, first ~200 chars of body as the summary,
// empty tags/entities, Unknown category, llm_model "none", prompt_version
// "stub_v1".
func stub(article domain.RawArticle) domain.EnrichedIncident {
	summary := article.BodyRaw
	if len(summary) > domain.StubSummaryLen {
		summary = summary[:domain.StubSummaryLen]
	}
	return domain.EnrichedIncident{
		ID:              article.ID,
		Severity:        domain.SeverityMedium,
		SummaryTactical: summary,
		Tags:            []string{},
		Entities:        []domain.Entity{},
		CrimeCategory:   domain.CrimeUnknown,
		LLMModel:        domain.StubLLMModel,
		PromptVersion:   domain.StubPromptVersion,
		ProcessedAt:     time.Now().UTC(),
	}
}
