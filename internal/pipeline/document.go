package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/docuforge/api/internal/client"
	"github.com/docuforge/api/internal/model"
)

// Stage names of the document pipeline, in execution order.
const (
	StageRetrieve = "retrieving_sources"
	StageWrite    = "writing_sections"
	StageVerify   = "verifying"
	StageExport   = "exporting"
)

// DocumentBuilder builds the default document-generation pipeline. When the
// Groq client is unconfigured the stages fall back to deterministic mock
// content, so development and tests run without external services.
type DocumentBuilder struct {
	groqClient *client.GroqClient
	storage    client.StorageClient
}

// NewDocumentBuilder creates a builder over the given clients. Either client
// may be nil.
func NewDocumentBuilder(groqClient *client.GroqClient, storage client.StorageClient) *DocumentBuilder {
	return &DocumentBuilder{
		groqClient: groqClient,
		storage:    storage,
	}
}

// Build returns the four-stage document pipeline for one request.
func (b *DocumentBuilder) Build() *Pipeline {
	return New(
		Stage{Name: StageRetrieve, Run: b.retrieveSources},
		Stage{Name: StageWrite, Run: b.writeSections},
		Stage{Name: StageVerify, Run: b.verify},
		Stage{Name: StageExport, Run: b.export},
	)
}

// retrieveSources collects the source material the writing stage cites.
func (b *DocumentBuilder) retrieveSources(ctx context.Context, draft *Draft) error {
	if b.groqClient == nil || !b.groqClient.IsConfigured() {
		draft.Sources = mockSources(draft.Request)
		return nil
	}

	system := b.systemPrompt(draft.Request.Language)
	user := fmt.Sprintf(`List the background material needed to write a document titled %q.
Brief: %s

Return 3-6 sources as JSON: {"sources": [{"title": "...", "snippet": "one-sentence summary"}]}`,
		draft.Request.Title, draft.Request.Brief)

	resp, err := b.groqClient.ChatCompletion(ctx, system, user)
	if err != nil {
		return fmt.Errorf("source retrieval failed: %w", err)
	}

	var parsed struct {
		Sources []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"sources"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp)), &parsed); err != nil {
		return fmt.Errorf("failed to parse sources: %w", err)
	}
	for _, s := range parsed.Sources {
		draft.Sources = append(draft.Sources, model.SourceRef{
			ID:      uuid.New().String(),
			Title:   s.Title,
			Snippet: s.Snippet,
		})
	}
	return nil
}

// writeSections drafts each section against the brief and the sources.
func (b *DocumentBuilder) writeSections(ctx context.Context, draft *Draft) error {
	headings := draft.Request.Sections
	if len(headings) == 0 {
		headings = defaultHeadings(draft.Request.Language)
	}

	if b.groqClient == nil || !b.groqClient.IsConfigured() {
		draft.Sections = mockSections(headings, draft.Request)
		return nil
	}

	system := b.systemPrompt(draft.Request.Language)
	for _, heading := range headings {
		user := b.sectionPrompt(draft, heading)
		content, err := b.groqClient.LongCompletion(ctx, system, user)
		if err != nil {
			return fmt.Errorf("writing section %q failed: %w", heading, err)
		}
		draft.Sections = append(draft.Sections, model.SectionResult{
			Heading: heading,
			Content: strings.TrimSpace(content),
		})
	}
	return nil
}

// verify checks the drafted text against the sources.
func (b *DocumentBuilder) verify(ctx context.Context, draft *Draft) error {
	if b.groqClient == nil || !b.groqClient.IsConfigured() {
		draft.Verified = true
		return nil
	}

	var text strings.Builder
	for _, s := range draft.Sections {
		fmt.Fprintf(&text, "## %s\n%s\n\n", s.Heading, s.Content)
	}

	system := b.systemPrompt(draft.Request.Language)
	user := fmt.Sprintf(`Check the following draft for claims not supported by the brief or sources.
Brief: %s

Draft:
%s

Return JSON: {"verified": true|false, "issues": ["..."]}`, draft.Request.Brief, text.String())

	resp, err := b.groqClient.ChatCompletion(ctx, system, user)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	var parsed struct {
		Verified bool     `json:"verified"`
		Issues   []string `json:"issues"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp)), &parsed); err != nil {
		return fmt.Errorf("failed to parse verification result: %w", err)
	}
	if !parsed.Verified && len(parsed.Issues) > 0 {
		return fmt.Errorf("draft failed verification: %s", strings.Join(parsed.Issues, "; "))
	}
	draft.Verified = true
	return nil
}

// export renders the document as markdown and stores it as an artifact.
func (b *DocumentBuilder) export(ctx context.Context, draft *Draft) error {
	var doc strings.Builder
	fmt.Fprintf(&doc, "# %s\n\n", draft.Request.Title)
	for _, s := range draft.Sections {
		fmt.Fprintf(&doc, "## %s\n\n%s\n\n", s.Heading, s.Content)
	}

	key := fmt.Sprintf("documents/%s.md", uuid.New().String())
	if b.storage == nil {
		draft.ArtifactURL = fmt.Sprintf("https://cdn.docuforge.app/%s", key)
		return nil
	}

	url, err := b.storage.Upload(ctx, key, strings.NewReader(doc.String()), "text/markdown")
	if err != nil {
		return fmt.Errorf("artifact upload failed: %w", err)
	}
	draft.ArtifactURL = url
	return nil
}

func (b *DocumentBuilder) systemPrompt(language model.Language) string {
	langName := "English"
	switch language {
	case model.LanguageSV:
		langName = "Swedish"
	case model.LanguageFR:
		langName = "French"
	}

	return fmt.Sprintf(`You are a professional %s technical writer.
Write clear, well-structured prose grounded in the material you are given.
When asked for JSON, output valid JSON only, with no text outside the structure.`, langName)
}

func (b *DocumentBuilder) sectionPrompt(draft *Draft, heading string) string {
	var sources strings.Builder
	for _, s := range draft.Sources {
		fmt.Fprintf(&sources, "- %s: %s\n", s.Title, s.Snippet)
	}

	target := ""
	if draft.Request.TargetWords > 0 {
		perSection := draft.Request.TargetWords / max(1, len(draft.Request.Sections))
		target = fmt.Sprintf("\nAim for roughly %d words.", perSection)
	}

	tone := draft.Request.Tone
	if tone == "" {
		tone = model.ToneNeutral
	}

	return fmt.Sprintf(`Write the %q section of a document titled %q.
Brief: %s
Tone: %s%s

Sources:
%s
Write the section body only, without repeating the heading.`,
		heading, draft.Request.Title, draft.Request.Brief, tone, target, sources.String())
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

func defaultHeadings(language model.Language) []string {
	if language == model.LanguageSV {
		return []string{"Bakgrund", "Analys", "Slutsats"}
	}
	return []string{"Background", "Analysis", "Conclusion"}
}

// Mock implementations for development/testing
func mockSources(req *model.DocumentGenerateRequest) []model.SourceRef {
	return []model.SourceRef{
		{ID: uuid.New().String(), Title: "Project brief", Snippet: req.Brief},
		{ID: uuid.New().String(), Title: "Style guide", Snippet: "House writing conventions"},
	}
}

func mockSections(headings []string, req *model.DocumentGenerateRequest) []model.SectionResult {
	sections := make([]model.SectionResult, 0, len(headings))
	for _, h := range headings {
		sections = append(sections, model.SectionResult{
			Heading: h,
			Content: fmt.Sprintf("Draft content for %q based on the brief: %s", h, req.Brief),
		})
	}
	return sections
}
