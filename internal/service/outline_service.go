package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docuforge/api/internal/client"
	"github.com/docuforge/api/internal/model"
)

// OutlineGenerator defines the interface for outline drafting
type OutlineGenerator interface {
	Generate(ctx context.Context, req *model.OutlineGenerateRequest) (*model.OutlineGenerateResponse, error)
}

// OutlineService drafts section outlines synchronously using Groq AI. This
// is the fast interactive path; full documents go through the job pipeline.
type OutlineService struct {
	groqClient *client.GroqClient
}

// NewOutlineService creates a new outline service with Groq client
func NewOutlineService(groqClient *client.GroqClient) *OutlineService {
	return &OutlineService{
		groqClient: groqClient,
	}
}

// Generate proposes section headings for the given title and brief.
func (s *OutlineService) Generate(ctx context.Context, req *model.OutlineGenerateRequest) (*model.OutlineGenerateResponse, error) {
	maxSections := req.MaxSections
	if maxSections == 0 {
		maxSections = 6
	}

	// Use mock response if client is not configured
	if s.groqClient == nil || !s.groqClient.IsConfigured() {
		return s.generateMock(req, maxSections)
	}

	systemPrompt := s.buildSystemPrompt(req.Language)
	userPrompt := s.buildGeneratePrompt(req, maxSections)

	response, err := s.groqClient.ChatCompletion(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("AI generation failed: %w", err)
	}

	sections, err := s.parseGenerateResponse(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if len(sections) > maxSections {
		sections = sections[:maxSections]
	}

	return &model.OutlineGenerateResponse{
		Sections: sections,
	}, nil
}

func (s *OutlineService) buildSystemPrompt(language model.Language) string {
	langName := "English"
	switch language {
	case model.LanguageSV:
		langName = "Swedish"
	case model.LanguageFR:
		langName = "French"
	}

	return fmt.Sprintf(`You are a professional %s editor who structures documents.
Propose section headings that cover the brief without overlap.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`, langName)
}

func (s *OutlineService) buildGeneratePrompt(req *model.OutlineGenerateRequest, maxSections int) string {
	return fmt.Sprintf(`Propose an outline for a document titled %q.
Brief: %s

Return at most %d section headings, ordered for reading.
Output as JSON: {"sections": ["heading1", "heading2", "heading3"]}`,
		req.Title, req.Brief, maxSections)
}

func (s *OutlineService) parseGenerateResponse(response string) ([]string, error) {
	response = extractJSON(response)

	var result struct {
		Sections []string `json:"sections"`
	}

	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	if len(result.Sections) == 0 {
		return nil, fmt.Errorf("no sections in response")
	}

	return result.Sections, nil
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	// Find the first { and last }
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

// Mock implementation for development/testing
func (s *OutlineService) generateMock(req *model.OutlineGenerateRequest, maxSections int) (*model.OutlineGenerateResponse, error) {
	sections := []string{
		"Introduction",
		"Background",
		"Analysis",
		"Recommendations",
		"Conclusion",
	}
	if maxSections < len(sections) {
		sections = sections[:maxSections]
	}

	return &model.OutlineGenerateResponse{
		Sections: sections,
	}, nil
}
