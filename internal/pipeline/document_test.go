package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/docuforge/api/internal/model"
)

func TestDocumentBuilder_MockPipeline(t *testing.T) {
	b := NewDocumentBuilder(nil, nil)
	p := b.Build()

	if p.Len() != 4 {
		t.Fatalf("expected 4 stages, got %d", p.Len())
	}
	wantOrder := []string{StageRetrieve, StageWrite, StageVerify, StageExport}
	for i, stage := range p.Stages() {
		if stage.Name != wantOrder[i] {
			t.Errorf("stage %d: expected %s, got %s", i, wantOrder[i], stage.Name)
		}
	}

	draft := &Draft{Request: &model.DocumentGenerateRequest{
		Title:    "Network Migration Plan",
		Brief:    "Plan the migration of our edge network.",
		Sections: []string{"Scope", "Risks"},
	}}

	for _, stage := range p.Stages() {
		if err := stage.Run(context.Background(), draft); err != nil {
			t.Fatalf("stage %s failed: %v", stage.Name, err)
		}
	}

	if len(draft.Sources) == 0 {
		t.Error("expected mock sources")
	}
	if len(draft.Sections) != 2 {
		t.Errorf("expected 2 sections, got %d", len(draft.Sections))
	}
	if !draft.Verified {
		t.Error("expected draft verified")
	}
	if !strings.HasSuffix(draft.ArtifactURL, ".md") {
		t.Errorf("expected markdown artifact URL, got %q", draft.ArtifactURL)
	}

	result := draft.Result()
	if result.Title != "Network Migration Plan" {
		t.Errorf("unexpected result title %q", result.Title)
	}
	if result.WordCount == 0 {
		t.Error("expected non-zero word count")
	}
}

func TestDocumentBuilder_DefaultHeadings(t *testing.T) {
	b := NewDocumentBuilder(nil, nil)
	draft := &Draft{Request: &model.DocumentGenerateRequest{
		Title:    "Rapport",
		Brief:    "En kort sammanfattning.",
		Language: model.LanguageSV,
	}}

	for _, stage := range b.Build().Stages() {
		if err := stage.Run(context.Background(), draft); err != nil {
			t.Fatalf("stage %s failed: %v", stage.Name, err)
		}
	}

	if len(draft.Sections) != 3 {
		t.Fatalf("expected default 3 sections, got %d", len(draft.Sections))
	}
	if draft.Sections[0].Heading != "Bakgrund" {
		t.Errorf("expected Swedish default headings, got %q", draft.Sections[0].Heading)
	}
}
