// Package pipeline defines the staged execution model for generation jobs.
// The orchestrator only sees stage names and their order; what a stage does
// is opaque to it.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/docuforge/api/internal/model"
)

// Draft is the accumulator threaded through the stages of one job.
type Draft struct {
	Request     *model.DocumentGenerateRequest
	Sources     []model.SourceRef
	Sections    []model.SectionResult
	Verified    bool
	ArtifactURL string
}

// Result assembles the final document payload from the accumulated draft.
func (d *Draft) Result() *model.DocumentResult {
	words := 0
	for _, s := range d.Sections {
		words += countWords(s.Content)
	}
	return &model.DocumentResult{
		ID:          uuid.New().String(),
		Title:       d.Request.Title,
		Sections:    d.Sections,
		Sources:     d.Sources,
		WordCount:   words,
		Verified:    d.Verified,
		ArtifactURL: d.ArtifactURL,
		CreatedAt:   time.Now(),
	}
}

func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

// Stage is one named unit of work. Run may block for a long time; the
// orchestrator never interrupts it mid-flight.
type Stage struct {
	Name string
	Run  func(ctx context.Context, draft *Draft) error
}

// Pipeline is an ordered, immutable sequence of stages.
type Pipeline struct {
	stages []Stage
}

// New creates a pipeline from the given stages, in execution order.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Stages returns the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.stages)
}
