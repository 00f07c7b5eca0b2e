package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuforge/api/internal/client"
	"github.com/docuforge/api/internal/model"
)

// FileExporter defines the interface for document export operations
type FileExporter interface {
	Export(ctx context.Context, owner, jobID string, format model.ExportFormat) (*model.ExportResponse, error)
}

// ExportService renders a succeeded job's document into a downloadable
// artifact and stores it in object storage.
type ExportService struct {
	documents *DocumentService
	r2Client  client.StorageClient
}

// NewExportService creates a new export service
func NewExportService(documents *DocumentService, r2Client client.StorageClient) *ExportService {
	return &ExportService{
		documents: documents,
		r2Client:  r2Client,
	}
}

// Export renders the job's document in the requested format. The job must
// have succeeded; ownership is enforced the same way as on the result
// endpoint.
func (s *ExportService) Export(ctx context.Context, owner, jobID string, format model.ExportFormat) (*model.ExportResponse, error) {
	result, err := s.documents.GetResult(ctx, owner, jobID)
	if err != nil {
		return nil, err
	}

	var body string
	var contentType, ext string
	switch format {
	case model.ExportFormatHTML:
		body = renderHTML(result)
		contentType, ext = "text/html", "html"
	case model.ExportFormatText:
		body = renderText(result)
		contentType, ext = "text/plain", "txt"
	default:
		body = renderMarkdown(result)
		contentType, ext = "text/markdown", "md"
		format = model.ExportFormatMarkdown
	}

	exportID := uuid.New().String()
	key := fmt.Sprintf("exports/%s.%s", exportID, ext)

	// Use mock response if storage is not configured
	if s.r2Client == nil {
		return &model.ExportResponse{
			FileURL:   fmt.Sprintf("https://cdn.docuforge.app/%s", key),
			Format:    format,
			Size:      int64(len(body)),
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}, nil
	}

	url, err := s.r2Client.Upload(ctx, key, strings.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("export upload failed: %w", err)
	}

	return &model.ExportResponse{
		FileURL:   url,
		Format:    format,
		Size:      int64(len(body)),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

func renderMarkdown(result *model.DocumentResult) string {
	var doc strings.Builder
	fmt.Fprintf(&doc, "# %s\n\n", result.Title)
	for _, s := range result.Sections {
		fmt.Fprintf(&doc, "## %s\n\n%s\n\n", s.Heading, s.Content)
	}
	if len(result.Sources) > 0 {
		doc.WriteString("## Sources\n\n")
		for _, src := range result.Sources {
			fmt.Fprintf(&doc, "- %s\n", src.Title)
		}
	}
	return doc.String()
}

func renderHTML(result *model.DocumentResult) string {
	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(result.Title))
	doc.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&doc, "<h1>%s</h1>\n", html.EscapeString(result.Title))
	for _, s := range result.Sections {
		fmt.Fprintf(&doc, "<h2>%s</h2>\n", html.EscapeString(s.Heading))
		for _, para := range strings.Split(s.Content, "\n\n") {
			fmt.Fprintf(&doc, "<p>%s</p>\n", html.EscapeString(para))
		}
	}
	doc.WriteString("</body>\n</html>\n")
	return doc.String()
}

func renderText(result *model.DocumentResult) string {
	var doc strings.Builder
	fmt.Fprintf(&doc, "%s\n%s\n\n", result.Title, strings.Repeat("=", len(result.Title)))
	for _, s := range result.Sections {
		fmt.Fprintf(&doc, "%s\n%s\n\n%s\n\n", s.Heading, strings.Repeat("-", len(s.Heading)), s.Content)
	}
	return doc.String()
}
