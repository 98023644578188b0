package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
)

type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// GeneratePDF renders the episode package (transcript plus show notes) for
// handing off outside the dashboard.
func (s *PDFService) GeneratePDF(w domain.Workflow, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure pdf directory: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Episode %s", w.ID), false)
	pdf.SetAuthor("podcast automation", false)
	pdf.AddPage()

	title := episodeTitle(w)

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	if w.UploadedFile != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Source file: %s", w.UploadedFile.Filename))
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Created: %s", w.CreatedAt.Local().Format("02/01/2006 15:04")))
	pdf.Ln(12)

	s.writeSection(pdf, "Transcript", w.Transcript, false)

	if w.GeneratedContent != nil {
		pdf.Ln(8)
		s.writeSection(pdf, "Episode Summary", w.GeneratedContent.ShowNotes.EpisodeSummary, false)
		pdf.Ln(8)
		s.writeSection(pdf, "Key Takeaways", strings.Join(w.GeneratedContent.ShowNotes.KeyTakeaways, "\n"), true)
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	return nil
}

func episodeTitle(w domain.Workflow) string {
	if strings.TrimSpace(w.EpisodeTitle) != "" {
		return w.EpisodeTitle
	}
	if w.SelectedContent != nil && strings.TrimSpace(w.SelectedContent.SEOTitle) != "" {
		return w.SelectedContent.SEOTitle
	}
	if w.UploadedFile != nil {
		return strings.TrimSuffix(w.UploadedFile.Filename, filepath.Ext(w.UploadedFile.Filename))
	}
	return "Untitled Episode"
}

func (s *PDFService) writeSection(pdf *gofpdf.Fpdf, title, content string, bullet bool) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, title)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) == 0 {
		pdf.MultiCell(0, 6, "(empty)", "", "L", false)
		return
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		text := line
		if bullet {
			text = fmt.Sprintf("• %s", line)
		}
		pdf.MultiCell(0, 6, text, "", "L", false)
	}
}
