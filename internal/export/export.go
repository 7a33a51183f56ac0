// Package export renders the note store as an xlsx workbook for offline
// review: a Notes sheet with one row per note and a Summary sheet with
// counts by category and folder.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"voicenotes-go/internal/logger"
	"voicenotes-go/internal/types"
)

var noteHeaders = []string{
	"Filename", "Title", "Date", "Folder", "Status", "Category", "Program",
	"Language", "Length (s)", "Topics", "Tags", "Transcription",
}

func tagLabels(tags []types.Tag) string {
	var labels []string
	for _, t := range tags {
		labels = append(labels, t.Label)
	}
	return strings.Join(labels, ", ")
}

// BuildWorkbook assembles the workbook in memory. Notes are written in the
// order given; callers pass the store's sorted listing.
func BuildWorkbook(all []*types.Note) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "Notes")

	for col, h := range noteHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue("Notes", cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	byCategory := map[string]int{}
	byFolder := map[string]int{}
	for i, n := range all {
		length := ""
		if n.LengthSeconds != nil {
			length = fmt.Sprintf("%.2f", *n.LengthSeconds)
		}
		category := n.AutoCategory
		if category == "" {
			category = "uncategorized"
		}
		folder := n.Folder
		if folder == "" {
			folder = "(none)"
		}
		byCategory[category]++
		byFolder[folder]++

		row := []any{
			n.Filename, n.Title, n.Date, n.Folder, n.TranscriptionStatus,
			n.AutoCategory, n.AutoProgram, n.Language, length,
			strings.Join(n.Topics, ", "), tagLabels(n.Tags), n.Transcription,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row cell: %w", err)
		}
		if err := f.SetSheetRow("Notes", cell, &row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	if _, err := f.NewSheet("Summary"); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	row := 1
	writeCounts := func(heading string, counts map[string]int) error {
		if err := f.SetCellValue("Summary", fmt.Sprintf("A%d", row), heading); err != nil {
			return err
		}
		row++
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := f.SetCellValue("Summary", fmt.Sprintf("A%d", row), k); err != nil {
				return err
			}
			if err := f.SetCellValue("Summary", fmt.Sprintf("B%d", row), counts[k]); err != nil {
				return err
			}
			row++
		}
		row++
		return nil
	}
	if err := writeCounts("Notes by category", byCategory); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	if err := writeCounts("Notes by folder", byFolder); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	if err := f.SetCellValue("Summary", fmt.Sprintf("A%d", row), "Total notes"); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	if err := f.SetCellValue("Summary", fmt.Sprintf("B%d", row), len(all)); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	return f, nil
}

// WriteWorkbook builds the workbook and saves it to path.
func WriteWorkbook(all []*types.Note, path string) error {
	log := logger.Component("export").WithField("path", path)
	f, err := BuildWorkbook(all)
	if err != nil {
		log.WithField("error", err.Error()).Error("workbook build failed")
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		log.WithField("error", err.Error()).Error("workbook save failed")
		return fmt.Errorf("save workbook: %w", err)
	}
	log.WithField("notes", len(all)).Info("workbook exported")
	return nil
}
