// package formatter renders playlists, sync runs and conflicts for the terminal and exports
// playlists to CSV, Markdown and plain text files
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

// Export is a playlist flattened to what the file formats need.
type Export struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Provider    models.Provider `json:"provider,omitempty"` // empty for unified playlists
	Public      bool            `json:"public"`
	ImageURL    string          `json:"image_url,omitempty"`
	Tracks      []*models.Track `json:"-"`
}

// FromUnified builds an [Export] from a unified playlist and its items.
func FromUnified(p *models.UnifiedPlaylist, items []*models.UnifiedItem) *Export {
	e := &Export{ID: p.ID, Name: p.Name, Description: p.Description}
	for _, it := range items {
		if it.Track != nil {
			e.Tracks = append(e.Tracks, it.Track)
		}
	}
	return e
}

// FromMirror builds an [Export] from a mirrored provider playlist and its items.
func FromMirror(p *models.Playlist, items []*models.PlaylistItem) *Export {
	e := &Export{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Provider:    p.Provider,
		Public:      p.IsPublic,
		ImageURL:    p.ImageURL,
	}
	for _, it := range items {
		if it.Track != nil {
			e.Tracks = append(e.Tracks, it.Track)
		}
	}
	return e
}

// Duration formats milliseconds as m:ss.
func Duration(ms int) string {
	if ms <= 0 {
		return "-"
	}
	s := ms / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// Visibility returns "Public" or "Private".
func Visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

// ExportToCSV converts an Export to CSV with columns: ID, Provider, Title, Artist, Album, Duration, ISRC, URL
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Provider", "Title", "Artist", "Album", "Duration", "ISRC", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		record := []string{
			track.ProviderTrackID,
			string(track.Provider),
			track.Name,
			track.Artist,
			track.Album,
			strconv.Itoa(track.DurationMS / 1000),
			track.ISRC,
			track.ExternalURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an Export to Markdown with an optional cover image
func ExportToMarkdown(export *Export, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	if export.Provider != "" {
		fmt.Fprintf(&buf, "**Provider**: %s\n", export.Provider.DisplayName())
		fmt.Fprintf(&buf, "**Visibility**: %s\n", Visibility(export.Public))
	}
	buf.WriteString("\n## Tracks\n\n")

	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s] · %s\n", i+1, track.Artist, track.Name, albumPart, Duration(track.DurationMS), track.Provider.DisplayName())
	}

	return buf.Bytes(), nil
}

// ExportToText converts an Export to plain text
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Name)
	if export.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Name)
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(export *Export) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrMissingArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV with an accompanying metadata JSON file.
//
// Defaults to the playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(export *Export, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{TracksFile: tracksFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
	Warnings   []error // cover download or save failures; the export itself still succeeded
}

// WriteMarkdownExport exports a playlist to {dir}/README.md, plus {dir}/cover.jpg when the
// playlist has an image that can be downloaded. Directory name defaults to the playlist ID.
func WriteMarkdownExport(client *http.Client, export *Export, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}

	var coverImageFilename string
	if export.ImageURL != "" {
		imageData, err := DownloadImage(client, export.ImageURL)
		if err != nil {
			result.Warnings = append(result.Warnings, err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				result.Warnings = append(result.Warnings, fmt.Errorf("failed to save cover image: %w", err))
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

// WriteTextExport exports a playlist to plain text.
//
// Defaults to {export.ID}_tracks.txt as the filename.
func WriteTextExport(export *Export, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", export.ID)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
