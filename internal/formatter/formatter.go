// package formatter renders top-track lists as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/isoca/internal/models"
	"github.com/desertthunder/isoca/internal/shared"
)

// Supported output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// ExportToCSV converts tracks to CSV format with columns: Rank, Name, Artists, Popularity, Genres, Link, Image
func ExportToCSV(tracks models.TrackList) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Rank", "Name", "Artists", "Popularity", "Genres", "Link", "Image"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.Name,
			strings.Join(track.Artists, "; "),
			strconv.Itoa(track.Popularity),
			strings.Join(track.Genres, "; "),
			track.Link,
			track.ImageURL(),
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

// ExportToMarkdown converts tracks to a Markdown document with a genre summary
func ExportToMarkdown(tracks models.TrackList, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Top Tracks"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", len(tracks)))

	if genres := tracks.Genres(); len(genres) > 0 {
		buf.WriteString(fmt.Sprintf("**Genres**: %s\n", strings.Join(genres, ", ")))
	}
	buf.WriteString("\n## Tracks\n\n")

	for i, track := range tracks {
		name := track.Name
		if track.Link != "" {
			name = fmt.Sprintf("[%s](%s)", track.Name, track.Link)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s (popularity %d)\n", i+1, track.ArtistNames(), name, track.Popularity))
		if len(track.Genres) > 0 {
			buf.WriteString(fmt.Sprintf("   - _%s_\n", strings.Join(track.Genres, ", ")))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts tracks to plain text format
func ExportToText(tracks models.TrackList) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(tracks)))
	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.ArtistNames(), track.Name))
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders tracks in the wire shape of GET /data/top-items
func ExportToJSON(tracks models.TrackList) ([]byte, error) {
	if tracks == nil {
		tracks = models.TrackList{}
	}
	data, err := json.MarshalIndent(models.TopItemsResponse{Items: tracks}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Valid reports whether format names a supported output format.
func Valid(format string) error {
	switch strings.ToLower(format) {
	case FormatText, "txt", "", FormatMarkdown, "md", FormatCSV, FormatJSON:
		return nil
	default:
		return fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// Export renders tracks in the named format.
func Export(format string, tracks models.TrackList) ([]byte, error) {
	if err := Valid(format); err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case FormatMarkdown, "md":
		return ExportToMarkdown(tracks, "")
	case FormatCSV:
		return ExportToCSV(tracks)
	case FormatJSON:
		return ExportToJSON(tracks)
	default:
		return ExportToText(tracks)
	}
}

// Write renders tracks in the named format to w.
func Write(w io.Writer, format string, tracks models.TrackList) error {
	data, err := Export(format, tracks)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteFile renders tracks in the named format to the file at path.
func WriteFile(path, format string, tracks models.TrackList) error {
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}
	data, err := Export(format, tracks)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
