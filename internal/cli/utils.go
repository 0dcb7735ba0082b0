package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/mitsuke/internal/models"
	"github.com/hyperjump/mitsuke/pkg/utils"
)

// Output formats for query results.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// WriteQueryResponse writes a query response to w in the given format.
func WriteQueryResponse(w io.Writer, resp *models.QueryResponse, format string) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case OutputText, "":
		return writeQueryResponseText(w, resp)
	default:
		return fmt.Errorf("unknown output format: %q", format)
	}
}

func writeQueryResponseText(w io.Writer, resp *models.QueryResponse) error {
	if !resp.Success {
		if _, err := fmt.Fprintf(w, "Service unavailable: %s\n", resp.Response); err != nil {
			return err
		}
		return nil
	}

	if _, err := fmt.Fprintf(w, "%s\n", resp.Response); err != nil {
		return err
	}

	total := 0
	for _, g := range resp.Groups {
		total += g.ItemCount
	}
	if total == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "\nFound %d item(s) in %d group(s) [mode: %s]\n",
		total, len(resp.Groups), resp.Mode); err != nil {
		return err
	}

	for _, group := range resp.Groups {
		if group.ItemCount == 0 {
			continue
		}
		if err := writeGroup(w, group); err != nil {
			return err
		}
	}
	return nil
}

func writeGroup(w io.Writer, group models.ResultGroup) error {
	header := group.QueryText
	if group.Category != "" && group.Category != "general" && group.Category != "similar" {
		header = fmt.Sprintf("%s [%s]", header, group.Category)
	}
	if group.GenderFilter != "" && group.GenderFilter != models.GenderBoth {
		header = fmt.Sprintf("%s (%s)", header, group.GenderFilter)
	}
	if _, err := fmt.Fprintf(w, "\n%d. %s\n", group.QueryNumber, header); err != nil {
		return err
	}
	for _, item := range group.Items {
		if err := writeOneItem(w, item); err != nil {
			return err
		}
	}
	return nil
}

func writeOneItem(w io.Writer, item models.ResultItem) error {
	var parts []string
	parts = append(parts, utils.Truncate(item.Title, 60))
	if item.Brand != "" {
		parts = append(parts, item.Brand)
	}
	if item.Price != "" && item.Price != "N/A" {
		parts = append(parts, item.Price)
	}
	_, err := fmt.Fprintf(w, "   - %s (score: %.3f) [%s]\n",
		strings.Join(parts, ", "), item.Score, item.ExternalID)
	return err
}

// PrintQueryResponse is a convenience wrapper that panics on write errors.
// Intended for command-line output where the writer is stdout.
func PrintQueryResponse(w io.Writer, resp *models.QueryResponse, format string) {
	if err := WriteQueryResponse(w, resp, format); err != nil {
		panic(err)
	}
}
