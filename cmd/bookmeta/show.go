package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/bookmeta/internal/metadata"
)

// bookView is the printable form of one extraction result.
type bookView struct {
	Path        string   `json:"path"`
	Format      string   `json:"format"`
	Status      string   `json:"status"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Category    string   `json:"category,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Language    string   `json:"language,omitempty"`
	Identifier  string   `json:"identifier,omitempty"`
	Date        string   `json:"date,omitempty"`
	Description string   `json:"description,omitempty"`
	Subjects    []string `json:"subjects,omitempty"`
	Cover       string   `json:"cover,omitempty"`
	CoverSize   int      `json:"cover_size,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func newBookView(path string, res metadata.Result) bookView {
	rec := res.Record
	v := bookView{
		Path:        path,
		Format:      res.Format,
		Status:      res.Status.String(),
		Title:       rec.Title,
		Authors:     rec.Authors,
		Category:    rec.Category,
		Publisher:   rec.Publisher,
		Language:    rec.Language,
		Identifier:  rec.Identifier,
		Date:        rec.Date,
		Description: rec.Description,
		Subjects:    rec.Subjects,
		Warnings:    res.Warnings,
	}
	if rec.Cover != nil {
		v.Cover = rec.Cover.Format
		v.CoverSize = len(rec.Cover.Data)
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

func newShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show FILE...",
		Short: "Print the metadata of one or more books",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.pipeline()
			views := make([]bookView, 0, len(args))
			for _, path := range args {
				views = append(views, newBookView(path, p.ExtractFile(path)))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, views)
			}
			for i, v := range views {
				if i > 0 {
					fmt.Fprintln(out)
				}
				writeText(out, v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func writeJSON(w io.Writer, views []bookView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

func writeText(w io.Writer, v bookView) {
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-12s %s\n", name+":", value)
		}
	}

	field("File", v.Path)
	field("Format", v.Format)
	field("Status", v.Status)
	field("Title", v.Title)
	field("Authors", strings.Join(v.Authors, "; "))
	field("Category", v.Category)
	field("Publisher", v.Publisher)
	field("Language", v.Language)
	field("Identifier", v.Identifier)
	field("Date", v.Date)
	field("Subjects", strings.Join(v.Subjects, "; "))
	if v.Cover != "" {
		field("Cover", fmt.Sprintf("%s, %d bytes", v.Cover, v.CoverSize))
	}
	field("Description", v.Description)
	for _, warning := range v.Warnings {
		field("Warning", warning)
	}
	field("Error", v.Error)
}
