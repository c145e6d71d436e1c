package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"github.com/mmynk/splitthat/internal/calculator"
	"github.com/mmynk/splitthat/internal/extractor"
)

type extractCmd struct {
	participants string
	instruction  string
	model        string
	dpi          int
	asJSON       bool
}

func (*extractCmd) Name() string     { return "extract" }
func (*extractCmd) Synopsis() string { return "read a receipt and print the proposed split" }
func (*extractCmd) Usage() string {
	return `splitctl extract -participants Alice,Bob [-instruction "..."] [-json] <receipt>

  Sends a receipt image or PDF to Gemini and renders the split. Reads the API
  key from GEMINI_API_KEY.
`
}

func (c *extractCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.participants, "participants", "", "Comma-separated participant names")
	f.StringVar(&c.instruction, "instruction", "", "Splitting instruction (defaults to an equal split)")
	f.StringVar(&c.model, "model", os.Getenv("GEMINI_MODEL"), "Gemini model")
	f.IntVar(&c.dpi, "dpi", 150, "Resolution for PDF pages")
	f.BoolVar(&c.asJSON, "json", false, "Print the split as JSON instead of markdown")
}

func (c *extractCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one receipt file is required")
		return subcommands.ExitUsageError
	}
	participants := splitNames(c.participants)
	if len(participants) == 0 {
		fmt.Fprintln(os.Stderr, "Error: -participants is required")
		return subcommands.ExitUsageError
	}

	file := f.Arg(0)
	media, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	model, err := extractor.NewGemini(ctx, os.Getenv("GEMINI_API_KEY"), c.model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	ext := extractor.New(model, &extractor.Pdftoppm{DPI: c.dpi})

	split, err := ext.Extract(ctx, media, contentType(file, media), participants, c.instruction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(split); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	var warnings []string
	if found, err := calculator.Reconcile(split); err == nil {
		for _, d := range found {
			warnings = append(warnings, d.String())
		}
	}
	md, err := splitMarkdown(split, participants, warnings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

func splitNames(list string) []string {
	var names []string
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// contentType prefers the file extension and sniffs the bytes otherwise.
func contentType(file string, media []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(file))); ct != "" {
		return ct
	}
	return http.DetectContentType(media)
}
