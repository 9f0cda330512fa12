// cmd/tools/catalog-tool/main.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/nlu/pipeline"
	"viora-nlu/internal/nlu/recovery"
	"viora-nlu/pkg/registry"
)

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(os.Args[2:], os.Stdout)
	case "list":
		err = runList(os.Args[2:], os.Stdout)
	case "route":
		err = runRoute(os.Args[2:], os.Stdin, os.Stdout)
	case "export":
		err = runExport(os.Args[2:], os.Stdout)
	case "help":
		help()
		return
	default:
		help()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadCatalog reads path, or the embedded catalog when path is empty.
func loadCatalog(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default()
	}
	return registry.LoadFile(path)
}

func runValidate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	path := fs.String("path", "", "Path to catalog file (default: embedded catalog)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg, err := loadCatalog(*path)
	if err != nil {
		return fmt.Errorf("catalog validation failed: %w", err)
	}
	fmt.Fprintf(out, "Catalog validation passed. Version %s, %d intents.\n", reg.Version(), reg.Len())
	return nil
}

func runList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	path := fs.String("path", "", "Path to catalog file (default: embedded catalog)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg, err := loadCatalog(*path)
	if err != nil {
		return err
	}
	for _, c := range reg.Contracts() {
		required := "-"
		if len(c.RequiredEntities) > 0 {
			required = strings.Join(c.RequiredEntities, ",")
		}
		fmt.Fprintf(out, "%-22s required=%-16s %s\n", c.Name, required, c.Description)
	}
	return nil
}

// runRoute routes raw generated text through the decision pipeline. Text
// comes from -text, or from input one record per line.
func runRoute(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	path := fs.String("path", "", "Path to catalog file (default: embedded catalog)")
	text := fs.String("text", "", "Raw generated text; reads stdin line by line when empty")
	truncated := fs.Bool("accept-truncated", false, "Accept records cut off inside a string")
	verbose := fs.Bool("v", false, "Log pipeline stages to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg, err := loadCatalog(*path)
	if err != nil {
		return err
	}

	log := logger.NewNoOpLogger()
	if *verbose {
		log = logger.NewStructured("debug", "console")
	}
	core := pipeline.New(reg, pipeline.Options{
		Recovery: recovery.Options{AcceptTruncatedStrings: *truncated},
	}, log)

	enc := json.NewEncoder(out)
	emit := func(raw string) error {
		d := core.Process(context.Background(), raw)
		return enc.Encode(d)
	}

	if *text != "" {
		return emit(*text)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := emit(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// runExport writes the embedded catalog to a file as a starting point for
// a custom catalog.
func runExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	path := fs.String("path", "configs/intents.json", "Destination file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg, err := registry.Default()
	if err != nil {
		return err
	}
	cat := registry.Catalog{
		Version:     reg.Version(),
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Intents:     reg.Contracts(),
	}
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(*path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(*path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	fmt.Fprintf(out, "Exported %d intents to %s\n", reg.Len(), *path)
	return nil
}

func help() {
	fmt.Print(`
Usage: catalog-tool <command> [flags]

Commands:
  validate  Validate a catalog file
  list      List the intents of a catalog
  route     Route raw generated text to a decision
  export    Write the built-in catalog to a file
  help      Show this help message

Examples:
  catalog-tool validate -path configs/intents.json
  catalog-tool list
  catalog-tool route -text '{"intent":"read_document","confidence":0.9,"entities":{"reading_action":"pause"}}'
  catalog-tool export -path configs/intents.json

Use 'catalog-tool <command> -h' for more information about a command.
` + "\n")
}
