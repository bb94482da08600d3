package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/humanmade/blockindex/pkg/client"
)

func newSearchCommand() *Command {
	cmd := &Command{
		Name:        "search",
		Description: "Resolve a document ID to its candidate blocks",
		Flags:       flag.NewFlagSet("search", flag.ExitOnError),
		Run:         runSearch,
	}

	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")
	cmd.Flags.String("id", "", "Document ID to resolve")

	return cmd
}

func runSearch(args []string) error {
	cmd := newSearchCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	id := cmd.Flags.Lookup("id").Value.String()

	if id == "" {
		return fmt.Errorf("id is required")
	}

	c := client.NewClient(registry)
	results, err := c.Search(context.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve candidates: %w", err)
	}

	printBlocks(results)
	return nil
}
