package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/humanmade/blockindex/pkg/client"
)

func newRelatedCommand() *Command {
	cmd := &Command{
		Name:        "related",
		Description: "List the documents embedding a block",
		Flags:       flag.NewFlagSet("related", flag.ExitOnError),
		Run:         runRelated,
	}

	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")
	cmd.Flags.Int64("block", 0, "Block ID")
	cmd.Flags.Bool("all", false, "Walk every page instead of just the first")

	return cmd
}

func runRelated(args []string) error {
	cmd := newRelatedCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	blockID, _ := strconv.ParseInt(cmd.Flags.Lookup("block").Value.String(), 10, 64)
	all := cmd.Flags.Lookup("all").Value.String() == "true"

	if blockID <= 0 {
		return fmt.Errorf("block is required")
	}

	ctx := context.Background()
	pager := client.NewRelationshipPager(client.NewClient(registry), blockID)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tTITLE")

	count := 0
	for pager.HasNext() {
		items, err := pager.Next(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch relationships: %w", err)
		}
		for _, doc := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", doc.ID, doc.Type, doc.Status, doc.Title.Rendered)
			count++
		}
		if !all {
			break
		}
	}
	w.Flush()

	fmt.Printf("\n%d of %d documents\n", count, pager.TotalItems())
	return nil
}
