package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/humanmade/blockindex/pkg/client"
	"github.com/humanmade/blockindex/pkg/search"
)

func newBlocksCommand() *Command {
	cmd := &Command{
		Name:        "blocks",
		Description: "List reusable blocks, optionally filtered and ranked by keywords",
		Flags:       flag.NewFlagSet("blocks", flag.ExitOnError),
		Run:         runBlocks,
	}

	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")
	cmd.Flags.String("keywords", "", "Search keywords; prefix a term with - to exclude it")
	cmd.Flags.Int64("category", 0, "Category ID to filter by")

	return cmd
}

func runBlocks(args []string) error {
	cmd := newBlocksCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	keywords := cmd.Flags.Lookup("keywords").Value.String()
	category, _ := strconv.ParseInt(cmd.Flags.Lookup("category").Value.String(), 10, 64)

	c := client.NewClient(registry)
	results, err := c.Blocks(context.Background(), client.BlockListQuery{
		Search:     keywords,
		CategoryID: category,
	})
	if err != nil {
		return fmt.Errorf("failed to list blocks: %w", err)
	}

	terms := search.NormalizeKeywords(keywords)
	results = search.Rank(search.Filter(results, category, terms), terms)

	printBlocks(results)
	return nil
}

func printBlocks(results []search.BlockResult) {
	if len(results) == 0 {
		fmt.Println("No blocks found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE")
	for _, blk := range results {
		fmt.Fprintf(w, "%d\t%s\n", blk.ID, blk.Title.Raw)
	}
	w.Flush()
}
