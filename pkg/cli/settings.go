package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/humanmade/blockindex/pkg/client"
)

func newSettingsCommand() *Command {
	cmd := &Command{
		Name:        "settings",
		Description: "Print the editor bootstrap settings",
		Flags:       flag.NewFlagSet("settings", flag.ExitOnError),
		Run:         runSettings,
	}

	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")

	return cmd
}

func runSettings(args []string) error {
	cmd := newSettingsCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()

	c := client.NewClient(registry)
	settings, err := c.Settings(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch settings: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(settings)
}
