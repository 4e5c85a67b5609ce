// Package cmdutil provides shared utilities for idbctl commands.
package cmdutil

import (
	"fmt"
	"io"
	"os"

	"github.com/marmos91/idbuilder/internal/cli/credentials"
	"github.com/marmos91/idbuilder/internal/cli/output"
	"github.com/marmos91/idbuilder/internal/cli/prompt"
	"github.com/marmos91/idbuilder/pkg/apiclient"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ServerURL string
	Token     string
	Output    string
	NoColor   bool
}

// GetClient returns an API client configured from the current context.
// It uses the --server and --token flags if provided, otherwise falls
// back to stored credentials.
func GetClient() (*apiclient.Client, error) {
	// Check for explicit flags first
	if Flags.ServerURL != "" && Flags.Token != "" {
		return apiclient.New(Flags.ServerURL).WithToken(Flags.Token), nil
	}

	store, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	ctx, err := store.GetCurrentContext()
	if err != nil {
		return nil, credentials.ErrNotLoggedIn
	}

	// Use flag overrides if provided
	url := ctx.ServerURL
	if Flags.ServerURL != "" {
		url = Flags.ServerURL
	}
	if url == "" {
		return nil, fmt.Errorf("no server URL configured. Run 'idbctl login --server <url>' first")
	}

	tok := ctx.Token
	if Flags.Token != "" {
		tok = Flags.Token
	}
	if tok == "" {
		return nil, credentials.ErrNotLoggedIn
	}

	return apiclient.New(url).WithToken(tok), nil
}

// GetOutputFormatParsed returns the parsed output format, falling back
// to the stored preference when no flag was given.
func GetOutputFormatParsed() (output.Format, error) {
	raw := Flags.Output
	if raw == "" {
		if store, err := credentials.NewStore(); err == nil {
			raw = store.GetPreferences().DefaultOutput
		}
	}
	return output.ParseFormat(raw)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// PrintOutput prints data in the specified format (JSON, YAML, or table).
// For table format, it displays emptyMsg if data is empty, otherwise uses the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintResource prints a resource in the specified format.
// For table format, it uses the provided tableRenderer. For JSON/YAML, it outputs the resource.
func PrintResource(w io.Writer, data any, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	printer := output.NewPrinter(os.Stdout, format, !IsColorDisabled())
	printer.Success(msg)
}

// ConfirmDestructive prompts for confirmation unless force is true.
// Returns false (and no error) when the user declines or aborts.
func ConfirmDestructive(label string, force bool) (bool, error) {
	confirmed, err := prompt.ConfirmWithForce(label, force)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("\nAborted.")
			return false, nil
		}
		return false, err
	}
	if !confirmed {
		fmt.Println("Aborted.")
	}
	return confirmed, nil
}
