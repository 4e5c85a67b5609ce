package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/pkg/domain"
)

var (
	listFrom string
	listSize int
	listAll  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured keys",
	Long: `List configured keys with their ID types.

The listing is cursor-paginated. Use --all to follow the cursor through
every page, or --from to resume from a previous cursor.

Examples:
  # First page
  idbctl config list

  # Everything
  idbctl config list --all

  # Resume after a key
  idbctl config list --from orders`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listFrom, "from", "", "cursor to resume from (exclusive)")
	listCmd.Flags().IntVar(&listSize, "size", 0, "page size, 1..100 (default: server default)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "follow the cursor through all pages")
}

// ConfigList is a list of config summaries for table rendering.
type ConfigList []domain.ConfigSummary

// Headers implements TableRenderer.
func (cl ConfigList) Headers() []string {
	return []string{"KEY", "ID TYPE"}
}

// Rows implements TableRenderer.
func (cl ConfigList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		rows = append(rows, []string{c.Key, string(c.Type)})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	var items []domain.ConfigSummary
	from := listFrom
	for {
		page, err := client.ListConfigs(from, listSize)
		if err != nil {
			return fmt.Errorf("failed to list configs: %w", err)
		}
		items = append(items, page.Items...)
		if !listAll || !page.HasMore {
			if page.HasMore {
				defer fmt.Fprintf(os.Stderr, "More keys exist. Continue with --from %s or use --all.\n", page.NextCursor)
			}
			break
		}
		from = page.NextCursor
	}

	return cmdutil.PrintOutput(os.Stdout, items, len(items) == 0, "No keys configured.", ConfigList(items))
}
