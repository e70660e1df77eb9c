package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Project scopes and per-project totals",
	RunE:  runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, _ []string) error {
	loc, err := location()
	if err != nil {
		return err
	}
	snap, err := loadData(cmd.Context())
	if err != nil {
		return err
	}
	if len(snap.Sessions) == 0 {
		fmt.Println("\n  No sessions found.")
		return nil
	}

	since, until := window(time.Now(), loc)
	projects := pipeline.AggregateProjects(snap.Sessions, since, until)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("PROJECTS  Last %dd", flagDays)))
	fmt.Println()

	if len(projects) == 0 {
		fmt.Println("  No project data in the selected time range.")
	} else {
		rows := make([][]string, 0, len(projects))
		for _, ps := range projects {
			rows = append(rows, []string{
				truncate(projectLabel(ps.Project), 24),
				cli.FormatNumber(int64(ps.Sessions)),
				cli.FormatTokens(ps.TotalTokens),
				cli.FormatCost(ps.EstimatedCost),
			})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Headers: []string{"Project", "Sessions", "Tokens", "Cost"},
			Rows:    rows,
		}))
	}

	fmt.Printf("\n  Scopes for --project: %s\n\n", strings.Join(pipeline.ProjectScopes(snap.Sessions), ", "))
	return nil
}
