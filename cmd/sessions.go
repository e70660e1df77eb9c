package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session list with details",
	RunE:  runSessions,
}

var sessionsLimit int

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Number of sessions to show")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, _ []string) error {
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

	now := time.Now()
	since, until := window(now, loc)
	sessions := pipeline.FilterByTime(scopedSessions(snap.Sessions), since, until)

	if len(sessions) == 0 {
		fmt.Println("\n  No sessions in the selected time range.")
		return nil
	}

	// Sort by start time descending
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.After(sessions[j].Timestamp)
	})

	if sessionsLimit > 0 && len(sessions) > sessionsLimit {
		sessions = sessions[:sessionsLimit]
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("SESSIONS  Last %dd (showing %d)", flagDays, len(sessions))))
	fmt.Println()

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		cost := cli.FormatCost(s.EstimatedCost)
		if s.UsedFallbackPricing {
			cost += "*"
		}
		rows = append(rows, []string{
			s.Timestamp.In(loc).Format("Jan 02 15:04"),
			truncate(projectLabel(s.Project), 16),
			truncate(s.Model, 20),
			cli.FormatTokens(s.TotalTokens),
			cli.FormatTokens(s.TokensInLastHour),
			cost,
			cli.FormatRelative(s.LatestUsage, now),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Start", "Project", "Model", "Tokens", "Last hour", "Cost", "Last usage"},
		Rows:    rows,
	}))

	return nil
}
