package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/guimove/rmqscaler/internal/report"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Print the configured profile ladder",
	Long: `Prints the profiles lowest first with their resource requests and the
thresholds that select them. A profile is chosen when the queue depth or the
publish rate is strictly above its threshold.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := cfg.ProfileTable()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("output")
		return report.NewReporter(format, os.Stdout).ReportProfiles(context.Background(), table.Profiles(), report.Meta{
			Backend:     cfg.RabbitMQ.Backend,
			GeneratedAt: time.Now(),
		})
	},
}

func init() {
	profilesCmd.Flags().String("output", "table", "output format: table, json, markdown")
	rootCmd.AddCommand(profilesCmd)
}
