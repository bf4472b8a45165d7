package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"icalfilter/internal/config"
	"icalfilter/internal/ics"
)

var previewFlags struct {
	calendarURL string
	horizonDays int
	timezone    string
	cacheDir    string
	asJSON      bool
	private     bool
}

var weekdayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Summarize a calendar feed to help choose days and patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := previewFlags
		if f.calendarURL == "" {
			return fmt.Errorf("--url is required")
		}
		loc, err := time.LoadLocation(f.timezone)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", f.timezone, err)
		}

		p := ics.NewPreviewer(ics.NewFetcher(ics.FetcherOptions{
			CacheDir:             f.cacheDir,
			AllowPrivateNetworks: f.private,
		}))
		pv, err := p.Preview(cmd.Context(), f.calendarURL, ics.PreviewOptions{
			Location:    loc,
			HorizonDays: f.horizonDays,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if f.asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(pv)
		}

		fmt.Fprintf(out, "Events: %d (%d occurrences in the next %d days, %s)\n",
			pv.EventCount, pv.OccurrenceCount, f.horizonDays, pv.Timezone)
		for i, n := range pv.Weekdays {
			fmt.Fprintf(out, "  day-%d %s %d\n", i, weekdayNames[i], n)
		}
		if len(pv.Names) > 0 {
			fmt.Fprintf(out, "Names:\n  %s\n", strings.Join(pv.Names, "\n  "))
		}
		return nil
	},
}

func init() {
	def := config.DefaultConfig().Preview

	fl := previewCmd.Flags()
	fl.StringVarP(&previewFlags.calendarURL, "url", "u", "", "Source calendar URL")
	fl.IntVar(&previewFlags.horizonDays, "horizon-days", def.HorizonDays, "Days ahead to expand recurring events")
	fl.StringVar(&previewFlags.timezone, "timezone", def.Timezone, "IANA timezone used to assign occurrences to weekdays")
	fl.StringVar(&previewFlags.cacheDir, "cache-dir", def.CacheDir, "Feed cache directory")
	fl.BoolVar(&previewFlags.asJSON, "json", false, "Print the preview as JSON")
	fl.BoolVar(&previewFlags.private, "allow-private-networks", false, "Allow feeds on loopback and private addresses")

	rootCmd.AddCommand(previewCmd)
}
