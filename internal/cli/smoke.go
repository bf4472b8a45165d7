package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"icalfilter/internal/capture"
	"icalfilter/internal/filterurl"
	"icalfilter/internal/model"
)

var smokeFlags struct {
	baseURL          string
	expectHost       string
	calendarURL      string
	days             []int
	nameRegex        string
	descriptionRegex string
	screenshot       string
	timeout          time.Duration
}

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Drive a running instance in headless Chromium and print the link it builds",
	Long: `Smoke opens the form page of a running instance in headless Chromium,
fills it, clicks the build button and prints the resulting link. With
--expect-host the link is compared against the locally built URL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := smokeFlags
		if f.baseURL == "" {
			return fmt.Errorf("--base-url is required")
		}

		st := model.FormState{
			CalendarURL:      f.calendarURL,
			NameRegex:        f.nameRegex,
			DescriptionRegex: f.descriptionRegex,
		}
		for _, d := range f.days {
			if !model.ValidDay(d) {
				return fmt.Errorf("day %d out of range 0-6", d)
			}
			st.Days[d] = true
		}

		href, err := capture.BuildLink(cmd.Context(), capture.Options{
			BaseURL:        f.baseURL,
			Form:           st,
			ScreenshotPath: f.screenshot,
			Timeout:        f.timeout,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), href)

		if f.expectHost != "" {
			if want := filterurl.Build(f.expectHost, st); href != want {
				return fmt.Errorf("link mismatch: got %s, want %s", href, want)
			}
		}
		return nil
	},
}

func init() {
	fl := smokeCmd.Flags()
	fl.StringVar(&smokeFlags.baseURL, "base-url", "", "Form page of the running instance, e.g. http://127.0.0.1:8080/")
	fl.StringVar(&smokeFlags.expectHost, "expect-host", "", "If set, fail unless the link equals the URL built for this host")
	fl.StringVarP(&smokeFlags.calendarURL, "url", "u", "", "Source calendar URL")
	fl.IntSliceVarP(&smokeFlags.days, "day", "d", nil, "Weekday index to tick (0-6); repeatable")
	fl.StringVar(&smokeFlags.nameRegex, "name-regex", "", "Optional event name pattern")
	fl.StringVar(&smokeFlags.descriptionRegex, "description-regex", "", "Optional event description pattern")
	fl.StringVar(&smokeFlags.screenshot, "screenshot", "", "Write a PNG of the result page here")
	fl.DurationVar(&smokeFlags.timeout, "timeout", capture.DefaultTimeoutSec*time.Second, "Overall browser timeout")

	rootCmd.AddCommand(smokeCmd)
}
