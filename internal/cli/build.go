package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"icalfilter/internal/form"
	"icalfilter/internal/model"
)

var buildFlags struct {
	host             string
	calendarURL      string
	days             []int
	nameRegex        string
	descriptionRegex string
	page             string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Print the filtered feed URL for the given inputs",
	Long: `Build prints the filtered feed URL. Inputs come from flags, or from a
saved form page (--page) whose data-host and input values are used;
--host overrides the page's data-host.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		doc, err := buildDocument()
		if err != nil {
			return err
		}
		u, err := form.Apply(doc)
		if errors.Is(err, form.ErrMissingHost) {
			return fmt.Errorf("no host: pass --host or a page with a data-host attribute")
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	},
}

func buildDocument() (*form.Document, error) {
	f := buildFlags

	if f.page != "" {
		file, err := os.Open(f.page)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		doc, err := form.ParseHTML(file)
		if err != nil {
			return nil, fmt.Errorf("parse page: %w", err)
		}
		if f.host != "" {
			doc.SetRootAttr(form.HostAttr, f.host)
		}
		return doc, nil
	}

	if f.host == "" {
		return nil, errors.New("--host is required without --page")
	}

	st := model.FormState{
		CalendarURL:      f.calendarURL,
		NameRegex:        f.nameRegex,
		DescriptionRegex: f.descriptionRegex,
	}
	for _, d := range f.days {
		if !model.ValidDay(d) {
			return nil, fmt.Errorf("day %d out of range 0-6", d)
		}
		st.Days[d] = true
	}
	return form.FromState(f.host, st), nil
}

func init() {
	fl := buildCmd.Flags()
	fl.StringVar(&buildFlags.host, "host", "", "Host prefix of the filter endpoint, e.g. https://ical.example.com")
	fl.StringVarP(&buildFlags.calendarURL, "url", "u", "", "Source calendar URL")
	fl.IntSliceVarP(&buildFlags.days, "day", "d", nil, "Weekday index to keep (0-6, Sunday is 0); repeatable")
	fl.StringVar(&buildFlags.nameRegex, "name-regex", "", "Optional event name pattern")
	fl.StringVar(&buildFlags.descriptionRegex, "description-regex", "", "Optional event description pattern")
	fl.StringVar(&buildFlags.page, "page", "", "Read inputs from a saved form page")

	rootCmd.AddCommand(buildCmd)
}
