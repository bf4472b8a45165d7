// Package filterurl derives the filtered calendar-feed URL from a form
// snapshot. Everything here is pure: no I/O, no validation of the inputs.
package filterurl

import (
	"strconv"
	"strings"

	"icalfilter/internal/model"
)

// FilterPath is the path of the filtering endpoint on the host.
const FilterPath = "/filter"

// Query parameter names understood by the filter endpoint.
const (
	ParamURL              = "url"
	ParamDays             = "days"
	ParamNameRegex        = "nameregex"
	ParamDescriptionRegex = "descriptionregex"
)

// Build returns
//
//	<host>/filter?url=<enc>&days=<i,...>[&nameregex=<enc>][&descriptionregex=<enc>]
//
// The host is used verbatim. Optional patterns are omitted when empty.
func Build(host string, st model.FormState) string {
	var b strings.Builder
	b.WriteString(host)
	b.WriteString(FilterPath)
	b.WriteString("?" + ParamURL + "=")
	b.WriteString(EncodeComponent(st.CalendarURL))
	b.WriteString("&" + ParamDays + "=")
	b.WriteString(DayFragment(st.Days))

	if st.NameRegex != "" {
		b.WriteString("&" + ParamNameRegex + "=")
		b.WriteString(EncodeComponent(st.NameRegex))
	}
	if st.DescriptionRegex != "" {
		b.WriteString("&" + ParamDescriptionRegex + "=")
		b.WriteString(EncodeComponent(st.DescriptionRegex))
	}
	return b.String()
}

// DayFragment lists the selected weekday indices in ascending order, each
// followed by a comma ("1,3,"). No selection yields "".
func DayFragment(days model.DaySet) string {
	var b strings.Builder
	for i, on := range days {
		if on {
			b.WriteString(strconv.Itoa(i))
			b.WriteByte(',')
		}
	}
	return b.String()
}
