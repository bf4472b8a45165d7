package form

import (
	"errors"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"icalfilter/internal/filterurl"
	"icalfilter/internal/model"
)

// ErrMissingHost is returned when the root element has no data-host.
var ErrMissingHost = errors.New("form: root element has no " + HostAttr + " attribute")

// ResultLabel prefixes the rendered link.
const ResultLabel = "Your custom Url: "

var (
	resultPolicyOnce sync.Once
	resultPolicy     *bluemonday.Policy
)

// ReadSnapshot takes an immutable snapshot of the form. The calendar URL
// input and all seven day checkboxes are required; the regex inputs are
// optional and read as empty when absent.
func ReadSnapshot(d *Document) (string, model.FormState, error) {
	var st model.FormState

	host, ok := d.RootAttr(HostAttr)
	if !ok {
		return "", st, ErrMissingHost
	}

	cal, ok := d.Element(IDCalendarURL)
	if !ok {
		return "", st, &MissingElementError{ID: IDCalendarURL}
	}
	st.CalendarURL = cal.Value

	for i := 0; i < model.DaysPerWeek; i++ {
		el, ok := d.Element(DayID(i))
		if !ok {
			return "", st, &MissingElementError{ID: DayID(i)}
		}
		st.Days[i] = el.Checked
	}

	if el, ok := d.Element(IDNameRegex); ok {
		st.NameRegex = el.Value
	}
	if el, ok := d.Element(IDDescriptionRegex); ok {
		st.DescriptionRegex = el.Value
	}

	return host, st, nil
}

// Apply runs the build action against d: snapshot the inputs, derive the
// URL and replace the result container content with a link to it.
func Apply(d *Document) (string, error) {
	host, st, err := ReadSnapshot(d)
	if err != nil {
		return "", err
	}

	u := filterurl.Build(host, st)
	if err := d.SetInnerHTML(IDResult, RenderResult(u)); err != nil {
		return "", err
	}
	return u, nil
}

// RenderResult returns the result container markup for u: the label and a
// link whose text and href are both u. The host is not validated, so any
// URL keeps its link except one with a script-capable scheme, which is
// shown as plain text.
func RenderResult(u string) string {
	esc := html.EscapeString(u)
	raw := ResultLabel + `<a href="` + esc + `">` + esc + `</a>`
	if !safeHref(u) {
		raw = ResultLabel + esc
	}
	return strings.TrimSpace(resultSanitizer().Sanitize(raw))
}

// scriptSchemes are dropped from href values.
var scriptSchemes = []string{"javascript:", "vbscript:", "data:"}

func safeHref(v string) bool {
	v = strings.ToLower(strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, v))
	for _, s := range scriptSchemes {
		if strings.HasPrefix(v, s) {
			return false
		}
	}
	return true
}

func resultSanitizer() *bluemonday.Policy {
	resultPolicyOnce.Do(func() {
		policy := bluemonday.NewPolicy()
		policy.AllowElements("a")
		policy.AllowAttrs("href").OnElements("a")
		resultPolicy = policy
	})
	return resultPolicy
}
