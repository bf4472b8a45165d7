// Package form is the boundary between a rendered filter form and the pure
// URL builder. A Document models the handful of page elements the build
// action touches; readers construct one from a submitted request or from
// page markup.
package form

import (
	"fmt"
	"net/url"
	"strconv"

	"icalfilter/internal/model"
)

// Element ids and attributes of the form page.
const (
	HostAttr = "data-host"

	IDCalendarURL       = "ical-url"
	IDNameRegex         = "name-regex"
	IDDescriptionRegex  = "description-regex"
	IDResult            = "custom-url"
	dayIDPrefix         = "day-"
	defaultCheckedValue = "on"
)

// DayID returns the checkbox id for weekday index i ("day-3").
func DayID(i int) string {
	return dayIDPrefix + strconv.Itoa(i)
}

// InputIDs lists every input id the build action reads.
func InputIDs() []string {
	ids := []string{IDCalendarURL}
	for i := 0; i < model.DaysPerWeek; i++ {
		ids = append(ids, DayID(i))
	}
	return append(ids, IDNameRegex, IDDescriptionRegex)
}

// Element is the state of one input.
type Element struct {
	Value   string
	Checked bool
}

// Document holds the root element attributes, inputs by id and the markup
// written into containers.
type Document struct {
	root       map[string]string
	elements   map[string]Element
	containers map[string]string
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		root:       map[string]string{},
		elements:   map[string]Element{},
		containers: map[string]string{},
	}
}

// SetRootAttr sets an attribute on the root element.
func (d *Document) SetRootAttr(name, value string) {
	d.root[name] = value
}

// RootAttr returns an attribute of the root element.
func (d *Document) RootAttr(name string) (string, bool) {
	v, ok := d.root[name]
	return v, ok
}

// SetElement adds or replaces an input.
func (d *Document) SetElement(id string, el Element) {
	d.elements[id] = el
}

// Element looks up an input by id.
func (d *Document) Element(id string) (Element, bool) {
	el, ok := d.elements[id]
	return el, ok
}

// AddContainer declares an output container with empty content.
func (d *Document) AddContainer(id string) {
	if _, ok := d.containers[id]; !ok {
		d.containers[id] = ""
	}
}

// SetInnerHTML replaces the content of a declared container.
func (d *Document) SetInnerHTML(id, html string) error {
	if _, ok := d.containers[id]; !ok {
		return &MissingElementError{ID: id}
	}
	d.containers[id] = html
	return nil
}

// InnerHTML returns the current content of a container.
func (d *Document) InnerHTML(id string) (string, bool) {
	v, ok := d.containers[id]
	return v, ok
}

// FromValues builds the document for a submitted form. Every input of the
// form page exists; browsers omit unchecked checkboxes, so a day is checked
// iff its key was sent with a non-empty value.
func FromValues(host string, v url.Values) *Document {
	d := NewDocument()
	d.SetRootAttr(HostAttr, host)
	d.AddContainer(IDResult)

	d.SetElement(IDCalendarURL, Element{Value: v.Get(IDCalendarURL)})
	d.SetElement(IDNameRegex, Element{Value: v.Get(IDNameRegex)})
	d.SetElement(IDDescriptionRegex, Element{Value: v.Get(IDDescriptionRegex)})
	for i := 0; i < model.DaysPerWeek; i++ {
		id := DayID(i)
		val := v.Get(id)
		d.SetElement(id, Element{Value: val, Checked: val != ""})
	}
	return d
}

// FromState builds the document a user would produce by filling the form
// with st on a page served for host.
func FromState(host string, st model.FormState) *Document {
	v := url.Values{}
	v.Set(IDCalendarURL, st.CalendarURL)
	v.Set(IDNameRegex, st.NameRegex)
	v.Set(IDDescriptionRegex, st.DescriptionRegex)
	for _, i := range st.Days.Selected() {
		v.Set(DayID(i), defaultCheckedValue)
	}
	return FromValues(host, v)
}

// MissingElementError reports a required element absent from the document.
type MissingElementError struct {
	ID string
}

func (e *MissingElementError) Error() string {
	return fmt.Sprintf("form: element %q not found", e.ID)
}
