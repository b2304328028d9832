package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-ical"
	"github.com/punchamoorthee/irrigationcal/internal/models"
)

const (
	productID = "-//irrigationcal//Irrigation Schedule Gateway//EN"

	multiAccountCalendarName = "Irrigation - Multiple Accounts"

	// Relative alarm triggers, before DTSTART.
	displayAlarmTrigger = "-PT5M"
	audioAlarmTrigger   = "-PT1S"
	defaultAlarmSound   = "Basso"
)

// CalendarName is "Irrigation {name}" for one account and a fixed label for
// several.
func CalendarName(results []models.FetchResult) string {
	if len(results) > 1 {
		return multiAccountCalendarName
	}
	if len(results) == 1 {
		return "Irrigation " + results[0].Account.Name
	}
	return "Irrigation"
}

// Calendar builds one VEVENT per successful result. Failed results are left
// out without any marker.
func Calendar(results []models.FetchResult, sourceURL string, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	name := CalendarName(results)
	cal.Props.SetText(ical.PropName, name)
	cal.Props.SetText("X-WR-CALNAME", name)
	if sourceURL != "" {
		src := ical.NewProp(ical.PropURL)
		src.Value = sourceURL
		cal.Props.Set(src)
	}

	for _, r := range results {
		sched, err := r.Outcome.Get()
		if err != nil {
			continue
		}
		cal.Children = append(cal.Children, scheduleEvent(r, sched, now).Component)
	}
	return cal
}

func scheduleEvent(r models.FetchResult, sched models.Schedule, now time.Time) *ical.Event {
	snap := sched.Snapshot
	summary := fmt.Sprintf("Irrigation - %s: %s", r.Account.Name, snap.OrderStatus)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, snap.ID+"-"+r.Account.ID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetText(ical.PropSummary, summary)
	event.Props.SetText(ical.PropDescription, snap.IrrigationNotice+"\nUpdated: "+now.Format(time.RFC1123))
	event.Props.SetText(ical.PropLocation, snap.Detail.Address)
	event.Props.SetDateTime(ical.PropDateTimeStart, sched.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, sched.End.UTC())

	event.Children = append(event.Children,
		relativeAlarm("DISPLAY", displayAlarmTrigger, summary),
		relativeAlarm("AUDIO", audioAlarmTrigger, ""),
	)

	// The closing alarm fires at the absolute end time, not ahead of it.
	end, err := event.DateTimeEnd(time.UTC)
	if err == nil {
		event.Children = append(event.Children, absoluteAlarm("AUDIO", end))
	}
	return event
}

func relativeAlarm(action, trigger, description string) *ical.Component {
	alarm := newAlarm(action, description)
	prop := ical.NewProp(ical.PropTrigger)
	prop.Value = trigger
	alarm.Props.Set(prop)
	return alarm
}

func absoluteAlarm(action string, at time.Time) *ical.Component {
	alarm := newAlarm(action, "")
	prop := ical.NewProp(ical.PropTrigger)
	prop.SetDateTime(at.UTC())
	prop.Params.Set(ical.ParamValue, string(ical.ValueDateTime))
	alarm.Props.Set(prop)
	return alarm
}

func newAlarm(action, description string) *ical.Component {
	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, action)
	switch action {
	case "DISPLAY":
		alarm.Props.SetText(ical.PropDescription, description)
	case "AUDIO":
		attach := ical.NewProp(ical.PropAttach)
		attach.Value = defaultAlarmSound
		attach.Params.Set(ical.ParamValue, string(ical.ValueURI))
		alarm.Props.Set(attach)
	}
	return alarm
}

// EncodeCalendar writes the calendar in its canonical text form. A calendar
// without components is still a valid feed; go-ical refuses to encode one, so
// that case is written directly.
func EncodeCalendar(w io.Writer, cal *ical.Calendar) error {
	if len(cal.Children) == 0 {
		return encodeEmptyCalendar(w, cal)
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func encodeEmptyCalendar(w io.Writer, cal *ical.Calendar) error {
	names := make([]string, 0, len(cal.Props))
	for name := range cal.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("BEGIN:" + ical.CompCalendar + "\r\n")
	for _, name := range names {
		for _, prop := range cal.Props[name] {
			b.WriteString(foldLine(contentLine(prop)))
		}
	}
	b.WriteString("END:" + ical.CompCalendar + "\r\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func contentLine(prop ical.Prop) string {
	var b strings.Builder
	b.WriteString(prop.Name)
	params := make([]string, 0, len(prop.Params))
	for k := range prop.Params {
		params = append(params, k)
	}
	sort.Strings(params)
	for _, k := range params {
		b.WriteString(";" + k + "=" + strings.Join(prop.Params[k], ","))
	}
	b.WriteString(":" + prop.Value)
	return b.String()
}

// foldLine splits a content line at 75 octets per RFC 5545 3.1, never inside
// a UTF-8 sequence.
func foldLine(line string) string {
	const limit = 75
	var b strings.Builder
	width := limit
	for len(line) > width {
		cut := width
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut] + "\r\n ")
		line = line[cut:]
		width = limit - 1
	}
	b.WriteString(line + "\r\n")
	return b.String()
}
