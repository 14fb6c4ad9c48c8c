// Package calendar converts tasks to and from iCalendar (RFC 5545) so the
// planner can be subscribed to from, or seeded by, ordinary calendar apps.
package calendar

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/chepyr/calendar-planner/internal/tasks"
	"github.com/chepyr/calendar-planner/shared"
	"github.com/chepyr/calendar-planner/shared/models"
)

const (
	productID     = "-//calendar-planner//tasks//EN"
	eventDuration = time.Hour
	utcLayout     = "20060102T150405Z"
)

// property names not every library version has a constant for
const (
	propCompleted     = ical.ComponentProperty("COMPLETED")
	propPercentDone   = ical.ComponentProperty("PERCENT-COMPLETE")
	statusConfirmed   = "CONFIRMED"
	uidSuffix         = "@planner"
	uidPrefix         = "task-"
	maxImportedEvents = 1000
)

func UID(id int64) string {
	return uidPrefix + strconv.FormatInt(id, 10) + uidSuffix
}

// Export renders tasks as a VCALENDAR with one VEVENT per task.
func Export(list []models.Task, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, task := range list {
		event := cal.AddEvent(UID(task.ID))
		event.SetDtStampTime(stamp)
		event.SetSummary(task.Title)
		if task.Description != "" {
			event.SetDescription(task.Description)
		}
		event.SetStartAt(task.CreatedDate)
		event.SetEndAt(task.CreatedDate.Add(eventDuration))
		event.SetProperty(ical.ComponentPropertyStatus, statusConfirmed)
		if task.IsCompleted && task.CompletedDate != nil {
			event.SetProperty(propCompleted, task.CompletedDate.UTC().Format(utcLayout))
			event.SetProperty(propPercentDone, "100")
		}
	}
	return cal.Serialize()
}

// Parse reads a calendar body into task drafts. Events without a SUMMARY
// are skipped; a missing DTSTART leaves CreatedDate zero. Zone-less
// DTSTART values are read in loc.
func Parse(r io.Reader, loc *time.Location) ([]tasks.CreateInput, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid calendar: %v", shared.ErrValidation, err)
	}

	events := cal.Events()
	if len(events) > maxImportedEvents {
		return nil, fmt.Errorf("%w: too many events (max %d)", shared.ErrValidation, maxImportedEvents)
	}

	drafts := make([]tasks.CreateInput, 0, len(events))
	for _, ve := range events {
		summary := ve.GetProperty(ical.ComponentPropertySummary)
		if summary == nil || strings.TrimSpace(summary.Value) == "" {
			continue
		}
		draft := tasks.CreateInput{Title: unescape(summary.Value)}
		if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
			draft.Description = unescape(p.Value)
		}
		start, err := startOf(ve, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: event %q: %v", shared.ErrValidation, draft.Title, err)
		}
		draft.CreatedDate = start
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func startOf(ve *ical.VEvent, loc *time.Location) (time.Time, error) {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil || prop.Value == "" {
		return time.Time{}, nil
	}
	if tz, ok := prop.ICalParameters["TZID"]; ok && len(tz) > 0 {
		return ve.GetStartAt()
	}
	return parseValue(prop.Value, loc)
}

func parseValue(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse(utcLayout, v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	case v != "":
		return time.ParseInLocation("20060102", v, loc)
	}
	return time.Time{}, errors.New("empty DTSTART")
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

// the parser leaves TEXT escapes in place
func unescape(s string) string {
	return textUnescaper.Replace(s)
}
