package core

import (
	"net/url"
	"regexp"

	"github.com/cockroachdb/errors"
)

// Identifier grammars, checked before any network call so malformed
// input never reaches a provider.
var (
	// Google event ids: lowercase base32hex, 5-1024 chars. Written as
	// two bounded repeats because Go's regexp caps a single repeat
	// count at 1000.
	googleEventIDRe = regexp.MustCompile(`^[a-v0-9]{5,1000}[a-v0-9]{0,24}$`)
	// Google calendar ids: "primary", an email address, or a group
	// calendar address. No whitespace, one optional @.
	googleCalendarIDRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+(@[A-Za-z0-9.-]+)?$`)
	// Graph ids are base64url-flavored, often with '=' padding.
	outlookIDRe = regexp.MustCompile(`^[A-Za-z0-9_=-]+$`)
)

// ValidateCalendarID rejects calendar ids that do not fit the
// provider's grammar.
func ValidateCalendarID(p Provider, id string) error {
	if id == "" {
		return errors.Mark(errors.New("calendar id is empty"), ErrValidation)
	}
	switch p {
	case ProviderGoogle:
		if !googleCalendarIDRe.MatchString(id) {
			return errors.Mark(errors.Newf("calendar id %q is not a valid Google calendar id", id), ErrValidation)
		}
	case ProviderOutlook:
		if !outlookIDRe.MatchString(id) {
			return errors.Mark(errors.Newf("calendar id %q is not a valid Outlook calendar id", id), ErrValidation)
		}
	default:
		return errors.Mark(errors.Newf("unknown provider %q", p), ErrValidation)
	}
	return nil
}

// ValidateEventID rejects event ids that do not fit the provider's
// grammar.
func ValidateEventID(p Provider, id string) error {
	if id == "" {
		return errors.Mark(errors.New("event id is empty"), ErrValidation)
	}
	switch p {
	case ProviderGoogle:
		if !googleEventIDRe.MatchString(id) {
			return errors.Mark(errors.Newf("event id %q is not a valid Google event id", id), ErrValidation)
		}
	case ProviderOutlook:
		if !outlookIDRe.MatchString(id) {
			return errors.Mark(errors.Newf("event id %q is not a valid Outlook event id", id), ErrValidation)
		}
	default:
		return errors.Mark(errors.Newf("unknown provider %q", p), ErrValidation)
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "parse url %q", raw), ErrValidation)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Mark(errors.Newf("url %q must be http or https", raw), ErrValidation)
	}
	if u.Host == "" {
		return errors.Mark(errors.Newf("url %q has no host", raw), ErrValidation)
	}
	return nil
}

// ValidateDraft checks an event draft before it is translated into a
// provider request.
func ValidateDraft(p Provider, d EventDraft) error {
	if err := ValidateCalendarID(p, d.CalendarID); err != nil {
		return err
	}
	if d.Title == "" {
		return errors.Mark(errors.New("event title is empty"), ErrValidation)
	}
	if d.AllDay() {
		if d.EndDate == "" {
			return errors.Mark(errors.New("all-day event needs both start and end dates"), ErrValidation)
		}
		if _, err := ParseDate(d.StartDate); err != nil {
			return errors.Mark(errors.Wrap(err, "start date"), ErrValidation)
		}
		if _, err := ParseDate(d.EndDate); err != nil {
			return errors.Mark(errors.Wrap(err, "end date"), ErrValidation)
		}
		return nil
	}
	if d.Start.IsZero() || d.End.IsZero() {
		return errors.Mark(errors.New("timed event needs both start and end"), ErrValidation)
	}
	if !d.End.After(d.Start) {
		return errors.Mark(errors.New("event end must be after start"), ErrValidation)
	}
	return nil
}

// ValidatePatch checks an event patch before it is translated into a
// provider request.
func ValidatePatch(p Provider, patch EventPatch) error {
	if err := ValidateCalendarID(p, patch.CalendarID); err != nil {
		return err
	}
	if err := ValidateEventID(p, patch.EventID); err != nil {
		return err
	}
	if patch.StartDate != nil || patch.EndDate != nil {
		if patch.StartDate == nil || patch.EndDate == nil {
			return errors.Mark(errors.New("all-day patch needs both start and end dates"), ErrValidation)
		}
		if _, err := ParseDate(*patch.StartDate); err != nil {
			return errors.Mark(errors.Wrap(err, "start date"), ErrValidation)
		}
		if _, err := ParseDate(*patch.EndDate); err != nil {
			return errors.Mark(errors.Wrap(err, "end date"), ErrValidation)
		}
	}
	if patch.Start != nil || patch.End != nil {
		if patch.Start == nil || patch.End == nil {
			return errors.Mark(errors.New("timed patch needs both start and end"), ErrValidation)
		}
		if !patch.End.After(*patch.Start) {
			return errors.Mark(errors.New("event end must be after start"), ErrValidation)
		}
	}
	if (patch.Start != nil) && (patch.StartDate != nil) {
		return errors.Mark(errors.New("patch cannot set both timed and all-day timing"), ErrValidation)
	}
	return nil
}
