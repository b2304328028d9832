package render

import (
	"time"

	"golang.org/x/text/language"
)

// Layouts for the "next irrigation date" line, keyed by the tags the page
// can be served in. The first tag is the fallback.
var dateLocales = []struct {
	tag    language.Tag
	layout string
}{
	{language.AmericanEnglish, "1/2/2006, 3:04:05 PM"},
	{language.BritishEnglish, "02/01/2006, 15:04:05"},
	{language.German, "2.1.2006, 15:04:05"},
	{language.French, "02/01/2006 15:04:05"},
	{language.Spanish, "2/1/2006, 15:04:05"},
}

var dateMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(dateLocales))
	for i, l := range dateLocales {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// DateLayout picks a time layout for an Accept-Language header value.
func DateLayout(acceptLanguage string) string {
	_, idx := language.MatchStrings(dateMatcher, acceptLanguage)
	return dateLocales[idx].layout
}

// FormatLocalDate renders t in its own offset using the caller's locale.
func FormatLocalDate(t time.Time, acceptLanguage string) string {
	return t.Format(DateLayout(acceptLanguage))
}
