package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	dueTagRe      = regexp.MustCompile(`#due:(\d{4}-\d{2}-\d{2})`)
	doTagRe       = regexp.MustCompile(`#do:(\d{4}-\d{2}-\d{2})`)
	repeatTagRe   = regexp.MustCompile(`#repeat:(daily|weekly|monthly)`)
	doubleSpaceRe = regexp.MustCompile(`  +`)
)

// TagFields holds the structured values carried by inline tags.
type TagFields struct {
	DueDate         string
	ScheduledDate   string
	RepeatFrequency Frequency
}

// ExtractTags pulls recognized inline tags out of raw task text and returns
// the stripped content alongside the structured values. Each tag kind is
// captured at most once (the first occurrence); duplicates are tolerated here
// and rejected by ValidateContent at the mutation boundary. A tag whose date
// matches the YYYY-MM-DD shape but is not a real calendar date fails with
// ErrMalformedDate; text that never matches a tag shape is left alone.
func ExtractTags(text string) (string, TagFields, error) {
	var f TagFields
	out := text

	if m := doTagRe.FindStringSubmatch(out); m != nil {
		if err := ValidateDate(m[1]); err != nil {
			return "", TagFields{}, err
		}
		f.ScheduledDate = m[1]
		out = strings.Replace(out, m[0], "", 1)
	}
	if m := dueTagRe.FindStringSubmatch(out); m != nil {
		if err := ValidateDate(m[1]); err != nil {
			return "", TagFields{}, err
		}
		f.DueDate = m[1]
		out = strings.Replace(out, m[0], "", 1)
	}
	if m := repeatTagRe.FindStringSubmatch(out); m != nil {
		f.RepeatFrequency = Frequency(m[1])
		out = strings.Replace(out, m[0], "", 1)
	}

	out = doubleSpaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out), f, nil
}

// ComposeTags is the exact inverse of ExtractTags: it appends tags to content
// in a fixed order (#do: before #due: before #repeat:), separated by single
// spaces, omitting absent fields. The custom frequency has no inline form and
// is never emitted.
func ComposeTags(content string, f TagFields) string {
	var b strings.Builder
	b.WriteString(content)
	if f.ScheduledDate != "" {
		b.WriteString(" #do:" + f.ScheduledDate)
	}
	if f.DueDate != "" {
		b.WriteString(" #due:" + f.DueDate)
	}
	if f.RepeatFrequency != "" && f.RepeatFrequency != FreqCustom {
		b.WriteString(" #repeat:" + string(f.RepeatFrequency))
	}
	return strings.TrimSpace(b.String())
}

// ValidateContent rejects task text carrying more than one tag of the same
// kind. The extractor itself is tolerant; callers that commit mutations run
// this first so multi-tag content never reaches a stored tree.
func ValidateContent(text string) error {
	if len(dueTagRe.FindAllString(text, 2)) > 1 {
		return fmt.Errorf("%w: content cannot contain multiple #due: tags", ErrInvalid)
	}
	if len(doTagRe.FindAllString(text, 2)) > 1 {
		return fmt.Errorf("%w: content cannot contain multiple #do: tags", ErrInvalid)
	}
	if len(repeatTagRe.FindAllString(text, 2)) > 1 {
		return fmt.Errorf("%w: content cannot contain multiple #repeat: tags", ErrInvalid)
	}
	return nil
}

// ValidateDate checks that s is a real calendar date in YYYY-MM-DD form.
// time.Parse rejects out-of-range months and days, leap years included.
func ValidateDate(s string) error {
	if len(s) != len(DateLayout) {
		return fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrMalformedDate, s)
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%w: %q is not a valid calendar date", ErrMalformedDate, s)
	}
	return nil
}
