package lists

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	nonDigits    = regexp.MustCompile(`[^0-9]`)
	userIDShape  = regexp.MustCompile(`^\d{5,11}$`)
	nameStripper = regexp.MustCompile(`[^\x{4e00}-\x{9fa5}a-zA-Z\s]`)
	splitter     = regexp.MustCompile(`[,\s\n]+`)
)

// CleanUserID strips everything but digits and accepts account numbers of 5
// to 11 digits.
func CleanUserID(input string) (string, bool) {
	cleaned := nonDigits.ReplaceAllString(input, "")
	if !userIDShape.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}

// CleanName strips everything but CJK ideographs, latin letters and spaces,
// then accepts names of 2 to 10 characters.
func CleanName(input string) (string, bool) {
	cleaned := strings.TrimSpace(nameStripper.ReplaceAllString(input, ""))
	n := utf8.RuneCountInString(cleaned)
	if n < 2 || n > 10 {
		return "", false
	}
	return cleaned, true
}

// SplitMembers splits operator input on commas, spaces and newlines.
func SplitMembers(input string) []string {
	var out []string
	for _, part := range splitter.Split(input, -1) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CleanKeyword trims surrounding whitespace; any non-empty keyword is valid.
func CleanKeyword(input string) (string, bool) {
	cleaned := strings.TrimSpace(input)
	return cleaned, cleaned != ""
}

func cleanFor(kind Kind, raw string) (string, bool) {
	switch kind {
	case KindNameWhitelist:
		return CleanName(raw)
	case KindApprovalKeywords, KindRejectionKeywords:
		return CleanKeyword(raw)
	default:
		return CleanUserID(raw)
	}
}

// CleanAll cleans raw entries for the kind and drops the ones that fail
// validation.
func CleanAll(kind Kind, raw []string) []string {
	var out []string
	for _, entry := range raw {
		if cleaned, ok := cleanFor(kind, entry); ok {
			out = append(out, cleaned)
		}
	}
	return out
}

// BulkAdd cleans and validates the raw members for the given kind, then adds
// them one at a time so the report can tell fresh additions from members that
// were already present. Entries that fail validation are reported, not
// rejected wholesale.
func BulkAdd(ctx context.Context, src Source, kind Kind, groupID string, raw []string) (BulkReport, error) {
	var report BulkReport
	seen := make(map[string]struct{})

	for _, entry := range raw {
		cleaned, ok := cleanFor(kind, entry)
		if !ok {
			report.Invalid = append(report.Invalid, entry)
			continue
		}
		if _, dup := seen[cleaned]; dup {
			report.Duplicates = append(report.Duplicates, cleaned)
			continue
		}
		seen[cleaned] = struct{}{}

		added, err := src.Add(ctx, kind, groupID, cleaned)
		if err != nil {
			return report, err
		}
		if added == 0 {
			report.Duplicates = append(report.Duplicates, cleaned)
		} else {
			report.Added = append(report.Added, cleaned)
		}
	}
	return report, nil
}
