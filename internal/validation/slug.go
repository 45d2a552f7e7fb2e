package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinSlugLength      = 2
	MaxSlugLength      = 50
	MinSubdomainLength = 3
	MaxSubdomainLength = 63
)

var (
	slugRegex     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugCharset   = regexp.MustCompile(`^[a-z0-9-]+$`)
	slugStrip     = regexp.MustCompile(`[^a-z0-9\s-]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	hyphenRun     = regexp.MustCompile(`-+`)
	slugReplacer  = strings.NewReplacer("&", "y", "ñ", "n")
)

// ReservedSlugs cannot be used as entity slugs because they collide with routes
var ReservedSlugs = []string{
	"admin", "api", "app", "assets", "auth", "courses", "create", "dashboard",
	"delete", "edit", "forums", "help", "login", "logout", "modules", "new",
	"public", "register", "settings", "signup", "static", "support", "tenants",
	"uploads", "users",
}

// ReservedSubdomains cannot be claimed by a tenant
var ReservedSubdomains = []string{
	"admin", "api", "app", "assets", "auth", "cdn", "dev", "docs", "ftp",
	"mail", "smtp", "staging", "static", "status", "support", "test", "www",
}

// GenerateSlug turns a display name into a URL-safe slug.
// The result is empty or matches ^[a-z0-9]+(-[a-z0-9]+)*$ and is at most
// MaxSlugLength characters, cut at a word boundary when possible.
func GenerateSlug(name string) string {
	if name == "" {
		return ""
	}

	s := strings.ToLower(name)
	s = strings.Map(blankSpace, s)
	s = strings.TrimSpace(s)
	s = stripDiacritics(s)
	s = slugReplacer.Replace(s)
	s = slugStrip.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	return truncateSlug(s)
}

// blankSpace folds every Unicode space, NBSP and \v included, into ' ' so it
// separates words instead of being stripped as punctuation
func blankSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return r
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// truncateSlug only sees ASCII input, so byte length equals rune length
func truncateSlug(s string) string {
	if len(s) <= MaxSlugLength {
		return s
	}
	cut := s[:MaxSlugLength]
	if s[MaxSlugLength] != '-' {
		if i := strings.LastIndexByte(cut, '-'); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.Trim(cut, "-")
}

// IsCanonicalSlug reports whether s has the exact shape GenerateSlug produces
func IsCanonicalSlug(s string) bool {
	return slugRegex.MatchString(s)
}

// ValidateSlug checks a slug, typed by hand or generated. extraReserved
// extends ReservedSlugs, e.g. with tenant specific words.
func ValidateSlug(slug string, extraReserved ...string) *Violation {
	return checkIdentifier("slug", slug, MinSlugLength, MaxSlugLength, CodeSlug, ReservedSlugs, extraReserved)
}

// ValidateSubdomain checks a tenant subdomain
func ValidateSubdomain(sub string, extraReserved ...string) *Violation {
	return checkIdentifier("subdomain", sub, MinSubdomainLength, MaxSubdomainLength, CodeSubdomain, ReservedSubdomains, extraReserved)
}

func checkIdentifier(label, s string, min, max int, code string, reserved, extra []string) *Violation {
	n := utf8.RuneCountInString(s)
	if n < min {
		return violation(CodeMinLength, "%s must be at least %d characters", label, min)
	}
	if n > max {
		return violation(CodeMaxLength, "%s must be at most %d characters", label, max)
	}
	if !slugCharset.MatchString(s) {
		return violation(code, "%s may only contain lowercase letters, numbers and hyphens", label)
	}
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return violation(code, "%s cannot start or end with a hyphen", label)
	}
	if strings.Contains(s, "--") {
		return violation(code, "%s cannot contain consecutive hyphens", label)
	}
	return NotReserved(label, s, reserved, extra)
}
