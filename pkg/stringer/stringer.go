package stringer

import (
  "regexp"
  "strings"
  "unicode"

  "github.com/microcosm-cc/bluemonday"
  "golang.org/x/net/html"
  "golang.org/x/text/cases"
  "golang.org/x/text/language"
)

var (
  spacesRegex = regexp.MustCompile(`\s+`)
  sanitizer   = bluemonday.StrictPolicy()
)

// Digits drops everything but decimal digits.
func Digits(s string) string {
  var sb strings.Builder
  for _, r := range s {
    if unicode.IsDigit(r) {
      sb.WriteRune(r)
    }
  }
  return sb.String()
}

// SanitizeString strips markup and squeezes whitespace in user input.
// Entities left behind by the stripped markup are unescaped back to
// plain text.
func SanitizeString(s string) string {
  s = sanitizer.Sanitize(s)
  s = html.UnescapeString(s)
  s = spacesRegex.ReplaceAllString(s, " ")
  return strings.TrimSpace(s)
}

func ToTitle(s string) string {
  return cases.Title(language.Russian).String(s)
}

func Truncate(s string, limit int) string {
  runes := []rune(s)
  if len(runes) <= limit {
    return s
  }
  return string(runes[:limit])
}
