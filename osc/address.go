package osc

import (
	"log/slog"
	"regexp"
	"strings"
)

////
// Legal characters
////

// Method names are printable ASCII except space and the characters OSC
// reserves: # * , / ? [ ] { }
var legalMethodChars, legalComponentChars, legalAddressChars = func() (m, c, a [128]bool) {
	for r := '!'; r <= '~'; r++ {
		m[r] = !strings.ContainsRune("#*,/?[]{}", r)
	}
	c = m
	for _, r := range "*?,[]{}" {
		c[r] = true
	}
	a = c
	a['/'] = true
	return m, c, a
}()

// methodClass is a regexp character class matching one legal method
// character.
var methodClass = func() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for r, ok := range legalMethodChars {
		if !ok {
			continue
		}
		if !isAlnum(byte(r)) {
			sb.WriteByte('\\')
		}
		sb.WriteByte(byte(r))
	}
	sb.WriteByte(']')
	return sb.String()
}()

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func allIn(s string, set *[128]bool) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] >= 128 || !set[s[i]] {
			return false
		}
	}
	return true
}

// IsLegalAddressComponent reports whether s may appear between two slashes
// of an address pattern. Wildcard characters are allowed.
func IsLegalAddressComponent(s string) bool {
	return allIn(s, &legalComponentChars)
}

// IsLegalAddress reports whether s is a legal OSC address pattern: non-empty,
// beginning with '/', and made of legal characters.
func IsLegalAddress(s string) bool {
	return strings.HasPrefix(s, "/") && allIn(s, &legalAddressChars)
}

// IsLegalMethod reports whether s is a legal method name, that is an address
// component with no wildcard characters.
func IsLegalMethod(s string) bool {
	return allIn(s, &legalMethodChars)
}

////
// Pattern matching
////

// Pattern is a compiled OSC address pattern. A Pattern only matches whole
// strings.
type Pattern struct {
	src string
	re  *regexp.Regexp
}

// CompilePattern translates the OSC wildcards in pattern ('*', '?', "[...]",
// "[!...]" and "{a,b}") into a matcher. It returns nil if the brackets or
// braces are unbalanced or the translation does not compile.
func CompilePattern(pattern string) *Pattern {
	if strings.Count(pattern, "[") != strings.Count(pattern, "]") ||
		strings.Count(pattern, "{") != strings.Count(pattern, "}") {
		slog.Default().Warn("osc: unbalanced address pattern", "pattern", pattern)
		return nil
	}

	expr := patternToRegexp(pattern)
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		slog.Default().Warn("osc: address pattern does not compile", "pattern", pattern, "error", err)
		return nil
	}
	return &Pattern{src: pattern, re: re}
}

// Match reports whether the whole of address matches the pattern.
func (p *Pattern) Match(address string) bool {
	return p.re.MatchString(address)
}

// MatchMessage reports whether the address pattern of m matches.
func (p *Pattern) MatchMessage(m *Message) bool {
	return m != nil && p.Match(m.AddressPattern())
}

// String returns the OSC pattern p was compiled from.
func (p *Pattern) String() string {
	return p.src
}

// patternToRegexp rewrites an OSC pattern as a regular expression in one
// pass over the pattern, so a backslash is always a literal character.
// Wildcards inside a bracket class are literal too.
func patternToRegexp(pattern string) string {
	var sb strings.Builder
	depth, inClass := 0, false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		// Characters special to regexp but not to OSC.
		case strings.IndexByte(`\+-()^$|.`, c) >= 0:
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case inClass:
			if c == ']' {
				inClass = false
			} else if strings.IndexByte("*?{}", c) >= 0 {
				sb.WriteByte('\\')
			}
			sb.WriteByte(c)
		case c == '[':
			inClass = true
			sb.WriteByte('[')
			if i+1 < len(pattern) && pattern[i+1] == '!' {
				sb.WriteByte('^')
				i++
			}
		case c == '*':
			sb.WriteString(methodClass + "*")
		case c == '?':
			sb.WriteString(methodClass)
		case c == '{':
			depth++
			sb.WriteString("(?:")
		case c == '}':
			depth--
			sb.WriteByte(')')
		case c == ',' && depth > 0:
			sb.WriteByte('|')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
