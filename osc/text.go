package osc

import (
	"encoding/base64"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// The text form of a message is one line: the address pattern followed by
// space separated arguments.
//
//	/cue/1/start "go now" \T #blobQUJD 3.5 12
//
// Strings are double quoted; a quote inside a string is written \". Curly
// quotes are accepted as delimiters too. Blobs are "#blob" followed by
// base64, and \T \F \N \I stand for True, False, Null and Impulse. Any other
// token is a number if it parses as one and an unquoted string otherwise.

const blobPrefix = "#blob"

const (
	straightQuote = '"'
	leftQuote     = '“'
	rightQuote    = '”'
)

// Placeholders from the private use area. They stand in for escaped quotes
// and for whole quoted strings while the line is split on spaces.
const (
	escapedStraight = "\uE001"
	escapedLeft     = "\uE002"
	escapedRight    = "\uE003"
	quotedToken     = "\uE000"

	placeholders = quotedToken + escapedStraight + escapedLeft + escapedRight
)

var (
	escapeQuotes = strings.NewReplacer(
		`\"`, escapedStraight,
		"\\“", escapedLeft,
		"\\”", escapedRight,
	)
	normalizeQuotes = strings.NewReplacer(
		string(leftQuote), string(straightQuote),
		string(rightQuote), string(straightQuote),
	)
	unescapeQuotes = strings.NewReplacer(
		escapedStraight, string(straightQuote),
		escapedLeft, string(leftQuote),
		escapedRight, string(rightQuote),
	)
	quoteForText = strings.NewReplacer(
		string(straightQuote), `\"`,
		string(leftQuote), "\\“",
		string(rightQuote), "\\”",
	)
)

// NumberFormat describes how numbers are written in text lines.
type NumberFormat struct {
	// Decimal separates the integer part from the fraction.
	Decimal rune
	// Grouping separates groups of digits. Zero means no grouping.
	Grouping rune
}

// DefaultNumberFormat reads numbers like 1,234.5.
var DefaultNumberFormat = NumberFormat{Decimal: '.', Grouping: ','}

// ParseLine parses one line of the text form using DefaultNumberFormat.
func ParseLine(line string) *Message {
	return DefaultNumberFormat.ParseLine(line)
}

// ParseLine parses one line of the text form into a message. It returns nil
// if the line is empty or does not start with a legal address. A line whose
// quotes are unbalanced, or whose quoted string touches another token,
// yields a message with no arguments.
func (nf NumberFormat) ParseLine(line string) *Message {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	address, rest, _ := strings.Cut(line, " ")
	if !IsLegalAddress(address) {
		// This is also where bundles ("#bundle ...") end up.
		return nil
	}

	args, ok := nf.parseArguments(strings.TrimSpace(rest))
	if !ok {
		slog.Default().Warn("osc: malformed arguments in text line", "line", line)
		args = nil
	}
	return NewMessage(address, args...)
}

func (nf NumberFormat) parseArguments(s string) ([]any, bool) {
	// Placeholder runes typed by the user would be mistaken for quotes.
	if strings.ContainsAny(s, placeholders) {
		return nil, false
	}
	s = escapeQuotes.Replace(s)
	s = normalizeQuotes.Replace(s)

	parts := strings.Split(s, string(straightQuote))
	if len(parts)%2 == 0 {
		return nil, false
	}

	var quoted []string
	for i := 1; i < len(parts); i += 2 {
		quoted = append(quoted, parts[i])
		s = strings.Replace(s, `"`+parts[i]+`"`, quotedToken, 1)
	}

	var args []any
	for _, token := range strings.Split(s, " ") {
		switch {
		case token == "":
			continue

		case token == quotedToken:
			if len(quoted) == 0 {
				return nil, false
			}
			args = append(args, String(unescapeQuotes.Replace(quoted[0])))
			quoted = quoted[1:]

		case strings.Contains(token, quotedToken):
			return nil, false

		case token == escapedStraight || token == escapedLeft || token == escapedRight:
			args = append(args, String(unescapeQuotes.Replace(token)))

		case strings.HasPrefix(token, blobPrefix):
			encoded := token[len(blobPrefix):]
			if encoded == "" {
				continue
			}
			b, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				slog.Default().Warn("osc: skipping undecodable blob", "token", token, "error", err)
				continue
			}
			args = append(args, Blob(b))

		case token == `\T`:
			args = append(args, True)
		case token == `\F`:
			args = append(args, False)
		case token == `\N`:
			args = append(args, Null)
		case token == `\I`:
			args = append(args, Impulse)

		default:
			if v, ok := nf.parseNumber(token); ok {
				args = append(args, v)
				continue
			}
			args = append(args, String(unescapeQuotes.Replace(token)))
		}
	}
	return args, true
}

// parseNumber reads an integer or a decimal number written in nf. Integers
// that do not fit in 32 bits become floats.
func (nf NumberFormat) parseNumber(token string) (Value, bool) {
	var sb strings.Builder
	digits, integral := 0, true
	for i, r := range token {
		switch {
		case r >= '0' && r <= '9':
			digits++
			sb.WriteRune(r)
		case r == nf.Decimal:
			integral = false
			sb.WriteByte('.')
		case nf.Grouping != 0 && r == nf.Grouping && digits > 0:
		case (r == '-' || r == '+') && i == 0:
			sb.WriteRune(r)
		case r == 'e' || r == 'E':
			if digits == 0 {
				return Value{}, false
			}
			integral = false
			sb.WriteByte('e')
		case (r == '-' || r == '+') && strings.HasSuffix(sb.String(), "e"):
			sb.WriteRune(r)
		default:
			return Value{}, false
		}
	}
	if digits == 0 {
		return Value{}, false
	}

	text := sb.String()
	if integral {
		if i, err := strconv.ParseInt(text, 10, 32); err == nil {
			return Int32(int32(i)), true
		}
	}
	f, err := strconv.ParseFloat(text, 32)
	if err != nil && !math.IsInf(f, 0) {
		return Value{}, false
	}
	return Float32(float32(f)), true
}

// String returns the message in text form. Parsing the result with
// ParseLine gives back an equal message, except that floats are written in
// their shortest form.
func (msg *Message) String() string {
	if msg == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(msg.addressPattern)
	for _, arg := range msg.arguments {
		sb.WriteByte(' ')
		switch arg.kind {
		case KindString:
			sb.WriteByte(straightQuote)
			sb.WriteString(quoteForText.Replace(arg.s))
			sb.WriteByte(straightQuote)
		case KindInt32:
			sb.WriteString(strconv.FormatInt(int64(arg.i), 10))
		case KindFloat32:
			sb.WriteString(formatFloat(arg.f))
		case KindBlob:
			sb.WriteString(blobPrefix)
			sb.WriteString(base64.StdEncoding.EncodeToString(arg.b))
		case KindTrue:
			sb.WriteString(`\T`)
		case KindFalse:
			sb.WriteString(`\F`)
		case KindNull:
			sb.WriteString(`\N`)
		case KindImpulse:
			sb.WriteString(`\I`)
		}
	}
	return sb.String()
}

// formatFloat writes f so that it reads back as a float, not an integer.
func formatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}
