package attribute

import (
	"math"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/pbnjay/strptime"

	"github.com/swift-fca/swift/internal/fcaerr"
)

// DefaultDateFormat is the ISO layout used when a date attribute names none
const DefaultDateFormat = "%Y-%m-%dT%H:%M:%S"

var dateDirectives = map[byte]bool{
	'Y': true, 'y': true, 'm': true, 'd': true, 'H': true, 'M': true,
	'S': true, 'f': true, 'b': true, 'B': true, 'j': true, '%': true,
}

// CheckDateFormat rejects layouts with directives that cannot be parsed
func CheckDateFormat(layout string) error {
	if layout == "" {
		return fcaerr.NewDateSyntaxError(layout, "empty date format")
	}
	for i := 0; i < len(layout); i++ {
		if layout[i] != '%' {
			continue
		}
		if i+1 >= len(layout) {
			return fcaerr.NewDateSyntaxError(layout, "dangling %")
		}
		if !dateDirectives[layout[i+1]] {
			return fcaerr.NewDateSyntaxError(layout, "unsupported directive %"+string(layout[i+1]))
		}
		i++
	}
	return nil
}

// ParseDate converts value into a Unix timestamp in seconds
func ParseDate(value, layout string) (float64, error) {
	if layout == "" {
		layout = DefaultDateFormat
	}
	t, err := strptime.Parse(strings.TrimSpace(value), layout)
	if err != nil {
		return 0, fcaerr.NewValueError(fcaerr.ValueDate, value, "does not match "+layout)
	}
	return float64(t.UnixNano()) / float64(time.Second), nil
}

// FormatDate renders a timestamp produced by ParseDate with layout
func FormatDate(ts float64, layout string) (string, error) {
	if layout == "" {
		layout = DefaultDateFormat
	}
	sec, frac := math.Modf(ts)
	t := time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	return strftime.Format(layout, t)
}

var javaToStrptime = []struct{ java, c string }{
	{"yyyy", "%Y"},
	{"yy", "%y"},
	{"MMMM", "%B"},
	{"MMM", "%b"},
	{"MM", "%m"},
	{"dd", "%d"},
	{"DDD", "%j"},
	{"HH", "%H"},
	{"mm", "%M"},
	{"ss", "%S"},
	{"SSS", "%f"},
}

// JavaToStrptime converts an ARFF (SimpleDateFormat) pattern to strptime
func JavaToStrptime(pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				sb.WriteString(pattern[i+1:])
				break
			}
			if end == 0 {
				sb.WriteByte('\'')
			}
			sb.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		matched := false
		for _, m := range javaToStrptime {
			if strings.HasPrefix(pattern[i:], m.java) {
				sb.WriteString(m.c)
				i += len(m.java)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if pattern[i] == '%' {
			sb.WriteString("%%")
		} else {
			sb.WriteByte(pattern[i])
		}
		i++
	}
	return sb.String()
}

// StrptimeToJava converts a strptime layout to an ARFF date pattern
func StrptimeToJava(layout string) string {
	var sb strings.Builder
	for i := 0; i < len(layout); i++ {
		c := layout[i]
		if c == '%' && i+1 < len(layout) {
			i++
			if layout[i] == '%' {
				sb.WriteByte('%')
				continue
			}
			for _, m := range javaToStrptime {
				if m.c[1] == layout[i] {
					sb.WriteString(m.java)
					break
				}
			}
			continue
		}
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			sb.WriteByte('\'')
			sb.WriteByte(c)
			sb.WriteByte('\'')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
