package attribute

import (
	"fmt"
	"strconv"
	"strings"
)

// ARFFType renders the @attribute type. Scaled attributes other than
// numeric ones are declared as the pair of boolean tokens.
func (a *Attribute) ARFFType(sep string, b Bival) string {
	tokens := a.Bival(b)
	if a.HasScale() && a.Kind != Numeric {
		return nominalList([]string{tokens.False, tokens.True}, sep)
	}

	switch a.Kind {
	case Numeric:
		return "numeric"
	case Nominal:
		return nominalList(a.values, sep)
	case String:
		return "string"
	case Date:
		pattern := StrptimeToJava(a.DateFormat)
		if strings.ContainsAny(pattern, " \t") {
			pattern = "\"" + pattern + "\""
		}
		return "date " + pattern
	}

	switch {
	case a.AllNumeric():
		return "numeric"
	case len(a.values) > 0:
		return nominalList(a.values, sep)
	default:
		return "string"
	}
}

// nominalList renders an ARFF value enumeration such as "{ a,b }"
func nominalList(values []string, sep string) string {
	return "{ " + strings.Join(values, sep) + " }"
}

// NamesType renders the type of a C4.5 names entry
func (a *Attribute) NamesType(b Bival) string {
	tokens := a.Bival(b)
	if a.HasScale() && a.Kind != Numeric {
		return tokens.False + "," + tokens.True
	}

	switch a.Kind {
	case Numeric:
		return "continuous"
	case Nominal:
		if len(a.values) > 0 {
			return strings.Join(a.values, ",")
		}
	case Generic:
		if a.AllNumeric() {
			return "continuous"
		}
		if len(a.values) > 0 {
			return strings.Join(a.values, ",")
		}
	}
	return fmt.Sprintf("discrete %d", max(len(a.values), 1))
}

// Report renders the statistics block of the export report
func (a *Attribute) Report(none string) []string {
	var lines []string
	if (a.Kind == Numeric || a.Kind == Date) && a.seeds > 0 {
		lines = append(lines, "max: "+a.formatBound(a.max))
		if a.seeds > 1 {
			lines = append(lines, "min: "+a.formatBound(a.min))
		}
	}

	total := a.noneCount
	for _, v := range a.values {
		total += a.seen[v]
	}
	if total == 0 {
		return lines
	}
	for _, r := range a.Rates() {
		lines = append(lines, formatRate(r.Value, r.Count, total, ""))
	}
	if a.noneCount > 0 {
		lines = append(lines, formatRate(none, a.noneCount, total, "(none value)"))
	}
	return lines
}

func (a *Attribute) formatBound(x float64) string {
	if a.Kind == Date {
		if s, err := FormatDate(x, a.DateFormat); err == nil {
			return s
		}
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func formatRate(value string, n, total int, note string) string {
	line := fmt.Sprintf("    %s: %d/%d = %.2f%%", value, n, total, float64(n)*100/float64(total))
	if note != "" {
		line += " " + note
	}
	return line
}
