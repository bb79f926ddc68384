package winrm

import "strings"

// EscapeArgs joins args into a single Windows command line that
// CommandLineToArgvW splits back into the same arguments. Backslashes are
// literal unless they precede a double quote.
func EscapeArgs(args []string) string {
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		needQuote := arg == "" || strings.ContainsAny(arg, " \t")
		if needQuote {
			b.WriteByte('"')
		}
		backslashes := 0
		for _, c := range arg {
			switch c {
			case '\\':
				backslashes++
			case '"':
				b.WriteString(strings.Repeat(`\`, backslashes*2))
				backslashes = 0
				b.WriteString(`\"`)
			default:
				b.WriteString(strings.Repeat(`\`, backslashes))
				backslashes = 0
				b.WriteRune(c)
			}
		}
		b.WriteString(strings.Repeat(`\`, backslashes))
		if needQuote {
			// backslashes before the closing quote are doubled
			b.WriteString(strings.Repeat(`\`, backslashes))
			b.WriteByte('"')
		}
	}
	return b.String()
}
