package logic

import (
	"fmt"
	"strings"
)

// outputFormat is a validated printf-style template for publishing a
// numeric result. A nil format renders with the "%f" default.
type outputFormat struct {
	spec    string
	integer bool
}

const defaultFormat = "%f"

// floatVerbs and intVerbs are the accepted conversion characters. The
// C-style "i" and "u" verbs are folded onto "d".
const (
	floatVerbs = "efgEG"
	intVerbs   = "dioxXu"
)

// parseOutputFormat validates a template of the shape
// %[flags][width][.precision]verb with no surrounding text and exactly
// one verb.
func parseOutputFormat(s string) (*outputFormat, error) {
	if len(s) < 2 || s[0] != '%' {
		return nil, fmt.Errorf("format %q must start with %%", s)
	}

	i := 1
	for i < len(s) && strings.ContainsRune("-+ 0#", rune(s[i])) {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	}
	if i != len(s)-1 {
		return nil, fmt.Errorf("format %q has trailing text", s)
	}

	verb := s[i]
	switch {
	case strings.IndexByte(floatVerbs, verb) >= 0:
		return &outputFormat{spec: s}, nil
	case strings.IndexByte(intVerbs, verb) >= 0:
		spec := s
		if verb == 'i' || verb == 'u' {
			spec = s[:i] + "d"
		}
		return &outputFormat{spec: spec, integer: true}, nil
	}
	return nil, fmt.Errorf("format %q has unsupported verb %q", s, verb)
}

// render formats v. Integer verbs truncate toward zero first.
func (f *outputFormat) render(v float64) string {
	if f == nil {
		return fmt.Sprintf(defaultFormat, v)
	}
	if f.integer {
		return fmt.Sprintf(f.spec, int64(v))
	}
	return fmt.Sprintf(f.spec, v)
}
