package dlp

import (
	"regexp"
	"sort"
	"strings"
)

const minLiteralLen = 3

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Redactor masks rule matches and caller supplied literals. A nil Redactor
// returns its input unchanged.
type Redactor struct {
	rules       []compiledRule
	literalMask string
}

func NewRedactor(cfg RulesConfig) (*Redactor, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	mask := cfg.LiteralMask
	if mask == "" {
		mask = defaultLiteralMask
	}
	return &Redactor{rules: compiled, literalMask: mask}, nil
}

// Text masks every rule match in s, then every literal of at least
// minLiteralLen characters.
func (r *Redactor) Text(s string, literals ...string) string {
	if r == nil || s == "" {
		return s
	}
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, rule.rule.Mask)
	}
	for _, lit := range literals {
		if lit = strings.TrimSpace(lit); len([]rune(lit)) >= minLiteralLen {
			s = strings.ReplaceAll(s, lit, r.literalMask)
		}
	}
	return s
}

// Map returns a copy of data with every string value masked.
func (r *Redactor) Map(data map[string]interface{}, literals ...string) map[string]interface{} {
	if r == nil || data == nil {
		return data
	}
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		out[key] = r.value(value, literals)
	}
	return out
}

func (r *Redactor) value(value interface{}, literals []string) interface{} {
	switch v := value.(type) {
	case string:
		return r.Text(v, literals...)
	case map[string]interface{}:
		return r.Map(v, literals...)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, nested := range v {
			out[i] = r.value(nested, literals)
		}
		return out
	default:
		return value
	}
}

// Types reports which rule types match s, sorted.
func (r *Redactor) Types(s string) []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, rule := range r.rules {
		if rule.re.MatchString(s) {
			seen[rule.rule.Type] = struct{}{}
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
