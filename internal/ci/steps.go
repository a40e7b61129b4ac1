package ci

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cfcheck-fixtures/pkg/ci/models"
)

// if [[ ... ]]; then CMD; fi
var doubleBracketStep = regexp.MustCompile(`^if\s*\[\[.*\]\]\s*;\s*then\s+.*;\s*fi$`)

// if [[ $VAR == 'value' ]]; then CMD; CMD; fi
var conditionalStep = regexp.MustCompile(
	`^if\s*\[\[\s*"?\$\{?([A-Za-z_][A-Za-z0-9_]*)\}?"?\s*(==|!=|=)\s*(?:'([^']*)'|"([^"]*)"|([^\s\]]+))\s*\]\]\s*;\s*then\s+(.*?)\s*;\s*fi$`)

func parseSteps(lines []string) ([]models.Step, error) {
	steps := make([]models.Step, 0, len(lines))
	for _, line := range lines {
		step, err := parseStep(line)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// parseStep reads one descriptor line. Only `if [[` lines are conditional;
// they must end in `; then ...; fi`. A well-formed `if [[` test that is not a
// single variable comparison (file tests, && chains) is kept as one opaque
// unconditional command.
func parseStep(line string) (models.Step, error) {
	text := strings.TrimSpace(line)
	step := models.Step{Raw: text}

	if !strings.HasPrefix(text, "if [[") && !strings.HasPrefix(text, "if[[") {
		step.Commands = []string{text}
		return step, nil
	}
	if !doubleBracketStep.MatchString(text) {
		return step, fmt.Errorf("%w: malformed conditional %q (want `if [[ ... ]]; then ...; fi`)", ErrInvalidDescriptor, text)
	}

	m := conditionalStep.FindStringSubmatch(text)
	if m == nil {
		step.Commands = []string{text}
		return step, nil
	}

	body := strings.TrimSpace(m[6])
	if body == "" {
		return step, fmt.Errorf("%w: conditional without commands %q", ErrInvalidDescriptor, text)
	}

	op := models.Operator(m[2])
	if op == "=" {
		op = models.OpEqual
	}
	step.Condition = &models.Condition{
		Variable: m[1],
		Operator: op,
		Value:    m[3] + m[4] + m[5],
	}
	step.Commands = splitCommands(body)
	return step, nil
}

// splitCommands splits a shell body on semicolons outside quotes.
func splitCommands(body string) []string {
	var (
		out     []string
		current strings.Builder
		quote   rune
	)
	flush := func() {
		if cmd := strings.TrimSpace(current.String()); cmd != "" {
			out = append(out, cmd)
		}
		current.Reset()
	}
	for _, r := range body {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return out
}

// expandVars substitutes $NAME and ${NAME} from env. Unknown names are kept.
func expandVars(s string, env []models.EnvVar) string {
	lookup := func(name string) (string, bool) {
		for i := len(env) - 1; i >= 0; i-- {
			if env[i].Name == name {
				return env[i].Value, true
			}
		}
		return "", false
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}

		if s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				sb.WriteByte(s[i])
				continue
			}
			name := s[i+2 : i+2+end]
			if v, ok := lookup(name); ok && isName(name) {
				sb.WriteString(v)
			} else {
				sb.WriteString(s[i : i+3+end])
			}
			i += 2 + end
			continue
		}

		j := i + 1
		for j < len(s) && isNameByte(s[j], j == i+1) {
			j++
		}
		if j == i+1 {
			sb.WriteByte(s[i])
			continue
		}
		if v, ok := lookup(s[i+1 : j]); ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(s[i:j])
		}
		i = j - 1
	}
	return sb.String()
}

func isNameByte(c byte, first bool) bool {
	if c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
		return true
	}
	return !first && c >= '0' && c <= '9'
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i], i == 0) {
			return false
		}
	}
	return true
}
