// Package ci decodes Travis-style CI job descriptors and expands their job
// matrix. It never runs the commands it reads.
package ci

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cfcheck-fixtures/pkg/ci/models"
)

var ErrInvalidDescriptor = errors.New("invalid CI descriptor")

//go:embed default.yml
var defaultDescriptor []byte

// stringList accepts either a scalar or a sequence of scalars.
type stringList []string

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = stringList{node.Value}
	case yaml.SequenceNode:
		out := make(stringList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a scalar list item", item.Line)
			}
			out = append(out, item.Value)
		}
		*s = out
	default:
		return fmt.Errorf("line %d: expected a scalar or a list", node.Line)
	}
	return nil
}

// envSection accepts a plain list of env lines or the {global, matrix} form.
type envSection struct {
	Global stringList
	Lines  stringList
}

func (e *envSection) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return node.Decode(&e.Lines)
	}
	var m struct {
		Global stringList `yaml:"global"`
		Matrix stringList `yaml:"matrix"`
		Jobs   stringList `yaml:"jobs"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	e.Global = m.Global
	e.Lines = append(m.Matrix, m.Jobs...)
	return nil
}

// scalarString keeps the literal text of a scalar so "3.10" is not read as 3.1.
type scalarString string

func (s *scalarString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", node.Line)
	}
	*s = scalarString(node.Value)
	return nil
}

type rawEntry struct {
	Python scalarString `yaml:"python"`
	Env    scalarString `yaml:"env"`
}

type rawDescriptor struct {
	Language string     `yaml:"language"`
	Python   stringList `yaml:"python"`
	Env      envSection `yaml:"env"`
	Matrix   struct {
		FastFinish    bool       `yaml:"fast_finish"`
		Include       []rawEntry `yaml:"include"`
		Exclude       []rawEntry `yaml:"exclude"`
		AllowFailures []rawEntry `yaml:"allow_failures"`
	} `yaml:"matrix"`
	BeforeInstall stringList `yaml:"before_install"`
	Install       stringList `yaml:"install"`
	Script        stringList `yaml:"script"`
}

// Decode reads a descriptor from r.
func Decode(r io.Reader) (*models.Descriptor, error) {
	var raw rawDescriptor
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDescriptor)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	return build(raw)
}

// LoadFile decodes the descriptor at path.
func LoadFile(path string) (*models.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CI descriptor: %w", err)
	}
	defer f.Close()

	desc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return desc, nil
}

// Default returns the descriptor shipped with the fixtures.
func Default() *models.Descriptor {
	desc, err := Decode(strings.NewReader(string(defaultDescriptor)))
	if err != nil {
		panic(fmt.Sprintf("embedded CI descriptor: %v", err))
	}
	return desc
}

// DefaultSource returns the YAML text of the shipped descriptor.
func DefaultSource() []byte {
	return append([]byte(nil), defaultDescriptor...)
}

func build(raw rawDescriptor) (*models.Descriptor, error) {
	desc := &models.Descriptor{Language: raw.Language}

	for _, v := range raw.Python {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, fmt.Errorf("%w: empty version", ErrInvalidDescriptor)
		}
		desc.Versions = append(desc.Versions, v)
	}
	if len(desc.Versions) == 0 {
		return nil, fmt.Errorf("%w: no versions listed", ErrInvalidDescriptor)
	}

	global, err := parseEnvLine(strings.Join(raw.Env.Global, " "))
	if err != nil {
		return nil, err
	}
	for _, line := range raw.Env.Lines {
		env, err := parseEnvLine(line)
		if err != nil {
			return nil, err
		}
		env.Vars = append(append([]models.EnvVar(nil), global.Vars...), env.Vars...)
		desc.Env = append(desc.Env, env)
	}
	if len(desc.Env) == 0 && len(global.Vars) > 0 {
		desc.Env = []models.EnvLine{global}
	}

	desc.Matrix.FastFinish = raw.Matrix.FastFinish
	if desc.Matrix.Include, err = buildEntries(raw.Matrix.Include); err != nil {
		return nil, err
	}
	for i := range desc.Matrix.Include {
		inc := &desc.Matrix.Include[i]
		inc.Env.Vars = append(append([]models.EnvVar(nil), global.Vars...), inc.Env.Vars...)
	}
	if desc.Matrix.Exclude, err = buildEntries(raw.Matrix.Exclude); err != nil {
		return nil, err
	}
	if desc.Matrix.AllowFailures, err = buildEntries(raw.Matrix.AllowFailures); err != nil {
		return nil, err
	}

	if desc.BeforeInstall, err = parseSteps(raw.BeforeInstall); err != nil {
		return nil, fmt.Errorf("before_install: %w", err)
	}
	if desc.Install, err = parseSteps(raw.Install); err != nil {
		return nil, fmt.Errorf("install: %w", err)
	}
	if desc.Script, err = parseSteps(raw.Script); err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}

	return desc, nil
}

func buildEntries(raw []rawEntry) ([]models.MatrixEntry, error) {
	var out []models.MatrixEntry
	for _, r := range raw {
		env, err := parseEnvLine(string(r.Env))
		if err != nil {
			return nil, err
		}
		out = append(out, models.MatrixEntry{Version: strings.TrimSpace(string(r.Python)), Env: env})
	}
	return out, nil
}

// parseEnvLine splits "A=1 B='two words'" into bindings.
func parseEnvLine(line string) (models.EnvLine, error) {
	env := models.EnvLine{Raw: strings.TrimSpace(line)}
	words, err := splitWords(line)
	if err != nil {
		return env, fmt.Errorf("%w: env %q: %v", ErrInvalidDescriptor, line, err)
	}
	for _, w := range words {
		name, value, ok := strings.Cut(w, "=")
		if !ok || name == "" {
			return env, fmt.Errorf("%w: env %q: %q is not NAME=value", ErrInvalidDescriptor, line, w)
		}
		env.Vars = append(env.Vars, models.EnvVar{Name: name, Value: value})
	}
	return env, nil
}

// splitWords splits on unquoted whitespace and strips the quotes.
func splitWords(s string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}
