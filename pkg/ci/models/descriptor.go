package models

import "strings"

// Descriptor is a decoded Travis-style CI job descriptor.
type Descriptor struct {
	Language      string
	Versions      []string
	Env           []EnvLine
	Matrix        Matrix
	BeforeInstall []Step
	Install       []Step
	Script        []Step
}

// EnvVar is a single NAME=value binding.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EnvLine is one entry of the env list, e.g. "TEST_TARGET=default".
type EnvLine struct {
	Raw  string
	Vars []EnvVar
}

func (l EnvLine) Lookup(name string) (string, bool) {
	return lookup(l.Vars, name)
}

// MatrixEntry selects jobs by version and/or env line. Empty fields match
// anything.
type MatrixEntry struct {
	Version string
	Env     EnvLine
}

type Matrix struct {
	FastFinish    bool
	Include       []MatrixEntry
	Exclude       []MatrixEntry
	AllowFailures []MatrixEntry
}

type Operator string

const (
	OpEqual    Operator = "=="
	OpNotEqual Operator = "!="
)

// Condition is the test of an `if [[ $VAR == 'value' ]]` step.
type Condition struct {
	Variable string   `json:"variable"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

func (c Condition) Holds(env []EnvVar) bool {
	got, _ := lookup(env, c.Variable)
	if c.Operator == OpNotEqual {
		return got != c.Value
	}
	return got == c.Value
}

func (c Condition) String() string {
	return "$" + c.Variable + " " + string(c.Operator) + " '" + c.Value + "'"
}

// Step is one line of an install or script phase.
type Step struct {
	Raw       string
	Condition *Condition
	Commands  []string
}

// Job is one expanded matrix entry.
type Job struct {
	Number       int      `json:"number"`
	Version      string   `json:"version"`
	Env          []EnvVar `json:"env"`
	AllowFailure bool     `json:"allow_failure"`
}

func (j Job) Lookup(name string) (string, bool) {
	return lookup(j.Env, name)
}

// Target returns the job's TEST_TARGET binding.
func (j Job) Target() string {
	v, _ := j.Lookup("TEST_TARGET")
	return v
}

func (j Job) EnvString() string {
	parts := make([]string, len(j.Env))
	for i, v := range j.Env {
		parts[i] = v.Name + "=" + v.Value
	}
	return strings.Join(parts, " ")
}

// Plan holds the commands that apply to a single job, with variables
// expanded.
type Plan struct {
	Job           Job      `json:"job"`
	BeforeInstall []string `json:"before_install"`
	Install       []string `json:"install"`
	Script        []string `json:"script"`
}

func lookup(vars []EnvVar, name string) (string, bool) {
	// later bindings win, as in a shell
	for i := len(vars) - 1; i >= 0; i-- {
		if vars[i].Name == name {
			return vars[i].Value, true
		}
	}
	return "", false
}
