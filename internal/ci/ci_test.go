package ci

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cfcheck-fixtures/pkg/ci/models"
)

func TestDefaultDescriptor(t *testing.T) {
	desc := Default()

	if desc.Language != "python" {
		t.Errorf("Expected language python, got %q", desc.Language)
	}
	if diff := cmp.Diff([]string{"2.7", "3.5", "3.6"}, desc.Versions); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}

	wantTargets := []string{
		"default", "coding_standards", "integration",
		"cc-plugin-glider", "cc-plugin-ncei", "cc-plugin-sgrid", "cc-checker-ugrid",
	}
	if diff := cmp.Diff(wantTargets, Targets(desc)); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
	if !desc.Matrix.FastFinish {
		t.Error("Expected fast_finish to be set")
	}
}

func TestExpandDefault(t *testing.T) {
	desc := Default()
	jobs := Expand(desc)

	// 3 versions x 7 targets, minus coding_standards on 2.7 and 3.5
	if len(jobs) != 19 {
		t.Fatalf("Expected 19 jobs, got %d", len(jobs))
	}
	for i, job := range jobs {
		if job.Number != i+1 {
			t.Errorf("job %d numbered %d", i, job.Number)
		}
		if v, _ := job.Lookup("TRAVIS_PYTHON_VERSION"); v != job.Version {
			t.Errorf("job %d: TRAVIS_PYTHON_VERSION=%q, version %q", job.Number, v, job.Version)
		}
	}

	cs := JobsFor(desc, "coding_standards")
	if len(cs) != 1 || cs[0].Version != "3.6" {
		t.Errorf("Expected coding_standards only on 3.6, got %+v", cs)
	}

	for _, job := range jobs {
		wantAllow := job.Target() != "default" && job.Target() != "coding_standards"
		if job.AllowFailure != wantAllow {
			t.Errorf("job %d (%s): AllowFailure=%v", job.Number, job.Target(), job.AllowFailure)
		}
	}
}

func TestResolveDefaultTarget(t *testing.T) {
	desc := Default()
	job := JobsFor(desc, "default")[0]
	plan := Resolve(desc, job)

	want := []string{`py.test -s -rxs -v -k "not integration" compliance_checker`}
	if diff := cmp.Diff(want, plan.Script); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}
	if len(plan.Install) != 1 {
		t.Errorf("Expected only the unconditional install step, got %v", plan.Install)
	}
	if !strings.Contains(plan.Install[0], "compliance-checker-${version}.tar.gz") {
		t.Errorf("Expected unknown ${version} to be kept, got %q", plan.Install[0])
	}

	var create string
	for _, cmd := range plan.BeforeInstall {
		if strings.HasPrefix(cmd, "conda create") {
			create = cmd
		}
	}
	if !strings.Contains(create, "python=2.7 ") {
		t.Errorf("Expected python version to be expanded, got %q", create)
	}
	if !strings.Contains(plan.BeforeInstall[1], "$HOME/miniconda") {
		t.Errorf("Expected $HOME to be kept, got %q", plan.BeforeInstall[1])
	}
}

func TestResolvePluginTarget(t *testing.T) {
	desc := Default()
	plan := Resolve(desc, JobsFor(desc, "cc-plugin-ncei")[0])

	if len(plan.Install) != 2 || !strings.HasPrefix(plan.Install[1], "git clone https://github.com/ioos/cc-plugin-ncei.git") {
		t.Errorf("Unexpected install commands %v", plan.Install)
	}
	want := []string{"cd cc-plugin-ncei && py.test -s -rxs -v cc_plugin_ncei"}
	if diff := cmp.Diff(want, plan.Script); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		name string
		line string
		want models.Step
	}{
		{
			name: "unconditional",
			line: "  pip install -e . ",
			want: models.Step{Raw: "pip install -e .", Commands: []string{"pip install -e ."}},
		},
		{
			name: "double quoted not equal",
			line: `if [[ "$TEST_TARGET" != "default" ]]; then echo skip; echo "a;b"; fi`,
			want: models.Step{
				Raw:       `if [[ "$TEST_TARGET" != "default" ]]; then echo skip; echo "a;b"; fi`,
				Condition: &models.Condition{Variable: "TEST_TARGET", Operator: models.OpNotEqual, Value: "default"},
				Commands:  []string{"echo skip", `echo "a;b"`},
			},
		},
		{
			name: "single equals braces",
			line: "if [[ ${MODE} = fast ]]; then make; fi",
			want: models.Step{
				Raw:       "if [[ ${MODE} = fast ]]; then make; fi",
				Condition: &models.Condition{Variable: "MODE", Operator: models.OpEqual, Value: "fast"},
				Commands:  []string{"make"},
			},
		},
		{
			name: "single bracket test is a plain command",
			line: "if [ -f setup.py ]; then python setup.py test; fi",
			want: models.Step{
				Raw:      "if [ -f setup.py ]; then python setup.py test; fi",
				Commands: []string{"if [ -f setup.py ]; then python setup.py test; fi"},
			},
		},
		{
			name: "double bracket file test is opaque",
			line: "if [[ -f setup.py ]]; then python setup.py test; fi",
			want: models.Step{
				Raw:      "if [[ -f setup.py ]]; then python setup.py test; fi",
				Commands: []string{"if [[ -f setup.py ]]; then python setup.py test; fi"},
			},
		},
		{
			name: "double bracket chain is opaque",
			line: "if [[ $A == x && $B == y ]]; then make; fi",
			want: models.Step{
				Raw:      "if [[ $A == x && $B == y ]]; then make; fi",
				Commands: []string{"if [[ $A == x && $B == y ]]; then make; fi"},
			},
		},
		{
			name: "fi inside last word is kept",
			line: "if [[ $TEST_TARGET == 'x' ]]; then make clean-wifi; fi",
			want: models.Step{
				Raw:       "if [[ $TEST_TARGET == 'x' ]]; then make clean-wifi; fi",
				Condition: &models.Condition{Variable: "TEST_TARGET", Operator: models.OpEqual, Value: "x"},
				Commands:  []string{"make clean-wifi"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStep(tt.line)
			if err != nil {
				t.Fatalf("parseStep: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("step mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"no versions", "language: python\nenv:\n  - A=1\n"},
		{"env without equals", "python: 3.6\nenv:\n  - TEST_TARGET\n"},
		{"conditional without fi", "python: 3.6\nscript:\n  - if [[ $A == 'x' ]]; then make\n"},
		{"word ending in fi is not fi", "python: 3.6\nscript:\n  - if [[ $TEST_TARGET == 'x' ]]; then make clean-wifi\n"},
		{"conditional without then", "python: 3.6\nscript:\n  - if [[ $A == 'x' ]]; make; fi\n"},
		{"unterminated quote", "python: 3.6\nenv:\n  - A='x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.yaml))
			if !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("Expected ErrInvalidDescriptor, got %v", err)
			}
		})
	}
}

func TestDecodeScalarsAndIncludes(t *testing.T) {
	src := `
python: "3.10"
env:
  global:
    - CI=true
  matrix:
    - TEST_TARGET=default
matrix:
  include:
    - python: 3.6
      env: TEST_TARGET=integration EXTRA='a b'
script: make test
`
	desc, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff([]string{"3.10"}, desc.Versions); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}

	jobs := Expand(desc)
	want := []models.Job{
		{Number: 1, Version: "3.10", Env: []models.EnvVar{
			{Name: "CI", Value: "true"},
			{Name: "TEST_TARGET", Value: "default"},
			{Name: "TRAVIS_PYTHON_VERSION", Value: "3.10"},
		}},
		{Number: 2, Version: "3.6", Env: []models.EnvVar{
			{Name: "CI", Value: "true"},
			{Name: "TEST_TARGET", Value: "integration"},
			{Name: "EXTRA", Value: "a b"},
			{Name: "TRAVIS_PYTHON_VERSION", Value: "3.6"},
		}},
	}
	if diff := cmp.Diff(want, jobs); diff != "" {
		t.Errorf("jobs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"default", "integration"}, Targets(desc)); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
	if plan := Resolve(desc, jobs[0]); len(plan.Script) != 1 || plan.Script[0] != "make test" {
		t.Errorf("Unexpected script %v", plan.Script)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".travis.yml")
	if err := os.WriteFile(path, DefaultSource(), 0o644); err != nil {
		t.Fatal(err)
	}
	desc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if diff := cmp.Diff(Default(), desc); diff != "" {
		t.Errorf("descriptor mismatch (-default +loaded):\n%s", diff)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
