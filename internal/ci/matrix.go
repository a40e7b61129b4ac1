package ci

import (
	"github.com/cfcheck-fixtures/pkg/ci/models"
)

const versionVar = "TRAVIS_PYTHON_VERSION"

// Expand builds the job list: every version crossed with every env line,
// minus excludes, plus includes. Jobs are numbered from 1.
func Expand(desc *models.Descriptor) []models.Job {
	var jobs []models.Job

	envLines := desc.Env
	if len(envLines) == 0 {
		envLines = []models.EnvLine{{}}
	}

	for _, version := range desc.Versions {
		for _, line := range envLines {
			if excluded(desc.Matrix.Exclude, version, line.Vars) {
				continue
			}
			jobs = append(jobs, newJob(version, line.Vars))
		}
	}

	for _, inc := range desc.Matrix.Include {
		version := inc.Version
		if version == "" {
			version = desc.Versions[0]
		}
		jobs = append(jobs, newJob(version, inc.Env.Vars))
	}

	for i := range jobs {
		jobs[i].Number = i + 1
		jobs[i].AllowFailure = excluded(desc.Matrix.AllowFailures, jobs[i].Version, jobs[i].Env)
	}
	return jobs
}

func newJob(version string, vars []models.EnvVar) models.Job {
	env := make([]models.EnvVar, 0, len(vars)+1)
	env = append(env, vars...)
	env = append(env, models.EnvVar{Name: versionVar, Value: version})
	return models.Job{Version: version, Env: env}
}

// excluded reports whether any entry matches the version and env.
func excluded(entries []models.MatrixEntry, version string, env []models.EnvVar) bool {
	for _, e := range entries {
		if matches(e, version, env) {
			return true
		}
	}
	return false
}

// matches is true when every key the entry names has the same value.
func matches(e models.MatrixEntry, version string, env []models.EnvVar) bool {
	if e.Version != "" && e.Version != version {
		return false
	}
	for _, want := range e.Env.Vars {
		got, ok := lookupVar(env, want.Name)
		if !ok || got != want.Value {
			return false
		}
	}
	return true
}

func lookupVar(env []models.EnvVar, name string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if env[i].Name == name {
			return env[i].Value, true
		}
	}
	return "", false
}

// Resolve returns the commands that apply to job, with variables expanded
// from its env.
func Resolve(desc *models.Descriptor, job models.Job) models.Plan {
	return models.Plan{
		Job:           job,
		BeforeInstall: resolvePhase(desc.BeforeInstall, job.Env),
		Install:       resolvePhase(desc.Install, job.Env),
		Script:        resolvePhase(desc.Script, job.Env),
	}
}

func resolvePhase(steps []models.Step, env []models.EnvVar) []string {
	out := []string{}
	for _, step := range steps {
		if step.Condition != nil && !step.Condition.Holds(env) {
			continue
		}
		for _, cmd := range step.Commands {
			out = append(out, expandVars(cmd, env))
		}
	}
	return out
}

// Targets lists the distinct TEST_TARGET values in declaration order.
func Targets(desc *models.Descriptor) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(vars []models.EnvVar) {
		v, ok := lookupVar(vars, "TEST_TARGET")
		if !ok || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}
	for _, line := range desc.Env {
		add(line.Vars)
	}
	for _, inc := range desc.Matrix.Include {
		add(inc.Env.Vars)
	}
	return out
}

// JobsFor returns the expanded jobs whose TEST_TARGET is target.
func JobsFor(desc *models.Descriptor, target string) []models.Job {
	var out []models.Job
	for _, job := range Expand(desc) {
		if job.Target() == target {
			out = append(out, job)
		}
	}
	return out
}
