// Package inspect resolves the variable names that attributes refer to and
// reports structural facts about them. It does not judge convention
// compliance.
package inspect

import (
	"sort"
	"strings"

	"github.com/cfcheck-fixtures/pkg/cdl/models"
)

// DimensionRule describes how a referenced variable's dimensions are
// expected to relate to the referencing variable's dimensions.
type DimensionRule string

const (
	// RuleSubset: target dimensions are a subset of the source dimensions.
	RuleSubset DimensionRule = "subset"
	// RuleExtends: target dimensions are the source dimensions plus one
	// trailing vertex dimension.
	RuleExtends DimensionRule = "extends"
	RuleNone    DimensionRule = "none"
)

type attrForm int

const (
	formList attrForm = iota
	formKeyed
)

type referenceAttribute struct {
	name string
	form attrForm
	rule DimensionRule
}

var referenceAttributes = []referenceAttribute{
	{name: "coordinates", form: formList, rule: RuleSubset},
	{name: "bounds", form: formList, rule: RuleExtends},
	{name: "climatology", form: formList, rule: RuleExtends},
	{name: "ancillary_variables", form: formList, rule: RuleNone},
	{name: "grid_mapping", form: formList, rule: RuleNone},
	{name: "cell_measures", form: formKeyed, rule: RuleNone},
}

// ReferenceAttributes lists the attribute names that are resolved.
func ReferenceAttributes() []string {
	out := make([]string, len(referenceAttributes))
	for i, ra := range referenceAttributes {
		out[i] = ra.name
	}
	return out
}

type Reference struct {
	Attribute string `json:"attribute"`
	// Key is the measure name for keyed forms such as "area: cell_area".
	Key              string        `json:"key,omitempty"`
	Target           string        `json:"target"`
	Exists           bool          `json:"exists"`
	TargetDimensions []string      `json:"target_dimensions,omitempty"`
	Rule             DimensionRule `json:"rule"`
	Consistent       bool          `json:"consistent"`
}

type VariableReport struct {
	Name         string      `json:"name"`
	Dimensions   []string    `json:"dimensions"`
	IsCoordinate bool        `json:"is_coordinate"`
	References   []Reference `json:"references,omitempty"`
}

type Summary struct {
	Variables            int `json:"variables"`
	CoordinateVariables  int `json:"coordinate_variables"`
	References           int `json:"references"`
	UnresolvedReferences int `json:"unresolved_references"`
	InconsistentDims     int `json:"inconsistent_dimensions"`
}

type Report struct {
	Dataset   string           `json:"dataset"`
	Variables []VariableReport `json:"variables"`
	Summary   Summary          `json:"summary"`
}

func Inspect(ds *models.Dataset) Report {
	report := Report{Dataset: ds.Name}

	for _, v := range ds.Variables {
		vr := VariableReport{
			Name:         v.Name,
			Dimensions:   append([]string(nil), v.Dimensions...),
			IsCoordinate: ds.IsCoordinateVariable(v),
		}
		if vr.IsCoordinate {
			report.Summary.CoordinateVariables++
		}

		for _, ra := range referenceAttributes {
			attr, ok := v.Attribute(ra.name)
			if !ok {
				continue
			}
			for _, ref := range parseReferences(ra, attr.String()) {
				resolve(ds, v, &ref)
				vr.References = append(vr.References, ref)

				report.Summary.References++
				if !ref.Exists {
					report.Summary.UnresolvedReferences++
				} else if !ref.Consistent {
					report.Summary.InconsistentDims++
				}
			}
		}

		report.Variables = append(report.Variables, vr)
	}
	report.Summary.Variables = len(report.Variables)

	return report
}

func parseReferences(ra referenceAttribute, text string) []Reference {
	fields := strings.Fields(text)
	var refs []Reference

	if ra.form == formList {
		for _, f := range fields {
			refs = append(refs, Reference{Attribute: ra.name, Target: f, Rule: ra.rule})
		}
		return refs
	}

	// keyed form: "key: name key: name"
	var key string
	for _, f := range fields {
		if strings.HasSuffix(f, ":") {
			key = strings.TrimSuffix(f, ":")
			continue
		}
		refs = append(refs, Reference{Attribute: ra.name, Key: key, Target: f, Rule: ra.rule})
		key = ""
	}
	return refs
}

func resolve(ds *models.Dataset, source *models.Variable, ref *Reference) {
	target, ok := ds.Variable(ref.Target)
	if !ok {
		return
	}
	ref.Exists = true
	ref.TargetDimensions = append([]string(nil), target.Dimensions...)

	switch ref.Rule {
	case RuleSubset:
		ref.Consistent = isSubset(target.Dimensions, source.Dimensions)
	case RuleExtends:
		ref.Consistent = len(target.Dimensions) == len(source.Dimensions)+1 &&
			equalPrefix(source.Dimensions, target.Dimensions)
	default:
		ref.Consistent = true
	}
}

func isSubset(sub, set []string) bool {
	for _, s := range sub {
		found := false
		for _, candidate := range set {
			if s == candidate {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func equalPrefix(prefix, full []string) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i := range prefix {
		if prefix[i] != full[i] {
			return false
		}
	}
	return true
}

func (r Report) Variable(name string) (VariableReport, bool) {
	for _, v := range r.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableReport{}, false
}

// Finding pairs a reference with the variable that holds it.
type Finding struct {
	Variable string
	Reference
}

// Unresolved lists references to variables that are not declared.
func (r Report) Unresolved() []Finding {
	return r.filter(func(ref Reference) bool { return !ref.Exists })
}

// Inconsistent lists resolved references whose target dimensions break the
// attribute's dimension rule.
func (r Report) Inconsistent() []Finding {
	return r.filter(func(ref Reference) bool { return ref.Exists && !ref.Consistent })
}

func (r Report) filter(keep func(Reference) bool) []Finding {
	var out []Finding
	for _, v := range r.Variables {
		for _, ref := range v.References {
			if keep(ref) {
				out = append(out, Finding{Variable: v.Name, Reference: ref})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Variable < out[j].Variable })
	return out
}

func (r Report) Clean() bool {
	return r.Summary.UnresolvedReferences == 0 && r.Summary.InconsistentDims == 0
}
