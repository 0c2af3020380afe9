package prompts

import (
	"fmt"
	"strings"
)

// Features toggles optional prompt sections and environment helpers.
type Features struct {
	StructuredJobs      bool `json:"structured_jobs"`
	StructuredOutput    bool `json:"structured_output"`
	BuiltinChunking     bool `json:"builtin_chunking"`
	ExplicitConvergence bool `json:"explicit_convergence"`
	SynthesisCoT        bool `json:"synthesis_cot"`
}

type featureField struct {
	name   string
	abbrev string
	get    func(*Features) *bool
}

var featureFields = []featureField{
	{"structured_jobs", "sj", func(f *Features) *bool { return &f.StructuredJobs }},
	{"structured_output", "so", func(f *Features) *bool { return &f.StructuredOutput }},
	{"builtin_chunking", "bc", func(f *Features) *bool { return &f.BuiltinChunking }},
	{"explicit_convergence", "ec", func(f *Features) *bool { return &f.ExplicitConvergence }},
	{"synthesis_cot", "sc", func(f *Features) *bool { return &f.SynthesisCoT }},
}

// Label is a short name for the enabled set, like "sj-so-bc", or "none".
func (f Features) Label() string {
	var parts []string
	for _, field := range featureFields {
		if *field.get(&f) {
			parts = append(parts, field.abbrev)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "-")
}

func (f Features) Names() (ret []string) {
	for _, field := range featureFields {
		if *field.get(&f) {
			ret = append(ret, field.name)
		}
	}
	return
}

// ParseFeatures accepts full names, abbreviations, "all" and "none".
func ParseFeatures(names ...string) (ret Features, err error) {
	for _, name := range names {
		for _, name := range strings.Split(name, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			switch name {
			case "", "none":
				continue
			case "all":
				ret = AllFeatures()
				continue
			}
			found := false
			for _, field := range featureFields {
				if name == field.name || name == field.abbrev {
					*field.get(&ret) = true
					found = true
					break
				}
			}
			if !found {
				return ret, fmt.Errorf("unknown feature: %q", name)
			}
		}
	}
	return
}

func AllFeatures() (ret Features) {
	for _, field := range featureFields {
		*field.get(&ret) = true
	}
	return
}
