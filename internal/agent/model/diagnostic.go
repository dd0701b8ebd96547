package model

import (
	"fmt"
	"strings"
)

// VehicleClass is the closed set of platforms the diagnostics cover.
type VehicleClass string

const (
	Aircraft   VehicleClass = "aircraft"
	Automotive VehicleClass = "automotive"
	Marine     VehicleClass = "marine"
)

// ParseVehicleClass accepts the class case-insensitively. Empty input maps to
// Automotive.
func ParseVehicleClass(s string) (VehicleClass, error) {
	switch VehicleClass(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return Automotive, nil
	case Aircraft:
		return Aircraft, nil
	case Automotive:
		return Automotive, nil
	case Marine:
		return Marine, nil
	default:
		return "", fmt.Errorf("unknown vehicle class %q", s)
	}
}

// VehicleContext identifies what is being diagnosed. It never changes once a
// session has been created.
type VehicleContext struct {
	Make  string       `json:"make"`
	Model string       `json:"model"`
	Class VehicleClass `json:"vehicleClass"`
}

// Describe renders the vehicle for prompts, e.g. "Cessna 172 (aircraft)".
func (v VehicleContext) Describe() string {
	name := strings.TrimSpace(strings.TrimSpace(v.Make) + " " + strings.TrimSpace(v.Model))
	if name == "" {
		name = "unspecified vehicle"
	}
	return fmt.Sprintf("%s (%s)", name, v.Class)
}

// Likelihood ranks a probable cause.
type Likelihood string

const (
	LikelihoodHigh   Likelihood = "High"
	LikelihoodMedium Likelihood = "Medium"
	LikelihoodLow    Likelihood = "Low"
)

// NormalizeLikelihood maps free model text onto the three ranks; anything
// unrecognised is Medium.
func NormalizeLikelihood(s string) Likelihood {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "very high", "likely":
		return LikelihoodHigh
	case "low", "very low", "unlikely":
		return LikelihoodLow
	default:
		return LikelihoodMedium
	}
}

// ProbableCause is one hypothesis for the reported fault.
type ProbableCause struct {
	Cause      string     `json:"cause"`
	Likelihood Likelihood `json:"likelihood"`
	Reason     string     `json:"reason"`
}

// SuggestedTest is one step of the test plan. Step starts at 1.
type SuggestedTest struct {
	Step        int    `json:"step"`
	Title       string `json:"title"`
	Instruction string `json:"instruction"`
	Expected    string `json:"expected"`
}

// Diagnosis is the structured shape shared by the initial analysis and reassessment.
type Diagnosis struct {
	Summary        string          `json:"summary"`
	ProbableCauses []ProbableCause `json:"probableCauses"`
	SuggestedTests []SuggestedTest `json:"suggestedTests"`
}

// Normalize cleans model output in place: empty causes are dropped,
// likelihoods are normalised and test steps are renumbered 1..n when the
// model numbered them badly.
func (d *Diagnosis) Normalize() {
	causes := d.ProbableCauses[:0]
	for _, c := range d.ProbableCauses {
		c.Cause = strings.TrimSpace(c.Cause)
		if c.Cause == "" {
			continue
		}
		c.Likelihood = NormalizeLikelihood(string(c.Likelihood))
		c.Reason = strings.TrimSpace(c.Reason)
		causes = append(causes, c)
	}
	d.ProbableCauses = causes

	tests := d.SuggestedTests[:0]
	for _, t := range d.SuggestedTests {
		if strings.TrimSpace(t.Title) == "" && strings.TrimSpace(t.Instruction) == "" {
			continue
		}
		tests = append(tests, t)
	}
	d.SuggestedTests = tests

	if !stepsValid(d.SuggestedTests) {
		for i := range d.SuggestedTests {
			d.SuggestedTests[i].Step = i + 1
		}
	}
	d.Summary = strings.TrimSpace(d.Summary)
	if d.ProbableCauses == nil {
		d.ProbableCauses = []ProbableCause{}
	}
	if d.SuggestedTests == nil {
		d.SuggestedTests = []SuggestedTest{}
	}
}

// stepsValid reports whether steps are positive and strictly increasing.
func stepsValid(tests []SuggestedTest) bool {
	prev := 0
	for _, t := range tests {
		if t.Step <= prev {
			return false
		}
		prev = t.Step
	}
	return true
}
