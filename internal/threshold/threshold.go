// Package threshold evaluates pass/fail assertions over PTU telemetry series.
//
// An assertion names a device, a column and a boolean expression over the statistics
// of that column, e.g. "CPU0:Power:max < 300 && avg > 50". The expression variables are
// min, max, avg, first, last and count.
package threshold

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"ptustress/internal/telemetry"

	"github.com/casbin/govaluate"
)

// Assertion is a boolean expression evaluated against one device column.
type Assertion struct {
	Device     string
	Column     string
	Expression string
	evaluable  *govaluate.EvaluableExpression // parse expression once, store here for use in evaluation
}

// Result is the outcome of one assertion.
type Result struct {
	Assertion Assertion
	Stats     telemetry.Stats
	Passed    bool
	Err       error // set when the assertion could not be evaluated; Passed is false
}

// String returns the assertion in device:column:expression form.
func (a Assertion) String() string {
	return fmt.Sprintf("%s:%s:%s", a.Device, a.Column, a.Expression)
}

// ParseAssertion parses "device:column:expression".
func ParseAssertion(s string) (Assertion, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Assertion{}, fmt.Errorf("assertion %q must have the form device:column:expression", s)
	}
	a := Assertion{
		Device:     strings.TrimSpace(parts[0]),
		Column:     strings.TrimSpace(parts[1]),
		Expression: strings.TrimSpace(parts[2]),
	}
	if a.Device == "" || a.Column == "" || a.Expression == "" {
		return Assertion{}, fmt.Errorf("assertion %q has an empty device, column or expression", s)
	}
	if err := a.compile(); err != nil {
		return Assertion{}, err
	}
	return a, nil
}

// ParseAssertions parses each string with ParseAssertion.
func ParseAssertions(ss []string) ([]Assertion, error) {
	assertions := make([]Assertion, 0, len(ss))
	for _, s := range ss {
		a, err := ParseAssertion(s)
		if err != nil {
			return nil, err
		}
		assertions = append(assertions, a)
	}
	return assertions, nil
}

func (a *Assertion) compile() (err error) {
	if a.evaluable, err = govaluate.NewEvaluableExpressionWithFunctions(a.Expression, evaluatorFunctions()); err != nil {
		return fmt.Errorf("failed to parse expression %q: %w", a.Expression, err)
	}
	for _, v := range a.evaluable.Vars() {
		if !isVariable(v) {
			return fmt.Errorf("unknown variable %q in expression %q, expected one of %s", v, a.Expression, strings.Join(variables, ", "))
		}
	}
	return nil
}

var variables = []string{"min", "max", "avg", "first", "last", "count"}

func isVariable(name string) bool {
	for _, v := range variables {
		if v == name {
			return true
		}
	}
	return false
}

// evaluatorFunctions defines functions that can be called in assertion expressions
func evaluatorFunctions() (functions map[string]govaluate.ExpressionFunction) {
	functions = make(map[string]govaluate.ExpressionFunction)
	functions["abs"] = func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs takes one argument, got %d", len(args))
		}
		switch t := args[0].(type) {
		case int:
			return math.Abs(float64(t)), nil
		case float64:
			return math.Abs(t), nil
		}
		return nil, fmt.Errorf("abs: argument %v is not a number", args[0])
	}
	return
}

// Evaluate evaluates each assertion against the table. Assertions that cannot be
// evaluated (missing device or column, non-numeric values, non-boolean expression)
// fail with Err set.
func Evaluate(table telemetry.Table, assertions []Assertion) []Result {
	results := make([]Result, 0, len(assertions))
	for _, a := range assertions {
		result := evaluate(table, a)
		if result.Err != nil {
			slog.Warn("assertion could not be evaluated", slog.String("assertion", a.String()), slog.String("error", result.Err.Error()))
		} else {
			slog.Info("assertion evaluated", slog.String("assertion", a.String()), slog.Bool("passed", result.Passed))
		}
		results = append(results, result)
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func evaluate(table telemetry.Table, a Assertion) Result {
	result := Result{Assertion: a}
	if a.evaluable == nil {
		if err := a.compile(); err != nil {
			result.Err = err
			return result
		}
		result.Assertion = a
	}
	series, err := table.Series(a.Device, a.Column)
	if err != nil {
		result.Err = err
		return result
	}
	stats, err := series.Stats()
	if err != nil {
		result.Err = err
		return result
	}
	result.Stats = stats
	parameters := map[string]any{
		"min":   stats.Min,
		"max":   stats.Max,
		"avg":   stats.Avg,
		"first": stats.First,
		"last":  stats.Last,
		"count": float64(stats.Count),
	}
	value, err := a.evaluable.Evaluate(parameters)
	if err != nil {
		result.Err = fmt.Errorf("failed to evaluate %q: %w", a.Expression, err)
		return result
	}
	passed, ok := value.(bool)
	if !ok {
		result.Err = fmt.Errorf("expression %q evaluates to %v, not true or false", a.Expression, value)
		return result
	}
	result.Passed = passed
	return result
}
