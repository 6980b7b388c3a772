package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/events"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Width(12)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

func statusBadge(s batch.Status) string {
	switch s {
	case batch.StatusSuccess:
		return successStyle.Render("✓ " + string(s))
	case batch.StatusPartial:
		return warningStyle.Render("⚠ " + string(s))
	}
	return errorStyle.Render("✗ " + string(s))
}

func outcomeMark(o batch.Outcome) string {
	switch o.Status {
	case batch.OutcomeSucceeded:
		return successStyle.Render("✓")
	case batch.OutcomeSkipped:
		return mutedStyle.Render("-")
	}
	return errorStyle.Render("✗")
}

func opLabel(kind batch.Kind, target batch.TargetType, tempID string) string {
	label := fmt.Sprintf("%s %s", kind, target)
	if tempID != "" {
		label += " " + mutedStyle.Render("("+tempID+")")
	}
	return label
}

// renderResult prints a batch verdict, one line per operation in execution
// order and the temp id mapping.
func renderResult(w io.Writer, res *batch.Result) {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("batch "+res.BatchID), statusBadge(res.Status))
	s := res.Summary
	fmt.Fprintf(&b, "%s%d created, %d updated, %d completed, %d deleted\n",
		labelStyle.Render("succeeded"), s.Created, s.Updated, s.Completed, s.Deleted)
	fmt.Fprintf(&b, "%s%d errors, %d skipped\n", labelStyle.Render("problems"), s.Errors, s.Skipped)

	if len(res.Operations) > 0 {
		b.WriteString("\n")
	}
	for _, o := range res.Operations {
		line := fmt.Sprintf("%s #%d %s", outcomeMark(o), o.Index, opLabel(o.Kind, o.TargetType, o.TempID))
		switch {
		case o.RealID != "":
			line += " → " + o.RealID
		case o.Error != nil:
			line += " " + errorStyle.Render(o.Error.Code) + " " + o.Error.Message
		case o.SkipReason != "":
			line += " " + mutedStyle.Render(string(o.SkipReason))
			if len(o.DependsOn) > 0 {
				line += mutedStyle.Render(fmt.Sprintf(" on %v", o.DependsOn))
			}
		}
		b.WriteString(line + "\n")
	}

	if len(res.TempIDMapping) > 0 {
		b.WriteString("\n" + titleStyle.Render("temp ids") + "\n")
		keys := make([]string, 0, len(res.TempIDMapping))
		for k := range res.TempIDMapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s%s\n", labelStyle.Render(k), res.TempIDMapping[k])
		}
	}

	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	if res.Error != nil {
		renderError(w, res.Error)
	}
}

// renderPlan prints the execution order of a validated batch.
func renderPlan(w io.Writer, plan *batch.Plan) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render("plan"), mutedStyle.Render(fmt.Sprintf("%d operations", len(plan.Steps))))
	for _, step := range plan.Steps {
		line := fmt.Sprintf("%3d. #%d %s", step.Position+1, step.Index, opLabel(step.Kind, step.TargetType, step.TempID))
		if len(step.DependsOn) > 0 {
			line += mutedStyle.Render(fmt.Sprintf(" after %v", step.DependsOn))
		}
		b.WriteString(line + "\n")
	}
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

// renderError prints a batch-level error with its cycles.
func renderError(w io.Writer, e *batch.Error) {
	fmt.Fprintf(w, "%s %s\n", errorStyle.Render(string(e.Code)), e.Message)
	for _, c := range e.Cycles {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("cycle"), strings.Join(c, " → "))
	}
	if len(e.Operations) > 0 && len(e.Cycles) == 0 {
		fmt.Fprintf(w, "  %s %v\n", mutedStyle.Render("operations"), e.Operations)
	}
}

// renderStatus prints bridge availability.
func renderStatus(w io.Writer, st bridge.Status) {
	state := successStyle.Render("✓ available")
	if !st.Available {
		state = errorStyle.Render("✗ unavailable")
	}
	fmt.Fprintf(w, "%s%s %s\n", labelStyle.Render("bridge"), st.Kind, state)
	if st.Detail != "" {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("detail"), st.Detail)
	}
	fmt.Fprintf(w, "%s%d\n", labelStyle.Render("calls"), st.Calls)
}

// formatEvent renders one lifecycle event as a single line.
func formatEvent(ev events.Event) string {
	prefix := mutedStyle.Render(ev.Time.Format("15:04:05")) + " " + ev.BatchID + " "
	switch ev.Type {
	case events.TypeStarted:
		return prefix + fmt.Sprintf("started %d operations, order %v", ev.Operations, ev.Order)
	case events.TypeOperation:
		if ev.Outcome == nil {
			return prefix + "operation"
		}
		o := *ev.Outcome
		line := prefix + outcomeMark(o) + " " + opLabel(o.Kind, o.TargetType, o.TempID)
		switch {
		case o.RealID != "":
			line += " → " + o.RealID
		case o.Error != nil:
			line += " " + o.Error.Code
		case o.SkipReason != "":
			line += " " + string(o.SkipReason)
		}
		return line
	case events.TypeCompleted:
		line := prefix + "completed " + statusBadge(ev.Status)
		if ev.Summary != nil {
			line += fmt.Sprintf(" (%d ok, %d errors, %d skipped)", ev.Summary.Succeeded(), ev.Summary.Errors, ev.Summary.Skipped)
		}
		return line
	case events.TypeRejected:
		if ev.Error != nil {
			return prefix + "rejected " + errorStyle.Render(string(ev.Error.Code)) + " " + ev.Error.Message
		}
		return prefix + "rejected"
	}
	return prefix + string(ev.Type)
}
