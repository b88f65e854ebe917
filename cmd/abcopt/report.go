package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/GriffinCanCode/abcopt/pkg/asm"
	"github.com/GriffinCanCode/abcopt/pkg/diagnostics"
	"github.com/GriffinCanCode/abcopt/pkg/method"
	"github.com/GriffinCanCode/abcopt/pkg/optimizer"
)

func printProgram(w io.Writer, prog *method.Program) {
	for i, mb := range prog.Methods {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# method %s\n", mb.Name)
		fmt.Fprint(w, asm.Format(mb.Instructions))
	}
}

func printDiagnostics(w io.Writer, found []diagnostics.Diagnostic) {
	if len(found) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Kind", "Location", "Method", "Block", "Message"})
	for _, d := range found {
		table.Append([]string{d.Kind.String(), location(d), d.Method, strconv.Itoa(d.Block), d.Message})
	}
	table.Render()
}

func location(d diagnostics.Diagnostic) string {
	if d.SourcePath == "" {
		return "-"
	}
	if d.Line < 0 {
		return d.SourcePath
	}
	return d.SourcePath + ":" + strconv.Itoa(d.Line)
}

func printStats(w io.Writer, report *optimizer.Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Method", "Before", "After", "Removed", "Compacted", "Rewrites"})
	for _, m := range report.Methods {
		table.Append([]string{
			m.Method,
			strconv.Itoa(m.Before),
			strconv.Itoa(m.After),
			strconv.Itoa(m.Elimination.Removed),
			strconv.Itoa(m.Elimination.Compacted),
			strconv.Itoa(m.Rules.Total()),
		})
	}
	elim := report.Elimination()
	table.SetFooter([]string{
		"Total",
		strconv.Itoa(report.Before()),
		strconv.Itoa(report.After()),
		strconv.Itoa(elim.Removed),
		strconv.Itoa(elim.Compacted),
		strconv.Itoa(report.Rules().Total()),
	})
	table.Render()
	fmt.Fprintf(w, "optimized %d methods in %s\n", len(report.Methods), report.Duration)

	rules := report.Rules()
	if len(rules) == 0 {
		return
	}
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rule", "Count"})
	for _, name := range names {
		table.Append([]string{name, strconv.Itoa(rules[name])})
	}
	table.Render()
}
