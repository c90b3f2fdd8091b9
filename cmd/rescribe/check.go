package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/FocuswithJustin/Rescribe/core/convert"
	"github.com/FocuswithJustin/Rescribe/core/selfcheck"
)

// CheckCmd reads a document, writes it back in the same format and reads
// it again, then reports whether the round trip held.
type CheckCmd struct {
	Input   string `arg:"" help:"Input file, or - for stdin"`
	From    string `help:"Format to check (default: by extension, then by content)"`
	MaxLoss string `name:"max-loss" help:"Loss class the round trip may reach (L0-L4)" default:"L1"`
	JSON    bool   `help:"Print the full report as JSON"`
}

func (c *CheckCmd) Run(e *env) error {
	class, err := selfcheck.ParseLossClass(c.MaxLoss)
	if err != nil {
		return err
	}
	data, path, err := readInput(c.Input, e.Stdin)
	if err != nil {
		return err
	}
	f, err := e.Registry.ResolveInput(c.From, path, data)
	if err != nil {
		return err
	}

	report, err := selfcheck.RoundTrip(convert.New(e.Registry), data, f.Name, selfcheck.NewLossBudget(class))
	if err != nil {
		return err
	}

	if c.JSON {
		out, err := report.ToJSON()
		if err != nil {
			return err
		}
		fmt.Fprintf(e.Stdout, "%s\n", out)
	} else {
		tw := tabwriter.NewWriter(e.Stdout, 0, 0, 2, ' ', 0)
		for _, r := range report.Results {
			status := "pass"
			if !r.Pass {
				status = "FAIL"
				if !r.Required {
					status = "differs"
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", status, r.CheckType, r.Label)
		}
		fmt.Fprintf(tw, "loss class:\t%s\t\n", report.Loss.LossClass)
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if !report.Passed() {
		return fmt.Errorf("round trip through %s failed", f.Name)
	}
	return nil
}
