package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/maruel/natural"
	"github.com/samber/lo"
	cli "github.com/urfave/cli/v3"

	"nfex/nfe"
)

func listFields(_ context.Context, cmd *cli.Command) error {
	return writeFields(os.Stdout, nfe.Builtin(), cmd.Bool("sort"))
}

// writeFields prints catalog grouped by function. Fields selected when nothing
// else is configured are marked with asterisk.
func writeFields(w io.Writer, c *nfe.Catalog, sorted bool) error {
	groups := lo.GroupBy(c.Fields(), func(f nfe.Field) nfe.Group { return f.Group })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, g := range c.Groups() {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s:\n", g)

		fields := groups[g]
		if sorted {
			names := lo.Map(fields, func(f nfe.Field, _ int) string { return f.Name })
			sort.Sort(natural.StringSlice(names))
			fields = lo.Map(names, func(n string, _ int) nfe.Field { f, _ := c.Lookup(n); return f })
		}
		for _, f := range fields {
			mark := " "
			if f.Default {
				mark = "*"
			}
			fmt.Fprintf(tw, "  %s %s\t%s\t%s\t%s\n", mark, f.Name, f.Level, f.Kind, f.Locator)
		}
	}
	return tw.Flush()
}
