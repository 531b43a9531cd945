package main

import (
    "encoding/json"
    "fmt"
    "io"
    "text/tabwriter"

    "github.com/spf13/cobra"
    "gopkg.in/yaml.v3"

    "github.com/local/bookletizer/internal/imposition"
    "github.com/local/bookletizer/internal/source"
)

func newPlanCmd(a *app) *cobra.Command {
    var (
        layout layoutFlags
        pages  int
        format string
    )

    cmd := &cobra.Command{
        Use:   "plan [pdf]",
        Short: "Show how pages are distributed over booklets",
        Long: `Computes the booklet plan without rendering anything. The page count comes
from --pages or from the given PDF.`,
        Example: `  bookletizer plan --pages 202 --cover --keep-cover
  bookletizer plan novel.pdf --format json`,
        Args: cobra.MaximumNArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            if len(args) == 1 {
                doc, err := source.Inspect(args[0])
                if err != nil { return err }
                pages = doc.Pages
            } else if !cmd.Flags().Changed("pages") {
                return fmt.Errorf("give a PDF or --pages")
            }
            cfg, err := layout.apply(cmd, a.cfg.Imposition).Layout()
            if err != nil { return err }
            d, err := imposition.Describe(pages, cfg)
            if err != nil { return err }
            return writeDescription(cmd.OutOrStdout(), d, format)
        },
    }

    layout.register(cmd)
    cmd.Flags().IntVarP(&pages, "pages", "n", 0, "Page count to plan for")
    cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, yaml or json")
    return cmd
}

func writeDescription(w io.Writer, d imposition.Description, format string) error {
    switch format {
    case "yaml":
        enc := yaml.NewEncoder(w)
        enc.SetIndent(2)
        if err := enc.Encode(d); err != nil { return err }
        return enc.Close()
    case "json":
        enc := json.NewEncoder(w)
        enc.SetIndent("", "  ")
        return enc.Encode(d)
    case "table":
        p := d.Plan
        fmt.Fprintf(w, "pages %d, adjusted %d, padded %d (%d blank at the end)\n", p.PageCount, p.AdjustedPages, p.PaddedPages, p.TailPadPages)
        fmt.Fprintf(w, "%d booklets of %d sheets, %d with one extra sheet, %s binding\n\n", p.BookletCount, p.NominalSheets, p.ExtendedBookletCount, d.Binding)
        tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
        fmt.Fprintln(tw, "BOOKLET\tRANGE\tSHEETS\tSLOTS\tBLANKS\tKIND")
        for _, g := range d.Groups {
            fmt.Fprintf(tw, "%d\t[%d, %d)\t%d\t%d\t%d\t%s\n", g.Ordinal, g.Start, g.End, g.Sheets, g.Slots, g.Blanks, g.Kind)
        }
        return tw.Flush()
    default:
        return fmt.Errorf("unknown format %q", format)
    }
}
