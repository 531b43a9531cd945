package main

import (
    "fmt"

    "github.com/spf13/cobra"

    "github.com/local/bookletizer/internal/imposition"
    "github.com/local/bookletizer/internal/source"
)

func newSplitCmd(a *app) *cobra.Command {
    var (
        size   int
        outDir string
    )

    cmd := &cobra.Command{
        Use:   "split <pdf>",
        Short: "Split a PDF into booklet-sized parts without imposing",
        Long: `Cuts the document into consecutive page ranges, one PDF per part, named
<stem>_<NN>.pdf. The default part size is one booklet: sheets per booklet times four.`,
        Args: cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            doc, err := source.Inspect(args[0])
            if err != nil { return err }
            if !cmd.Flags().Changed("size") {
                size = a.cfg.Imposition.SheetsPerBooklet * imposition.PagesPerSheet
            }
            dir := outDir
            if dir == "" { dir = a.cfg.Output.Dir }
            if dir == "" { dir = source.DefaultOutputDir(doc.Path) }
            paths, err := source.Split(doc, dir, size)
            if err != nil { return err }
            for _, p := range paths { fmt.Fprintln(cmd.OutOrStdout(), p) }
            return nil
        },
    }
    cmd.Flags().IntVar(&size, "size", 40, "Pages per part")
    cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides OUTPUT_DIR)")
    return cmd
}
