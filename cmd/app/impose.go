package main

import (
    "encoding/json"
    "fmt"
    "strings"

    "github.com/spf13/cobra"

    "github.com/local/bookletizer/internal/assembler"
    "github.com/local/bookletizer/internal/pipeline"
    "github.com/local/bookletizer/internal/storage"
)

func newImposeCmd(a *app) *cobra.Command {
    var (
        layout   layoutFlags
        outDir   string
        name     string
        parallel int
        noGuide  bool
        noLabels bool
        validate bool
        upload   bool
        asJSON   bool
    )

    cmd := &cobra.Command{
        Use:   "impose <pdf|url|s3://bucket/key>",
        Short: "Write the booklets of one document",
        Long: `Rasterizes every page of the document and writes one PDF per booklet,
named <stem>_<NN>.pdf, into the output directory (default: "out" beside the input).`,
        Example: `  # 10-sheet saddle-stitched booklets
  bookletizer impose novel.pdf

  # Cut-and-stack booklets of 8 sheets keeping the printed cover
  bookletizer impose novel.pdf --binding edge --sheets 8 --cover --keep-cover

  # Fetch from S3 and upload the results to S3_BUCKET
  bookletizer impose s3://scans/novel.pdf --upload`,
        Args: cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg := a.cfg
            req := pipeline.Request{
                Source:         args[0],
                Name:           name,
                OutputDir:      cfg.Output.Dir,
                Layout:         layout.apply(cmd, cfg.Imposition),
                Render:         cfg.Render,
                Output:         cfg.Output,
                GroupParallel:  cfg.Worker.GroupParallel,
                Creator:        a.creator(),
                MaxSourceBytes: int64(cfg.Server.MaxUploadMB) << 20,
            }
            if outDir != "" { req.OutputDir = outDir }
            if cmd.Flags().Changed("parallel") { req.GroupParallel = parallel }
            if noGuide { req.Output.FoldGuide = false }
            if noLabels { req.Output.Labels = false }
            if validate { req.Output.Validate = true }

            if upload || strings.HasPrefix(args[0], "s3://") {
                if upload && cfg.Storage.Bucket == "" {
                    return fmt.Errorf("--upload needs S3_BUCKET")
                }
                s3c, err := storage.NewS3Client(cmd.Context(), cfg.Storage)
                if err != nil { return err }
                req.Fetcher = s3c
                if upload { req.Uploader = s3c }
            }

            out := cmd.OutOrStdout()
            if !asJSON {
                req.Progress = func(done, total int, b assembler.BookletResult) {
                    fmt.Fprintf(out, "[%d/%d] booklet %d: %d pages, %d sheets -> %s\n", done, total, b.Ordinal, b.Pages, b.Sheets, b.Path)
                }
            }
            rep, err := pipeline.Run(cmd.Context(), req)
            if err != nil { return err }

            if asJSON {
                enc := json.NewEncoder(out)
                enc.SetIndent("", "  ")
                return enc.Encode(rep)
            }
            fmt.Fprintf(out, "%d pages -> %d booklets (%s binding)\n", rep.Document.Pages, len(rep.Result.Booklets), req.Layout.Binding)
            for _, u := range rep.Uploaded { fmt.Fprintf(out, "uploaded %s\n", u) }
            return nil
        },
    }

    layout.register(cmd)
    cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides OUTPUT_DIR)")
    cmd.Flags().StringVar(&name, "name", "", "Name booklets after this file name instead of the input")
    cmd.Flags().IntVarP(&parallel, "parallel", "j", 4, "Booklets imposed concurrently (overrides GROUP_PARALLEL)")
    cmd.Flags().BoolVar(&noGuide, "no-fold-guide", false, "Do not draw the dotted fold guide")
    cmd.Flags().BoolVar(&noLabels, "no-labels", false, "Do not print booklet numbers near the fold")
    cmd.Flags().BoolVar(&validate, "validate", false, "Validate every written PDF")
    cmd.Flags().BoolVar(&upload, "upload", false, "Upload booklets to S3_BUCKET")
    cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full report as JSON")
    return cmd
}
