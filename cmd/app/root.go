package main

import (
    "fmt"

    "github.com/joho/godotenv"
    "github.com/spf13/cobra"

    cfgpkg "github.com/local/bookletizer/internal/config"
    logpkg "github.com/local/bookletizer/internal/logger"
)

const appName = "bookletizer"

// app carries the configuration every subcommand starts from.
type app struct {
    cfg      cfgpkg.Config
    logLevel string
    noLog    bool
}

func (a *app) creator() string {
    return fmt.Sprintf("%s v%s - booklet imposition", appName, version)
}

func newRootCmd() *cobra.Command {
    a := &app{}
    cmd := &cobra.Command{
        Use:   appName,
        Short: "Impose PDF documents into printable booklets",
        Long: `bookletizer lays the pages of a PDF out as booklets: each physical sheet carries
two pages per side, and the sheets fold (middle binding) or stack (edge binding)
into booklets that read in order.

It runs one-off from the command line or as a queue-backed HTTP service.`,
        SilenceUsage: true,
        PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
            // Load .env file if present (ignore errors)
            _ = godotenv.Load()
            a.cfg = cfgpkg.FromEnv()
            if a.logLevel != "" { a.cfg.Logging.Level = a.logLevel }
            if a.noLog { a.cfg.Logging.Level = "disabled" }
            return logpkg.Init(logpkg.FromConfig(a.cfg, appName))
        },
        PersistentPostRun: func(cmd *cobra.Command, args []string) {
            logpkg.Close()
        },
    }
    cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
    cmd.PersistentFlags().BoolVarP(&a.noLog, "quiet", "q", false, "Disable logging")

    cmd.AddCommand(newImposeCmd(a))
    cmd.AddCommand(newPlanCmd(a))
    cmd.AddCommand(newSplitCmd(a))
    cmd.AddCommand(newServeCmd(a))
    return cmd
}

// layoutFlags binds the imposition options shared by several commands.
// Values only override the environment when the flag is set.
type layoutFlags struct {
    sheets    int
    binding   string
    hasCover  bool
    keepCover bool
}

func (l *layoutFlags) register(cmd *cobra.Command) {
    cmd.Flags().IntVarP(&l.sheets, "sheets", "s", 10, "Sheets per booklet (overrides SHEETS_PER_BOOKLET)")
    cmd.Flags().StringVarP(&l.binding, "binding", "b", "middle", "Binding: middle (fold) or edge (cut and stack)")
    cmd.Flags().BoolVar(&l.hasCover, "cover", false, "First and last pages are the cover")
    cmd.Flags().BoolVar(&l.keepCover, "keep-cover", false, "Print the cover with the booklets instead of stripping it")
}

func (l *layoutFlags) apply(cmd *cobra.Command, c cfgpkg.ImpositionConfig) cfgpkg.ImpositionConfig {
    f := cmd.Flags()
    if f.Changed("sheets") { c.SheetsPerBooklet = l.sheets }
    if f.Changed("binding") { c.Binding = l.binding }
    if f.Changed("cover") { c.HasCover = l.hasCover }
    if f.Changed("keep-cover") { c.KeepCover = l.keepCover }
    return c
}
