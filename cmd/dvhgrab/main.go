package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mrsinham/dvhgrab/cmd/dvhgrab/console"
	"github.com/mrsinham/dvhgrab/internal/archive"
	"github.com/mrsinham/dvhgrab/internal/config"
	"github.com/mrsinham/dvhgrab/internal/logger"
	"github.com/mrsinham/dvhgrab/internal/metric"
	"github.com/mrsinham/dvhgrab/internal/report"
	"github.com/mrsinham/dvhgrab/internal/session"
)

// version is set at build time via -ldflags
var version = "dev"

// aliasFlags collects repeated --alias values.
type aliasFlags []string

func (a *aliasFlags) String() string { return strings.Join(*a, ",") }

func (a *aliasFlags) Set(s string) error {
	*a = append(*a, s)
	return nil
}

// options are the parsed command-line flags shared by the analysis and the
// console entry points.
type options struct {
	zip           string
	structureFile string
	doseFile      string
	analysis      string
	configsDir    string
	mode          string
	prescription  string
	aliases       aliasFlags
	configFile    string
	logLevel      string

	listFiles      bool
	listStructures bool
	listAliases    bool
	describe       bool
	export         string
	copy           bool
	plot           string

	set map[string]bool
}

func main() {
	// Subcommands are dispatched before flag.Parse
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "phantom":
			if err := runPhantom(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		case "console":
			opts, err := parseFlags(flag.NewFlagSet("console", flag.ExitOnError), os.Args[2:])
			if err == nil {
				err = runConsole(opts)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	fs := flag.CommandLine
	interactive := fs.Bool("interactive", false, "Launch the interactive console")
	fs.BoolVar(interactive, "i", false, "Launch the interactive console (shortcut)")
	help := fs.Bool("help", false, "Show help message")
	showVersion := fs.Bool("version", false, "Show version")

	opts, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Printf("dvhgrab %s\n", version)
		os.Exit(0)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}

	if *interactive {
		err = runConsole(opts)
	} else {
		err = run(opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := &options{}
	fs.StringVar(&o.zip, "zip", "", "Zip archive of DICOM files")
	fs.StringVar(&o.structureFile, "structure-file", "", "Structure set entry of the archive")
	fs.StringVar(&o.doseFile, "dose-file", "", "Dose entry of the archive")
	fs.StringVar(&o.analysis, "analysis", "", "Analysis definition name (default: first in configs dir)")
	fs.StringVar(&o.configsDir, "configs-dir", "", "Directory of analysis definitions (default: configs)")
	fs.StringVar(&o.mode, "mode", "", "Display mode: relative or absolute (default: relative)")
	fs.StringVar(&o.prescription, "prescription", "", "Prescription dose in Gy")
	fs.Var(&o.aliases, "alias", "Structure alias 'alias=structure' (repeatable)")
	fs.StringVar(&o.configFile, "config", "", "Load configuration from YAML file")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	fs.BoolVar(&o.listFiles, "list-files", false, "List structure set and dose entries of the archive")
	fs.BoolVar(&o.listStructures, "list-structures", false, "List the structures of the structure file")
	fs.BoolVar(&o.listAliases, "list-aliases", false, "List the registered aliases")
	fs.BoolVar(&o.describe, "describe", false, "Show the study description of the dose file")
	fs.StringVar(&o.export, "export", "", "Print results as text: full or values")
	fs.BoolVar(&o.copy, "copy", false, "Copy results to the clipboard")
	fs.StringVar(&o.plot, "plot", "", "Write a PNG chart of the computed DVHs")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.set["configs-dir"] {
		cfg.Analysis.ConfigsDir = o.configsDir
	}
	if o.set["analysis"] {
		cfg.Analysis.Default = o.analysis
	}
	if o.set["mode"] {
		cfg.Analysis.Mode = strings.ToLower(o.mode)
	}
	if o.set["log-level"] {
		cfg.Logging.Level = o.logLevel
	}
	if o.set["export"] {
		cfg.Report.Export = o.export
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// newSession builds a session from the configuration and registers the
// configured and command-line aliases.
func newSession(cfg *config.Config, o *options) (*session.Session, error) {
	settings := metric.Settings{
		Relative:     cfg.Analysis.Relative(),
		Prescription: cfg.Analysis.Prescription,
	}
	sess := session.New(session.Options{
		ConfigsDir:  cfg.Analysis.ConfigsDir,
		DescribeTag: cfg.Archive.DescribeTag,
		Settings:    &settings,
	})

	if o.set["prescription"] {
		if st := sess.SetPrescription(o.prescription); !st.OK {
			return nil, fmt.Errorf("%s", st.Text)
		}
	}
	for _, a := range append(append([]string{}, cfg.Analysis.Aliases...), o.aliases...) {
		if st := sess.AddAlias(a); !st.OK {
			return nil, fmt.Errorf("%s: %q", st.Text, a)
		}
	}
	if cfg.Analysis.Default != "" {
		if st := sess.SelectAnalysis(cfg.Analysis.Default); !st.OK {
			return nil, fmt.Errorf("%s", st.Text)
		}
	}
	return sess, nil
}

func runConsole(o *options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	sess, err := newSession(cfg, o)
	if err != nil {
		return err
	}
	format, err := session.ParseExportFormat(cfg.Report.Export)
	if err != nil {
		return err
	}
	return console.Run(console.Options{
		Session:   sess,
		Clipboard: report.SystemClipboard{},
		Archive:   o.zip,
		Export:    format,
		PlotPath:  o.plot,
	})
}

// run executes the non-interactive commands. When --export is given, stdout
// carries only the exported text.
func run(o *options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	sess, err := newSession(cfg, o)
	if err != nil {
		return err
	}
	quiet := o.set["export"]
	say := func(format string, args ...interface{}) {
		if !quiet {
			fmt.Printf(format, args...)
		}
	}

	if o.listAliases {
		lines, st := sess.ListAliases()
		if !st.OK {
			return fmt.Errorf("%s", st.Text)
		}
		for _, l := range lines {
			fmt.Println(l)
		}
		if o.zip == "" {
			return nil
		}
	}

	if o.zip == "" {
		printUsage()
		return fmt.Errorf("--zip is required")
	}

	st := sess.OpenArchive(o.zip)
	if !st.OK {
		return fmt.Errorf("%s", st.Text)
	}
	say("%s\n", st.Text)
	ix := sess.Index()

	if o.listFiles {
		printIndex(ix)
	}

	if err := selectFiles(sess, ix, o, say); err != nil {
		return err
	}

	if o.describe {
		_, doseFile, desc := sess.Selection()
		if doseFile == "" {
			return fmt.Errorf("--describe needs a dose file")
		}
		fmt.Printf("Dose study description: %s\n", desc)
	}

	if o.listStructures {
		names, st := sess.ListStructures()
		if !st.OK {
			return fmt.Errorf("%s", st.Text)
		}
		for _, n := range names {
			fmt.Println(n)
		}
	}

	// Listing flags alone do not trigger an analysis
	if (o.listFiles || o.listStructures || o.listAliases || o.describe) &&
		!o.set["export"] && !o.copy && o.plot == "" && !o.set["analysis"] {
		return nil
	}

	def, err := sess.Definition()
	if err != nil {
		return fmt.Errorf("no analysis definition: %w", err)
	}
	say("Analysing with %s...\n", def)

	table, st := sess.Analyze()
	if table == nil {
		return fmt.Errorf("%s", st.Text)
	}

	format, err := session.ParseExportFormat(cfg.Report.Export)
	if err != nil {
		return err
	}
	if quiet {
		text, _ := sess.Export(format)
		fmt.Print(text)
		if format == session.ExportValues {
			fmt.Println()
		}
	} else {
		fmt.Println(report.Table(table))
		fmt.Println(report.Message(table))
		if errs := report.Errors(table); errs != "" {
			fmt.Print(errs)
		}
	}

	if o.copy {
		if st := sess.Copy(format, report.SystemClipboard{}); !st.OK {
			return fmt.Errorf("%s", st.Text)
		}
		say("%s\n", session.StatusCopied)
	}

	if o.plot != "" {
		if err := writePlot(o.plot, table); err != nil {
			return err
		}
		say("DVH chart written to %s\n", o.plot)
	}
	return nil
}

// selectFiles applies --structure-file and --dose-file. Without them, a
// file kind with exactly one candidate in the archive is selected.
func selectFiles(sess *session.Session, ix *archive.Index, o *options, say func(string, ...interface{})) error {
	structureFile := o.structureFile
	if structureFile == "" && len(ix.Structures) == 1 {
		structureFile = ix.Structures[0].Path
		say("Using structure file: %s\n", structureFile)
	}
	if structureFile != "" {
		if st := sess.SelectStructureFile(structureFile); !st.OK {
			return fmt.Errorf("%s", st.Text)
		}
	}

	doseFile := o.doseFile
	if doseFile == "" && len(ix.Doses) == 1 {
		doseFile = ix.Doses[0].Path
		say("Using dose file: %s\n", doseFile)
	}
	if doseFile != "" {
		if _, st := sess.SelectDoseFile(doseFile); !st.OK {
			return fmt.Errorf("%s", st.Text)
		}
	}
	return nil
}

func printIndex(ix *archive.Index) {
	fmt.Println("Structure files:")
	for _, p := range ix.StructurePaths() {
		fmt.Printf("  %s\n", p)
	}
	fmt.Println("Dose files:")
	for _, p := range ix.DosePaths() {
		fmt.Printf("  %s\n", p)
	}
	if len(ix.Skipped) > 0 {
		fmt.Printf("Skipped %d unreadable entries\n", len(ix.Skipped))
	}
}

func writePlot(path string, table *session.ResultsTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}
	if err := report.PlotDVH(f, report.CurvesFromResults(table)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  dvhgrab --zip <ARCHIVE> [options]")
	fmt.Fprintln(os.Stderr, "  dvhgrab console [options]")
	fmt.Fprintln(os.Stderr, "  dvhgrab phantom [options]")
	fmt.Fprintln(os.Stderr, "\nRun 'dvhgrab --help' for details.")
}

func printHelp() {
	fmt.Println("dvhgrab")
	fmt.Println("=======")
	fmt.Println()
	fmt.Println("Extract dose-volume statistics from zipped RT DICOM exports.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dvhgrab --zip <ARCHIVE> [options]")
	fmt.Println()
	fmt.Println("Archive:")
	fmt.Println("  --zip <FILE>             Zip archive of DICOM files (required)")
	fmt.Println("  --list-files             List structure set and dose entries")
	fmt.Println("  --structure-file <ENTRY> Structure set entry (auto-selected when unique)")
	fmt.Println("  --dose-file <ENTRY>      Dose entry (auto-selected when unique)")
	fmt.Println("  --describe               Show the study description of the dose file")
	fmt.Println("  --list-structures        List the structures of the structure file")
	fmt.Println()
	fmt.Println("Analysis:")
	fmt.Println("  --analysis <NAME>        Definition <configs-dir>/<NAME>.txt (default: first one)")
	fmt.Println("  --configs-dir <DIR>      Directory of analysis definitions (default: configs)")
	fmt.Println("  --mode <MODE>            relative or absolute (default: relative)")
	fmt.Println("  --prescription <GY>      Prescription dose in Gy")
	fmt.Println("  --alias <ALIAS=NAME>     Try ALIAS when NAME is not found (repeatable)")
	fmt.Println("  --list-aliases           List the registered aliases")
	fmt.Println()
	fmt.Println("Reporting:")
	fmt.Println("  --export <FORMAT>        Print results as 'full' rows or comma-separated 'values'")
	fmt.Println("  --copy                   Copy results to the clipboard")
	fmt.Println("  --plot <FILE>            Write a PNG chart of the computed DVHs")
	fmt.Println()
	fmt.Println("General:")
	fmt.Println("  --config <FILE>          Load configuration from YAML file")
	fmt.Println("  --log-level <LEVEL>      debug, info, warn, error (default: warn)")
	fmt.Println("  -i, --interactive        Launch the interactive console")
	fmt.Println("  --version                Show version")
	fmt.Println("  --help                   Show this help message")
	fmt.Println()
	fmt.Println("Subcommands:")
	fmt.Println("  console                  Interactive console (accepts the flags above)")
	fmt.Println("  phantom                  Write a synthetic RT archive (see 'dvhgrab phantom --help')")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # List the RT files of an export")
	fmt.Println("  dvhgrab --zip export.zip --list-files")
	fmt.Println()
	fmt.Println("  # Run the prostate analysis with a 60 Gy prescription")
	fmt.Println("  dvhgrab --zip export.zip --analysis prostate --prescription 60")
	fmt.Println()
	fmt.Println("  # Paste-ready values, with an alias for a renamed structure")
	fmt.Println("  dvhgrab --zip export.zip --alias PTV_60=PTV --export values")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Printf("  %s_* variables override configuration keys, e.g. %s_ANALYSIS_MODE=absolute\n",
		config.EnvPrefix, config.EnvPrefix)
}
