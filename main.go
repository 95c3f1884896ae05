package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"squish/lib"
	"squish/pkg/config"
	"squish/pkg/fsutil"
	"squish/pkg/progress"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "squish",
		Usage: "Compact, compress, and deduplicate files into a single archive",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "max-threads",
				Aliases: []string{"j"},
				Usage:   "maximum number of worker threads",
				Value:   cfg.MaxThreads,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			packCommand(),
			listCommand(),
			unpackCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func packCommand() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "Compress and deduplicate a directory into a .squish archive",
		ArgsUsage: "input",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "archive path (defaults to input + \".squish\")",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: squish pack input [-o output]", 1)
			}
			input := c.Args().First()
			output := c.String("output")
			if output == "" {
				output = input + ".squish"
			}

			tracker := progress.NewTracker()
			defer tracker.Finish()
			tracker.SetMessage("Finding files")

			files, err := fsutil.CollectFiles(input)
			if err != nil {
				return fmt.Errorf("list files: %w", err)
			}

			size, err := lib.Pack(input, output, files, lib.Options{
				MaxThreads: c.Int("max-threads"),
				Progress:   tracker,
				Logger:     newLogger(c.Bool("verbose")),
			})
			if err != nil {
				return fmt.Errorf("pack: %w", err)
			}
			tracker.Finish()

			fmt.Printf("Packing complete! Saved %d files as %s (%s)\n",
				len(files), output, humanize.Bytes(uint64(size)))
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "Display the contents of a .squish archive",
		ArgsUsage: "archive",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "simple",
				Usage: "machine-readable output",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: squish list archive [--simple]", 1)
			}

			summary, err := lib.List(c.Args().First())
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}

			if c.Bool("simple") {
				printSimpleSummary(summary)
			} else {
				printSummary(summary)
			}
			return nil
		},
	}
}

func unpackCommand() *cli.Command {
	return &cli.Command{
		Name:      "unpack",
		Usage:     "Extract all files from a .squish archive into a directory",
		ArgsUsage: "archive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output directory (defaults to archive name without .squish)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: squish unpack archive [-o output]", 1)
			}
			input := c.Args().First()
			output := c.String("output")
			if output == "" {
				output = strings.TrimSuffix(input, ".squish")
			}

			tracker := progress.NewTracker()
			defer tracker.Finish()

			err := lib.Unpack(input, output, lib.Options{
				MaxThreads: c.Int("max-threads"),
				Progress:   tracker,
				Logger:     newLogger(c.Bool("verbose")),
			})
			if err != nil {
				return fmt.Errorf("unpack: %w", err)
			}
			tracker.Finish()

			fmt.Printf("Unpacking complete! %s was unsquished into %s\n", input, output)
			return nil
		},
	}
}

// printSimpleSummary emits one stats line plus a size/path listing,
// suitable for piping into other tools.
func printSimpleSummary(summary *lib.Summary) {
	fmt.Printf("squish_size(bytes): %d, original_size(bytes): %d, reduction: %.2f%%, number_of_files: %d, chunks_count: %d\n",
		summary.ArchiveSize, summary.TotalOriginalSize, summary.ReductionPercent,
		len(summary.Files), summary.UniqueChunks)
	for _, file := range summary.Files {
		fmt.Printf("%12d  %s\n", file.OriginalSize, file.Path)
	}
}

func printSummary(summary *lib.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Squish summary")
	fmt.Fprintf(w, "  Creation date\t%s\n", summary.CreatedAt.Format("15:04 02/01/2006"))
	fmt.Fprintf(w, "  Version\t%s\n", summary.Version)
	fmt.Fprintf(w, "  Compressed size\t%s\n", humanize.Bytes(uint64(summary.ArchiveSize)))
	fmt.Fprintf(w, "  Original size\t%s\n", humanize.Bytes(summary.TotalOriginalSize))
	fmt.Fprintf(w, "  Reduction\t%.1f%%\n", summary.ReductionPercent)
	fmt.Fprintf(w, "  Files\t%d\n", len(summary.Files))
	fmt.Fprintf(w, "  Unique chunks\t%d\n", summary.UniqueChunks)
	w.Flush()

	// Breakdown of file counts by top-level directory.
	counts := make(map[string]int)
	for _, file := range summary.Files {
		top := file.Path
		if i := strings.IndexByte(top, '/'); i >= 0 {
			top = top[:i]
		}
		counts[top]++
	}
	type dirCount struct {
		dir   string
		count int
	}
	breakdown := make([]dirCount, 0, len(counts))
	for dir, count := range counts {
		breakdown = append(breakdown, dirCount{dir, count})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].count != breakdown[j].count {
			return breakdown[i].count > breakdown[j].count
		}
		return breakdown[i].dir < breakdown[j].dir
	})

	fmt.Println("\nTop-level breakdown")
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, entry := range breakdown {
		fmt.Fprintf(w, "  %s\t%d\n", entry.dir, entry.count)
	}
	w.Flush()
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
