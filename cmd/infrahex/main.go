package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/CHRISCARLON/infra-hex/internal/app"
	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/classify"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/config"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/logging"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/table"
	"github.com/CHRISCARLON/infra-hex/internal/workflows"
)

var (
	outFile  string
	format   string
	zoom     int
	classes  int
	palette  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "infrahex",
	Short:         "Count gas pipes per H3 hex cell",
	Long:          `Fetches pipe records for a bounding box or a built-up area and bins them onto an H3 grid.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New(os.Stderr, logLevel, "text"))
	},
}

var bboxCmd = &cobra.Command{
	Use:   "bbox",
	Short: "Summarize pipes inside a bounding box",
	RunE:  runBBox,
}

var areaCmd = &cobra.Command{
	Use:   "area",
	Short: "Summarize pipes inside a built-up area",
	RunE:  runArea,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a batch of area summaries on the Temporal worker",
	RunE:  runBatch,
}

var (
	minLat, minLon, maxLat, maxLon float64
	objectID                       int64
	objectIDs                      []int64
	wait                           bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	for _, c := range []*cobra.Command{bboxCmd, areaCmd} {
		c.Flags().IntVarP(&zoom, "zoom", "z", 0, "H3 resolution (0-15)")
		c.Flags().StringVarP(&format, "format", "f", string(table.FormatGeoJSON), "Output format: arrow, geojson or json")
		c.Flags().StringVarP(&outFile, "out", "o", "", "Output file (default stdout)")
		c.Flags().IntVar(&classes, "classes", 0, "Jenks classes added to json/geojson output (0 = none)")
		c.Flags().StringVar(&palette, "palette", "", "Colour palette for classes")
		_ = c.MarkFlagRequired("zoom")
	}

	bboxCmd.Flags().Float64Var(&minLat, "min-lat", 0, "Southern bound")
	bboxCmd.Flags().Float64Var(&minLon, "min-lon", 0, "Western bound")
	bboxCmd.Flags().Float64Var(&maxLat, "max-lat", 0, "Northern bound")
	bboxCmd.Flags().Float64Var(&maxLon, "max-lon", 0, "Eastern bound")
	for _, name := range []string{"min-lat", "min-lon", "max-lat", "max-lon"} {
		_ = bboxCmd.MarkFlagRequired(name)
	}

	areaCmd.Flags().Int64Var(&objectID, "object-id", 0, "Built-up area OBJECTID")
	_ = areaCmd.MarkFlagRequired("object-id")

	batchCmd.Flags().Int64SliceVar(&objectIDs, "object-id", nil, "Built-up area OBJECTIDs (repeatable)")
	batchCmd.Flags().IntVarP(&zoom, "zoom", "z", 0, "H3 resolution (0-15)")
	batchCmd.Flags().BoolVar(&wait, "wait", true, "Wait for the workflow result")
	_ = batchCmd.MarkFlagRequired("object-id")
	_ = batchCmd.MarkFlagRequired("zoom")

	rootCmd.AddCommand(bboxCmd, areaCmd, batchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if kind := domain.KindOf(err); kind != domain.KindUnknown {
			fmt.Fprintf(os.Stderr, "%s: %v\n", kind, err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func runBBox(cmd *cobra.Command, args []string) error {
	bbox := domain.NewBBox(minLat, minLon, maxLat, maxLon)
	return summarize(cmd.Context(), func(ctx context.Context, p *app.Pipeline) (*domain.HexSummaryTable, error) {
		return p.Summaries.SummarizeByBBox(ctx, bbox, zoom)
	})
}

func runArea(cmd *cobra.Command, args []string) error {
	return summarize(cmd.Context(), func(ctx context.Context, p *app.Pipeline) (*domain.HexSummaryTable, error) {
		return p.Summaries.SummarizeByArea(ctx, objectID, zoom)
	})
}

func summarize(ctx context.Context, run func(context.Context, *app.Pipeline) (*domain.HexSummaryTable, error)) error {
	f, err := table.ParseFormat(format, table.FormatGeoJSON)
	if err != nil {
		return err
	}
	if err := classify.ValidateClasses(classes); err != nil {
		return err
	}

	cfg, err := config.Load("infrahex-cli")
	if err != nil {
		return err
	}
	pipeline, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	summary, err := run(ctx, pipeline)
	if err != nil {
		return err
	}

	w := io.Writer(os.Stdout)
	if outFile != "" {
		file, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if err := writeSummary(w, summary, f, classes, palette); err != nil {
		return err
	}
	slog.Info("summary written", "rows", len(summary.Rows), "skipped", summary.Skipped, "format", f)
	return nil
}

// writeSummary packages summary in format f. Classes are ignored for Arrow output.
func writeSummary(w io.Writer, summary *domain.HexSummaryTable, f table.Format, nClasses int, palette string) error {
	tbl, err := table.FromSummary(summary)
	if err != nil {
		return err
	}
	if nClasses > 0 && f != table.FormatArrow {
		tbl.Classify(nClasses, palette)
	}
	return tbl.Write(w, f)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("infrahex-cli")
	if err != nil {
		return err
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("area-batch-%d", time.Now().UnixNano()),
		TaskQueue: cfg.Temporal.TaskQueue,
	}
	run, err := c.ExecuteWorkflow(cmd.Context(), opts, workflows.AreaBatchWorkflow,
		workflows.AreaBatchInput{ObjectIDs: objectIDs, Zoom: zoom})
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	slog.Info("area batch started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	if !wait {
		return nil
	}

	var result workflows.AreaBatchResult
	if err := run.Get(cmd.Context(), &result); err != nil {
		return fmt.Errorf("area batch: %w", err)
	}
	for _, s := range result.Summaries {
		fmt.Printf("%d\trows=%d\tpipes=%d\tskipped=%d\n", s.ObjectID, s.Rows, s.Pipes, s.Skipped)
	}
	for _, f := range result.Failures {
		fmt.Printf("%d\tFAILED %s: %s\n", f.ObjectID, f.Kind, f.Error)
	}
	return nil
}
