package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maruel/insurdash/internal/csvdb"
	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/server/dto"
)

func newMatchCmd(opts *rootOptions) *cobra.Command {
	var (
		req         dto.MatchRequest
		age         int
		bmi         float64
		children    int
		showMatches bool
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find the average charge of comparable records",
		Long: "Find records within 10 years of age and 10 points of BMI sharing the\n" +
			"other attributes. When none match, a random charge within the\n" +
			"dataset's range is returned.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Age, req.BMI, req.Children = &age, &bmi, &children
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()
			resp, err := opts.client().Match(ctx, &req)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, resp.Message)
			if resp.AverageCharges != nil {
				fmt.Fprintf(w, "Average charges: %.2f (%d records)\n", *resp.AverageCharges, len(resp.Matches))
				if showMatches {
					return printRecords(w, resp.Matches)
				}
				return nil
			}
			if resp.RandomCharge != nil {
				fmt.Fprintf(w, "Random charge: %.2f\n", *resp.RandomCharge)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&age, "age", 0, "Age")
	f.Float64Var(&bmi, "bmi", 0, "Body mass index")
	f.StringVar(&req.Gender, "sex", "", "Sex (male, female)")
	f.IntVar(&children, "children", 0, "Number of children")
	f.StringVar(&req.Smoke, "smoker", "", "Smoker (yes, no)")
	f.StringVar(&req.Region, "region", "", "Region (southwest, southeast, northwest, northeast)")
	f.BoolVar(&showMatches, "show-matches", false, "Print the matching records")
	for _, name := range []string{"age", "bmi", "sex", "children", "smoker", "region"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		req      dto.AddRecordRequest
		age      int
		bmi      float64
		children int
		charges  float64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a record to the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Age, req.BMI, req.Children, req.Charges = &age, &bmi, &children, &charges
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()
			resp, err := opts.client().AddRecord(ctx, &req)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, resp.Message)
			return printRecords(w, []dto.Record{resp.Data})
		},
	}
	f := cmd.Flags()
	f.IntVar(&age, "age", 0, "Age")
	f.StringVar(&req.Sex, "sex", "", "Sex (male, female)")
	f.Float64Var(&bmi, "bmi", 0, "Body mass index")
	f.IntVar(&children, "children", 0, "Number of children")
	f.StringVar(&req.Smoker, "smoker", "", "Smoker (yes, no)")
	f.StringVar(&req.Region, "region", "", "Region (southwest, southeast, northwest, northeast)")
	f.Float64Var(&charges, "charges", 0, "Charges billed by the insurance")
	for _, name := range []string{"age", "sex", "bmi", "children", "smoker", "region", "charges"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newRecordsCmd(opts *rootOptions) *cobra.Command {
	var offset, limit int
	var format string
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Print dataset records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()
			resp, err := opts.client().ListRecords(ctx, offset, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch format {
			case "table":
				if err := printRecords(w, resp.Records); err != nil {
					return err
				}
				fmt.Fprintf(w, "%d of %d records\n", len(resp.Records), resp.Total)
				return nil
			case "csv":
				return writeCSV(w, resp.Records)
			case "json":
				return printJSON(w, resp)
			default:
				return fmt.Errorf("unknown format %q, want table, csv or json", format)
			}
		},
	}
	f := cmd.Flags()
	f.IntVar(&offset, "offset", 0, "Index of the first record")
	f.IntVar(&limit, "limit", 20, "Maximum number of records, 0 for all")
	f.StringVar(&format, "format", "table", "Output format (table, csv, json)")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard aggregates as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()
			resp, err := opts.client().Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var at, format string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List dataset commits, or print the records as of one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()
			w := cmd.OutOrStdout()
			if at != "" {
				resp, err := opts.client().HistoryRecords(ctx, at)
				if err != nil {
					return err
				}
				switch format {
				case "table":
					return printRecords(w, resp.Records)
				case "csv":
					return writeCSV(w, resp.Records)
				case "json":
					return printJSON(w, resp)
				default:
					return fmt.Errorf("unknown format %q, want table, csv or json", format)
				}
			}
			resp, err := opts.client().History(ctx, limit)
			if err != nil {
				return err
			}
			if format == "json" {
				return printJSON(w, resp)
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			for _, c := range resp.Commits {
				fmt.Fprintf(tw, "%.12s\t%s\t%s\t%s\n", c.Hash, c.Date.Format(time.DateTime), c.Author, c.Message)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(w, "%d of %d commits\n", len(resp.Commits), resp.Total)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&limit, "limit", 20, "Maximum number of commits, 0 for all")
	f.StringVar(&at, "at", "", "Print the records as of this commit hash (or HEAD)")
	f.StringVar(&format, "format", "table", "Output format (table, csv, json)")
	return cmd
}

func newSchemaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()
			resp, err := opts.client().Schema(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()
			resp, err := opts.client().Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (version %s, %d records)\n", resp.Status, resp.Version, resp.Records)
			return nil
		},
	}
}

func printRecords(w io.Writer, records []dto.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "age\tsex\tbmi\tchildren\tsmoker\tregion\tcharges\t")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%s\t%s\t%.2f\t\n", r.Age, r.Sex, r.BMI, r.Children, r.Smoker, r.Region, r.Charges)
	}
	return tw.Flush()
}

// writeCSV writes records in the dataset file format.
func writeCSV(w io.Writer, records []dto.Record) error {
	codec, err := csvdb.NewCodec[dataset.Record]()
	if err != nil {
		return err
	}
	rows := make([]dataset.Record, len(records))
	for i, r := range records {
		rows[i] = dataset.Record(r)
	}
	return codec.Write(w, rows)
}

func printJSON(w io.Writer, v any) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
