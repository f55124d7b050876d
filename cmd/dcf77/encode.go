package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aso824/dcf77decoder/internal/telegram"
)

func newEncodeCommand() *cobra.Command {
	var r telegram.Result
	var summer bool

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Build a valid telegram from date and time fields",
		Long: `Build the 59-bit telegram for the given fields, with parity bits set.
The output decodes back to the same fields and can feed test receivers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Flag 0 marks summer time (CEST), 1 winter time (CET).
			r.SummerTime = 1
			if summer {
				r.SummerTime = 0
			}

			bits := telegram.Encode(r)
			got, err := telegram.Decode(bits)
			if err != nil {
				return fmt.Errorf("fields do not form a valid telegram: %w", err)
			}
			if got != r {
				return fmt.Errorf("fields do not fit the telegram: encoded %+v, decodes to %+v", r.Time, got.Time)
			}

			fmt.Fprintln(cmd.OutOrStdout(), bits.String())
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&r.Time.Hour, "hour", 0, "hour (0-23)")
	f.IntVar(&r.Time.Minute, "minute", 0, "minute (0-59)")
	f.IntVar(&r.Time.Day, "day", 1, "day of month (1-31)")
	f.IntVar(&r.Time.Weekday, "weekday", 1, "day of week, 1 is Monday")
	f.IntVar(&r.Time.Month, "month", 1, "month (1-12)")
	f.IntVar(&r.Time.Year, "year", 0, "two-digit year (0-99)")
	f.IntVar(&r.Antenna, "antenna", 0, "antenna flag, 1 is backup")
	f.IntVar(&r.TimeChange, "time-change", 0, "time change announced for the next hour (0 or 1)")
	f.BoolVar(&summer, "summer", false, "summer time (CEST)")

	return cmd
}
