package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aso824/dcf77decoder/internal/report"
	"github.com/aso824/dcf77decoder/internal/telegram"
)

const prompt = "Data (59 bits): "

type decodeFlags struct {
	format  string
	noColor bool
	century int
}

func newDecodeCommand() *cobra.Command {
	var flags decodeFlags

	cmd := &cobra.Command{
		Use:   "decode [bits]",
		Short: "Decode one telegram and print the report",
		Long: `Decode one 59-bit telegram given as a string of 0 and 1 characters.
A 58-character string is accepted and gets the leading zero bit added.
Without an argument the telegram is read from standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", string(report.FormatText), "output format: text, table or json")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	cmd.Flags().IntVar(&flags.century, "century", report.DefaultCentury, "century added to the two-digit year")

	return cmd
}

func runDecode(cmd *cobra.Command, args []string, flags decodeFlags) error {
	format, err := report.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	opts := report.Options{
		Format:  format,
		NoColor: flags.noColor || color.NoColor,
		Century: flags.century,
	}
	out := cmd.OutOrStdout()

	var data string
	if len(args) == 1 {
		data = args[0]
	} else {
		if format != report.FormatJSON {
			fmt.Fprint(out, prompt)
		}
		data, err = readToken(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	result, err := telegram.DecodeString(data)
	if err != nil {
		if rerr := report.RenderRejected(out, err, opts); rerr != nil {
			return rerr
		}
		return errRejected
	}

	return report.Render(out, result, opts)
}

// readToken reads one whitespace-delimited token.
func readToken(r io.Reader) (string, error) {
	var s string
	if _, err := fmt.Fscan(r, &s); err != nil {
		if errors.Is(err, io.EOF) {
			return "", errors.New("no telegram on standard input")
		}
		return "", fmt.Errorf("read telegram: %w", err)
	}
	return s, nil
}
