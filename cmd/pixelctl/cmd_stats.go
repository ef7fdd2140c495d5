package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/compute-blade-community/pixelwire/pkg/util"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/emptypb"
)

func init() {
	cmdStats.AddCommand(cmdStatsReset)
}

var (
	cmdStats = &cobra.Command{
		Use:     "stats",
		Short:   "Print the transmission statistics of the strip",
		Example: "pixelctl stats",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			stats, err := clientFromContext(ctx).GetStats(ctx, &emptypb.Empty{})
			if err != nil {
				return err
			}

			fields := stats.GetFields()
			number := func(name string) int64 {
				return int64(fields[name].GetNumberValue())
			}

			frames, aborted := number("frames"), number("aborted_frames")
			fmt.Println(util.PrintKeyValues([]util.KeyValuePair{
				{Key: "Strip", Format: "%s", Value: []any{fields["name"].GetStringValue()}, Style: util.OkStyle},
				{Key: "Pixels", Format: "%d", Value: []any{number("pixels")}, Style: util.OkStyle},
				{Key: "Frames", Format: "%d", Value: []any{frames}, Style: util.OkStyle},
				{Key: "Aborted frames", Format: "%d (%s)", Value: []any{aborted, abortRateLabel(frames, aborted)}, Style: func([]any) lipgloss.Style {
					return abortStyle(frames, aborted)
				}},
				{Key: "Frames per second", Format: "%d", Value: []any{number("fps")}, Style: util.OkStyle},
				{Key: "Since", Format: "%s", Value: []any{elapsedLabel(number("elapsed_ms"))}, Style: util.OkStyle},
			}))
			return nil
		},
	}

	cmdStatsReset = &cobra.Command{
		Use:     "reset",
		Short:   "Reset the transmission statistics",
		Example: "pixelctl stats reset",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, err := clientFromContext(ctx).ClearStats(ctx, &emptypb.Empty{})
			return err
		},
	}
)
