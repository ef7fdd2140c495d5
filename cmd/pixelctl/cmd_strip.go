package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var (
	brightness int
	showAfter  bool
)

func init() {
	cmdShow.Flags().IntVarP(&brightness, "brightness", "b", 255, "brightness 0-255 (default: the strip's configured brightness)")

	for _, cmd := range []*cobra.Command{cmdFill, cmdSet} {
		cmd.Flags().BoolVar(&showAfter, "show", false, "latch the buffer after updating it")
		cmd.Flags().IntVarP(&brightness, "brightness", "b", 255, "brightness 0-255 used with --show")
	}
}

func showBrightness(cmd *cobra.Command) (uint32, error) {
	if !cmd.Flags().Changed("brightness") {
		return uint32(stripFromContext(cmd.Context()).Brightness), nil
	}
	if brightness < 0 || brightness > 255 {
		return 0, fmt.Errorf("brightness %d is outside 0-255", brightness)
	}
	return uint32(brightness), nil
}

func show(cmd *cobra.Command) error {
	level, err := showBrightness(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	resp, err := clientFromContext(ctx).Show(ctx, wrapperspb.UInt32(level))
	if err != nil {
		return err
	}
	if !resp.GetValue() {
		return fmt.Errorf("frame was aborted, see 'pixelctl stats'")
	}
	return nil
}

var (
	cmdShow = &cobra.Command{
		Use:     "show",
		Short:   "Latch the pixel buffer onto the strip",
		Example: "pixelctl show --brightness 128",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return show(cmd)
		},
	}

	cmdFill = &cobra.Command{
		Use:     "fill COLOR",
		Short:   "Set every pixel of the buffer to one color",
		Example: "pixelctl fill '#ff8800' --show",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color, err := parseColor(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if _, err := clientFromContext(ctx).Fill(ctx, wrapperspb.UInt32(color)); err != nil {
				return err
			}

			if showAfter {
				return show(cmd)
			}
			return nil
		},
	}

	cmdSet = &cobra.Command{
		Use:     "set INDEX COLOR",
		Short:   "Set a single pixel of the buffer",
		Example: "pixelctl set 0 00ff00 --show",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pixel index %q: %w", args[0], err)
			}
			color, err := parseColor(args[1])
			if err != nil {
				return err
			}

			req, err := structpb.NewStruct(map[string]any{"index": index, "color": color})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if _, err := clientFromContext(ctx).SetPixel(ctx, req); err != nil {
				return err
			}

			if showAfter {
				return show(cmd)
			}
			return nil
		},
	}

	cmdClear = &cobra.Command{
		Use:     "clear",
		Short:   "Zero the buffer and blank the strip",
		Example: "pixelctl clear",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			resp, err := clientFromContext(ctx).Clear(ctx, &emptypb.Empty{})
			if err != nil {
				return err
			}
			if !resp.GetValue() {
				return fmt.Errorf("blank frame was aborted")
			}
			return nil
		},
	}

	cmdForceClear = &cobra.Command{
		Use:     "force-clear",
		Short:   "Blank the chain repeatedly without touching the buffer",
		Long:    "force-clear drives the data line low and sends blank frames until one succeeds. Use it after glitches left stale colors on the chain.",
		Example: "pixelctl force-clear",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			resp, err := clientFromContext(ctx).ForceClear(ctx, &emptypb.Empty{})
			if err != nil {
				return err
			}
			if !resp.GetValue() {
				return fmt.Errorf("every blank frame was aborted")
			}
			return nil
		},
	}
)
