package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/framescope/framescope/internal/stats"
	"github.com/framescope/framescope/internal/store"
)

var infoCmd = &cobra.Command{
	Use:   "info <recording>",
	Short: "Inspect a recording file",
	Long:  `Print the frame count and dimensions of a recording, with per-frame summary statistics for the first and last frame.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	r, err := store.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Printf("%s: %d frames of %dx%d float32\n", args[0], r.Len(), r.Height(), r.Width())
	if r.Len() == 0 {
		return nil
	}

	full := stats.ROI{Name: "frame", Width: r.Width(), Height: r.Height()}
	for _, i := range []int{0, r.Len() - 1} {
		fr, err := r.ReadFrame(i)
		if err != nil {
			return err
		}
		res := stats.Compute(full, fr)
		fmt.Printf("  frame %6d: mean=%.2f min=%.2f max=%.2f std=%.2f\n",
			i, res.Mean, res.Min, res.Max, res.Std)
	}
	return nil
}
