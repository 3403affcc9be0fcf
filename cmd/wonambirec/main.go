// Command wonambirec inspects a neurophysiology recording: it prints the
// normalized header and can dump a window of decoded samples. It is a thin
// external consumer of the decoder library and uses nothing beyond the
// open/read contract.
package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/neuromarket/wonambi"
	"github.com/neuromarket/wonambi/recording"
)

var (
	showRaw     bool
	asJSON      bool
	dumpSamples int
	channel     int
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "wonambirec <recording>",
	Short: "Inspect a neurophysiology recording",
	Long: `wonambirec prints the header metadata of a recording and can dump a
window of decoded samples. A recording is an .ns1-.ns6 or .nev file, or a
segmented recording directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return inspect(args[0])
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().BoolVar(&showRaw, "raw", false, "include the raw format-specific header fields")
	rootCmd.Flags().BoolVar(&asJSON, "json", false, "print machine-readable JSON")
	rootCmd.Flags().IntVar(&dumpSamples, "samples", 0, "dump the first N decoded samples")
	rootCmd.Flags().IntVar(&channel, "channel", 0, "channel index for --samples")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log decoder diagnostics")
}

func inspect(path string) error {
	rec, err := wonambi.Open(path)
	if err != nil {
		return err
	}
	hdr := rec.Header()

	if asJSON {
		out := map[string]any{
			"subject_id":    hdr.SubjectID,
			"start_time":    hdr.StartTime,
			"sampling_freq": hdr.SamplingFreq,
			"channels":      hdr.ChannelNames,
			"n_samples":     hdr.NSamples,
		}
		if showRaw {
			out["raw"] = hdr.Raw
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		fmt.Printf("subject:    %s\n", hdr.SubjectID)
		fmt.Printf("start:      %s\n", hdr.StartTime.Format("2006-01-02 15:04:05.000"))
		fmt.Printf("rate:       %g Hz\n", hdr.SamplingFreq)
		fmt.Printf("samples:    %d\n", hdr.NSamples)
		fmt.Printf("channels:   %d\n", len(hdr.ChannelNames))
		for i, name := range hdr.ChannelNames {
			fmt.Printf("  [%3d] %s\n", i, name)
		}
		if showRaw {
			for k, v := range hdr.Raw {
				fmt.Printf("raw %s = %v\n", k, v)
			}
		}
	}

	if dumpSamples > 0 {
		return dump(rec, hdr)
	}
	return nil
}

func dump(rec recording.Reader, hdr recording.Header) error {
	n := dumpSamples
	if n > hdr.NSamples {
		n = hdr.NSamples
	}
	m, err := rec.Read([]int{channel}, 0, n)
	if err != nil {
		return err
	}
	for s := 0; s < n; s++ {
		fmt.Printf("%d\t%g\n", s, m.At(0, s))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
