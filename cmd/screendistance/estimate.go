package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-screendistance/internal/httpc"
	"github.com/teslashibe/go-screendistance/internal/log"
	"github.com/teslashibe/go-screendistance/pkg/detection"
	"github.com/teslashibe/go-screendistance/pkg/distance"
	"github.com/teslashibe/go-screendistance/pkg/estimator"
	"github.com/teslashibe/go-screendistance/pkg/warning"
)

var estimateJSON bool

var estimateCmd = &cobra.Command{
	Use:   "estimate <image.jpg|url>",
	Short: "Estimate screen distance from a single image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log.Init(cfg.LogLevel)

		data, err := readImage(cmd, args[0])
		if err != nil {
			return err
		}

		det, err := detection.New(cfg.Detector, log.Component("detection"))
		if err != nil {
			return fmt.Errorf("create detector: %w", err)
		}
		defer det.Close()

		est := estimator.New(det, cfg.Estimator, log.Component("estimator"), nil)
		cm, dets, err := est.EstimateImage(data)
		if err != nil {
			return fmt.Errorf("estimate: %w", err)
		}
		return printEstimate(cmd.OutOrStdout(), cm, dets, cfg.WarningThresholdCm)
	},
}

func init() {
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "print the result as JSON")
}

func readImage(cmd *cobra.Command, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return httpc.Fetch(cmd.Context(), src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

type estimateResult struct {
	DistanceCm float64               `json:"distance_cm"`
	Category   string                `json:"category"`
	Warning    bool                  `json:"warning"`
	Faces      []detection.Detection `json:"faces"`
}

func printEstimate(w io.Writer, cm float64, dets []detection.Detection, thresholdCm float64) error {
	res := estimateResult{
		DistanceCm: cm,
		Category:   distance.Category(cm),
		Warning:    cm > 0 && cm < thresholdCm,
		Faces:      dets,
	}
	if res.Faces == nil {
		res.Faces = []detection.Detection{}
	}

	if estimateJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if cm == distance.Sentinel {
		_, err := fmt.Fprintln(w, "no face found")
		return err
	}
	fmt.Fprintf(w, "distance: %s (%s)\n", warning.FormatDistance(cm), res.Category)
	fmt.Fprintf(w, "faces:    %d\n", len(dets))
	if res.Warning {
		fmt.Fprintf(w, "warning:  closer than %s\n", warning.FormatDistance(thresholdCm))
	}
	return nil
}
