package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"greenbite/internal/classifier"
	"greenbite/internal/config"
)

var (
	classifyTop  int
	classifyJSON bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Detect the foods in a meal photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().IntVar(&classifyTop, "top", 5, "Number of ranked labels to print")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print the ranking as JSON")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	img, format, err := classifier.Decode(data)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var awsCfg *aws.Config
	if cfg.Classifier.Backend == config.BackendRekognition {
		c, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return err
		}
		awsCfg = &c
	}
	clf, err := buildClassifier(cfg, awsCfg, loggers{})
	if err != nil {
		return err
	}

	if cfg.Pipeline.ClassifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.ClassifyTimeout)
		defer cancel()
	}
	ranked, err := clf.Rank(ctx, img)
	if err != nil {
		return err
	}
	selected := classifier.Select(ranked)

	out := cmd.OutOrStdout()
	if classifyJSON {
		return writeJSON(out, map[string]any{"detected": selected, "ranking": topN(ranked, classifyTop)})
	}

	b := img.Bounds()
	fmt.Fprintf(out, "%s: %s %dx%d, %s\n", args[0], format, b.Dx(), b.Dy(), humanize.Bytes(uint64(len(data))))
	for _, c := range topN(ranked, classifyTop) {
		fmt.Fprintf(out, "  [%.3f] %s\n", c.Probability, c.Description)
	}
	for _, c := range selected {
		fmt.Fprintf(out, "detected: %s\n", c.Name)
	}
	return nil
}

func topN(c []classifier.Candidate, n int) []classifier.Candidate {
	if n <= 0 || n > len(c) {
		return c
	}
	return c[:n]
}
