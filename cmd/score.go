package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/service"
)

// scoreInput score コマンドの入力
type scoreInput struct {
	Cells   []model.ScoringCell `json:"cells"`
	Weights []float64           `json:"weights"`
}

// scoreOutput score コマンドの出力
type scoreOutput struct {
	AmplifiedWeights []float64           `json:"amplified_weights"`
	Results          []model.ScoreResult `json:"results"`
	Summary          model.ScoreSummary  `json:"summary"`
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a grid of cells read as JSON",
	Long: `Score reads {"cells": [...], "weights": [...]} from --input (or stdin)
and prints the amplified weights, per-cell scores and a summary as JSON.
No network or cache access is performed.`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().String("input", "", "input JSON file (default stdin)")
	scoreCmd.Flags().Float64("max-distance", service.DefaultMaxDistanceMeters, "maximum aggregation distance in meters")
	scoreCmd.Flags().Float64("decay-factor", service.DefaultDecayFactor, "distance decay factor")
	scoreCmd.Flags().Float64("amplification", service.DefaultVarianceAmplification, "preference variance amplification")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	var in io.Reader = cmd.InOrStdin()
	if path, _ := cmd.Flags().GetString("input"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("入力ファイルを開けません: %w", err)
		}
		defer f.Close()
		in = f
	}

	var input scoreInput
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		return fmt.Errorf("入力JSONの解析に失敗: %w", err)
	}
	if len(input.Weights) == 0 {
		return fmt.Errorf("weights は1つ以上必要です")
	}
	if err := validateCellIDs(input.Cells); err != nil {
		return err
	}

	maxDistance, _ := cmd.Flags().GetFloat64("max-distance")
	decay, _ := cmd.Flags().GetFloat64("decay-factor")
	amplification, _ := cmd.Flags().GetFloat64("amplification")
	engine := service.NewScoringEngine(service.ScoringConfig{
		MaxDistanceMeters:     maxDistance,
		DecayFactor:           decay,
		VarianceAmplification: amplification,
	})

	results := engine.ScoreAll(input.Cells, input.Weights)
	out := scoreOutput{
		AmplifiedWeights: engine.Amplify(input.Weights),
		Results:          results,
		Summary:          service.Summarize(results, input.Cells),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// validateCellIDs スコアはセルIDで引くため、空や重複のIDは受け付けない
func validateCellIDs(cells []model.ScoringCell) error {
	seen := make(map[string]struct{}, len(cells))
	for i, cell := range cells {
		if cell.ID == "" {
			return fmt.Errorf("cells[%d] のidが空です", i)
		}
		if _, ok := seen[cell.ID]; ok {
			return fmt.Errorf("セルIDが重複しています: %s", cell.ID)
		}
		seen[cell.ID] = struct{}{}
	}
	return nil
}
