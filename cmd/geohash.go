package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"Heatmap-App/internal/domain/geo"
	"Heatmap-App/internal/domain/model"
)

type geohashOutput struct {
	Geohash   string       `json:"geohash"`
	Center    model.LatLng `json:"center"`
	Region    string       `json:"region"`
	Neighbors []string     `json:"neighbors"`
}

var geohashCmd = &cobra.Command{
	Use:   "geohash <lat> <lng>",
	Short: "Print the grid cell, its center, region and neighbors for a coordinate",
	Args:  cobra.ExactArgs(2),
	RunE:  runGeohash,
}

func init() {
	geohashCmd.Flags().Int("precision", geo.DefaultPrecision, "geohash precision (1-12)")

	rootCmd.AddCommand(geohashCmd)
}

func runGeohash(cmd *cobra.Command, args []string) error {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("緯度が数値ではありません: %q", args[0])
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("経度が数値ではありません: %q", args[1])
	}
	precision, _ := cmd.Flags().GetInt("precision")

	indexer := geo.NewIndexer(precision)
	cellID, err := indexer.Encode(lat, lng)
	if err != nil {
		return err
	}
	center, err := geo.Decode(cellID)
	if err != nil {
		return err
	}
	neighbors, err := geo.Neighbors(cellID)
	if err != nil {
		return err
	}
	region, err := indexer.RegionHash(lat, lng)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(geohashOutput{
		Geohash:   cellID,
		Center:    center,
		Region:    region,
		Neighbors: neighbors,
	})
}
