package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Amenity heatmap backend",
	Long: `heatmap serves amenity lookups backed by a geohash grid cache and
scores map regions by how well nearby amenities match a set of preferences.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
