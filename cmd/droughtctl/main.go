// Command droughtctl runs single assessment steps offline against CSV files:
// scoring PVI from merged indicators, scoring SII from article counts,
// crawling article counts and classifying regions into risk quadrants.
//
// Usage:
//
//	droughtctl pvi --input data/pvi_input_data.csv --output data/pvi_result_final.csv
//	droughtctl news --region 춘천 --region 강릉 --from 2025-05-01 --to 2025-05-31 --output data/news_counts.csv
//	droughtctl sii --input data/news_counts.csv --output data/sii.csv
//	droughtctl classify --pvi data/pvi_result_final.csv --news data/news_counts.csv --output data/region_assessment.csv
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var regionsFile string

	root := &cobra.Command{
		Use:   "droughtctl",
		Short: "Offline drought risk assessment steps",
		Long: `droughtctl runs the steps of the drought risk assessment one at a time
against CSV files, for reruns and inspection outside the service.

  pvi       entropy-weighted Physical Vulnerability Index
  sii       log-normalized Social Interest Index
  news      crawl drought article counts per region
  classify  join PVI and article counts into risk quadrants`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&regionsFile, "regions", "", "YAML region catalog (default: the 18 Gangwon regions)")

	root.AddCommand(pviCmd())
	root.AddCommand(siiCmd())
	root.AddCommand(newsCmd(&regionsFile))
	root.AddCommand(classifyCmd(&regionsFile))
	return root
}
