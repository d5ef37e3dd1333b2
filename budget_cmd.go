package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/missdeer/agentbridge/budget"
	"github.com/missdeer/agentbridge/config"
)

var (
	budgetMaxTokens int
	budgetModel     string
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Print the USD budget for a token limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := loadTranslator(configPath)
		if err != nil {
			return err
		}
		usd := tr.Budget(budgetMaxTokens, budgetModel)
		fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(usd, 'f', -1, 64))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.Flags().IntVar(&budgetMaxTokens, "max-tokens", 0, "Output token limit to translate")
	budgetCmd.Flags().StringVar(&budgetModel, "model", "", "Model whose price applies")
	budgetCmd.MarkFlagRequired("max-tokens")
}

// loadTranslator applies the pricing section of the config file. A missing
// file means built-in prices.
func loadTranslator(path string) (*budget.Translator, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return budget.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg.Pricing.Translator(), nil
}
