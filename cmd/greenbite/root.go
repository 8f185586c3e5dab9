package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"greenbite/internal/config"
	"greenbite/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "greenbite",
	Short: "Estimate the carbon footprint of a meal photo",
	Long:  "GreenBite detects the foods in a meal photo, estimates their kg CO2 per serving and suggests lower-footprint swaps.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var cfgFile string

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.greenbite.yaml or ./config/defaults.yaml)")
	rootCmd.PersistentFlags().String("dataset", "", "Reference emissions CSV (food_item,co2_emission)")
	rootCmd.PersistentFlags().String("backend", "", "Classifier backend: huggingface|rekognition")
	rootCmd.PersistentFlags().String("model", "", "Hugging Face model id for zero-shot classification")

	viper.BindPFlag("emissions.dataset", rootCmd.PersistentFlags().Lookup("dataset"))
	viper.BindPFlag("classifier.backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("classifier.model", rootCmd.PersistentFlags().Lookup("model"))

	rootCmd.AddCommand(serveCmd, classifyCmd, resolveCmd)
}

func initConfig() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}

	// Replace dots and dashes with underscores:
	// suggest.api-key -> GREENBITE_SUGGEST_API_KEY
	viper.SetEnvPrefix("GREENBITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		cobra.CheckErr(viper.ReadInConfig())
		announceConfig()
		return
	}

	home, err := os.UserHomeDir()
	cobra.CheckErr(err)

	viper.SetConfigType("yaml")
	viper.AddConfigPath(home)
	viper.AddConfigPath("./config")

	viper.SetConfigName(".greenbite")
	err = viper.ReadInConfig()

	notFound := &viper.ConfigFileNotFoundError{}
	if err != nil && errors.As(err, notFound) {
		viper.SetConfigName("defaults")
		err = viper.ReadInConfig()
	}

	switch {
	case err != nil && !errors.As(err, notFound):
		cobra.CheckErr(err)
	case err == nil:
		announceConfig()
	}
}

func announceConfig() {
	(&logging.Logger{Writer: os.Stderr, PrefixText: "Config:", PrefixColor: logging.FgCyan, OmitRequest: true}).
		Printf("using config file %s", viper.ConfigFileUsed())
}
