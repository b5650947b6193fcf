package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xthestreams/current-rms-watcher/internal/risk"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and manage risk scoring settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective risk factors and approval thresholds as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		cache := risk.NewSettingsCache(st)
		settings := cache.Get(cmd.Context())

		out, err := yaml.Marshal(settings)
		if err != nil {
			return eris.Wrap(err, "marshal settings")
		}
		fmt.Print(string(out))
		return nil
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Validate a YAML settings file and store it",
	Long:  "The file may carry factors, thresholds, or both. Each section is validated before anything is written; an invalid file changes nothing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var doc struct {
			Factors    []yaml.Node `yaml:"factors"`
			Thresholds *yaml.Node  `yaml:"thresholds"`
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return eris.Wrap(err, "parse settings file")
		}

		var settings risk.Settings
		if err := yaml.Unmarshal(raw, &settings); err != nil {
			return eris.Wrap(err, "parse settings file")
		}

		hasFactors := len(doc.Factors) > 0
		hasThresholds := doc.Thresholds != nil
		if !hasFactors && !hasThresholds {
			return eris.New("settings file carries neither factors nor thresholds")
		}

		if hasFactors {
			if err := risk.ValidateFactors(settings.Factors); err != nil {
				return err
			}
		}
		if hasThresholds {
			if err := risk.ValidateThresholds(settings.Thresholds); err != nil {
				return err
			}
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if hasFactors {
			blob, err := json.Marshal(settings.Factors)
			if err != nil {
				return eris.Wrap(err, "marshal factors")
			}
			if err := st.PutSetting(cmd.Context(), risk.SettingFactors, blob); err != nil {
				return err
			}
			zap.L().Info("stored risk factors", zap.Int("count", len(settings.Factors)))
		}
		if hasThresholds {
			blob, err := json.Marshal(settings.Thresholds)
			if err != nil {
				return eris.Wrap(err, "marshal thresholds")
			}
			if err := st.PutSetting(cmd.Context(), risk.SettingThresholds, blob); err != nil {
				return err
			}
			zap.L().Info("stored approval thresholds")
		}

		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsImportCmd)
	rootCmd.AddCommand(settingsCmd)
}
