package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/resolver"
)

// seedFile is the shape of the --seed YAML: dimension kind → entries.
type seedFile struct {
	Industries         []seedEntry `yaml:"industries"`
	Products           []seedEntry `yaml:"products"`
	Stages             []seedEntry `yaml:"stages"`
	ContactStatuses    []seedEntry `yaml:"contact_statuses"`
	ForecastCategories []seedEntry `yaml:"forecast_categories"`
}

type seedEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  "Applies the relational schema (idempotent) and optionally pre-creates dimension rows from a YAML seed file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		fmt.Println("schema up to date")

		seedPath, _ := cmd.Flags().GetString("seed")
		if seedPath == "" {
			return nil
		}

		data, err := os.ReadFile(seedPath)
		if err != nil {
			return eris.Wrapf(err, "read seed file %s", seedPath)
		}
		var seeds seedFile
		if err := yaml.Unmarshal(data, &seeds); err != nil {
			return eris.Wrapf(err, "parse seed file %s", seedPath)
		}

		res := resolver.New(st)
		if err := res.Prime(ctx); err != nil {
			return err
		}
		total := 0
		for kind, entries := range map[model.DimensionKind][]seedEntry{
			model.DimIndustry:         seeds.Industries,
			model.DimProduct:          seeds.Products,
			model.DimStage:            seeds.Stages,
			model.DimContactStatus:    seeds.ContactStatuses,
			model.DimForecastCategory: seeds.ForecastCategories,
		} {
			for _, e := range entries {
				if _, err := res.Seed(ctx, kind, e.Name, e.Description); err != nil {
					return err
				}
				total++
			}
		}
		zap.L().Info("seeded dimensions", zap.Int("count", total), zap.String("file", seedPath))
		fmt.Printf("seeded %d dimension rows\n", total)
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("seed", "", "YAML file of dimension rows to pre-create")
	rootCmd.AddCommand(migrateCmd)
}
