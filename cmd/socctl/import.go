package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/internal/domain/service"
	"github.com/dreschagin/soc-portal/internal/infrastructure/persistence/postgres"
	"github.com/dreschagin/soc-portal/internal/interfaces/payload"
)

func newImportCmd(a *app) *cobra.Command {
	var file string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import downtime records from a YAML file",
		Example: `  socctl import --file outages.yaml
  socctl import --file - --dry-run < outages.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, err := readBatch(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			validator, err := payload.NewValidator()
			if err != nil {
				return err
			}
			if err := validator.ValidateBatch(batch); err != nil {
				return err
			}

			if dryRun {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d records are valid\n", len(batch.Downtimes))
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			// без NATS, WebSocket и кэша: импорт идет в обход живых подписчиков
			uc := usecase.NewReportDowntimeUseCase(
				postgres.NewPostgresDowntimeRepository(db),
				service.NewDowntimeValidator(),
				nil, nil, nil,
				a.log,
			)
			rows, err := uc.ExecuteBatch(context.Background(), batch.ToCommands())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d records\n", len(rows))
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a top-level downtimes list, - for stdin")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readBatch(path string, stdin io.Reader) (payload.BatchRequest, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return payload.BatchRequest{}, fmt.Errorf("read %s: %w", path, err)
	}

	var batch payload.BatchRequest
	if err := yaml.Unmarshal(raw, &batch); err != nil {
		return payload.BatchRequest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(batch.Downtimes) == 0 {
		return payload.BatchRequest{}, fmt.Errorf("%s contains no downtimes", path)
	}
	return batch, nil
}
