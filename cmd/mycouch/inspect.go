package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/neomorfeo/mycouch/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/mycouch/internal/adapter/river"
	"github.com/neomorfeo/mycouch/internal/adapter/sqlite"
	"github.com/neomorfeo/mycouch/internal/config"
	"github.com/neomorfeo/mycouch/internal/domain"
)

func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), cfg.Database.Path)
		},
	}
}

func migrate(ctx context.Context, path string) error {
	db, err := otel.OpenDB(path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		return err
	}
	return riveradapter.Migrate(ctx, db)
}

// stateful lists one prototype per entity kind owning state fields.
func stateful() map[string]domain.Stateful {
	return map[string]domain.Stateful{
		string(domain.KindFriendship):         &domain.Connection{Kind: domain.KindFriendship},
		string(domain.KindReference):          &domain.Connection{Kind: domain.KindReference},
		string(domain.KindHospitalityRequest): &domain.Message{Kind: domain.KindHospitalityRequest},
		domain.NotificationSchema.Kind:        &domain.Notification{},
	}
}

// transitionTables renders kind -> field -> source -> destinations.
func transitionTables() map[string]map[string]map[string][]string {
	out := make(map[string]map[string]map[string][]string)
	for kind, e := range stateful() {
		fields := make(map[string]map[string][]string)
		for field, table := range e.StateMachine() {
			rows := make(map[string][]string, len(table))
			for src, dsts := range table {
				targets := make([]string, len(dsts))
				for i, d := range dsts {
					targets[i] = string(d)
				}
				rows[string(src)] = targets
			}
			fields[field] = rows
		}
		out[kind] = fields
	}
	return out
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Print every transition table as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(transitionTables())
		},
	}
}

type schemaDoc struct {
	Kind    string   `yaml:"kind"`
	Fields  []string `yaml:"fields"`
	Exclude []string `yaml:"exclude,omitempty"`
	Force   []string `yaml:"force,omitempty"`
	Private []string `yaml:"private,omitempty"`
}

func newSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "Print the serialized fields of every entity kind as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var docs []schemaDoc
			for _, s := range domain.Schemas() {
				docs = append(docs, schemaDoc{
					Kind:    s.Kind,
					Fields:  s.FieldNames(),
					Exclude: s.Config.Exclude,
					Force:   s.Config.Force,
					Private: s.Config.Private,
				})
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(docs)
		},
	}
}
