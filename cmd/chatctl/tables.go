package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/jobyojnahub-a11y/websevixof/internal/config"
	"github.com/jobyojnahub-a11y/websevixof/internal/database"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

// chatTables are the tables this service owns. Orders belongs to the order
// workflow and is never created here.
var chatTables = []database.TableSpec{
	{Name: model.VisitorSessionsTable, HashKey: model.VisitorSessionKey},
	{Name: model.ConversationsTable, HashKey: model.ConversationKey},
	{Name: model.MessagesTable, HashKey: model.MessageHashKey, RangeKey: model.MessageRangeKey},
}

func tablesCommand() *cli.Command {
	return &cli.Command{
		Name:  "tables",
		Usage: "Manage DynamoDB tables",
		Subcommands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Create missing tables and wait until they are active",
				Action: createTables,
			},
			{
				Name:   "list",
				Usage:  "Show status and item counts of the service tables",
				Action: listTables,
			},
		},
	}
}

func openDatabase(ctx context.Context) (*database.Database, error) {
	store, err := config.LoadStore()
	if err != nil {
		return nil, err
	}
	return database.NewDatabase(ctx, store.Database())
}

func createTables(c *cli.Context) error {
	db, err := openDatabase(c.Context)
	if err != nil {
		return err
	}

	created, err := db.Client.EnsureTables(c.Context, chatTables)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		fmt.Fprintln(c.App.Writer, "all tables already exist")
		return nil
	}
	for _, name := range created {
		fmt.Fprintf(c.App.Writer, "created %s\n", name)
	}
	return nil
}

func listTables(c *cli.Context) error {
	db, err := openDatabase(c.Context)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(chatTables)+1)
	for _, spec := range chatTables {
		names = append(names, spec.Name)
	}
	names = append(names, model.OrdersTable)

	statuses, err := db.Client.DescribeTables(c.Context, names)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tSTATUS\tITEMS")
	for _, status := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%d\n", status.Name, status.Status, status.ItemCount)
	}
	return w.Flush()
}
