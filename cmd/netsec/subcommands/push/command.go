package push

import (
	"context"
	"fmt"

	pb "github.com/cheggaaa/pb/v3"
	"github.com/labstack/gommon/log"
	"github.com/opst/netsec/cmd/netsec/subcommands/common"
	"github.com/opst/netsec/pkg/store"
	storeconn "github.com/opst/netsec/pkg/store/connect"
	"github.com/opst/netsec/pkg/table"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Batch int `flag:"batch" alias:"b" help:"number of records inserted at once"`
}

// OpenStore connects to a store by URI.
type OpenStore func(ctx context.Context, uri string) (store.Store, error)

const ARG_SOURCE = "CSV"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Insert records in CSV files into the store.",
		Flags{Batch: 500},
		flarc.Args{
			{
				Name: ARG_SOURCE, Required: true, Repeatable: true,
				Help: "CSV file with a header row",
			},
		},
		common.NewTask(Task(storeconn.Open)),
		flarc.WithDescription(`
Insert records in CSV files into the collection configured as store.collection.

Each row becomes a document keyed by the header.
Cells looking like numbers are stored as numbers. Others, "na" included, are stored as strings.
`),
	)
}

func Task(open OpenStore) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		env common.Env,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		batch := cl.Flags().Batch
		if batch <= 0 {
			return fmt.Errorf("%w: --batch should be positive", flarc.ErrUsage)
		}
		source := env.Config.Store()

		st, err := open(ctx, source.URI())
		if err != nil {
			return err
		}
		defer st.Close()

		sources := cl.Args()[ARG_SOURCE]
		total := 0
		for n, path := range sources {
			t, err := table.LoadCSV(path)
			if err != nil {
				return err
			}
			logger.Infof("[[%d/%d]] inserting %d records from %s", n+1, len(sources), t.Len(), path)

			inserted, err := insert(ctx, st, source.Database(), source.Collection(), t, batch, cl)
			total += inserted
			if err != nil {
				return fmt.Errorf("%w: %d records of %s are inserted", err, inserted, path)
			}
		}

		_, err = fmt.Fprintf(
			cl.Stdout(), "%d documents are inserted into %s.%s\n",
			total, source.Database(), source.Collection(),
		)
		return err
	}
}

func insert(
	ctx context.Context,
	st store.Store,
	database, collection string,
	t *table.Table,
	batch int,
	cl flarc.Commandline[Flags],
) (int, error) {
	columns := t.Columns()
	bar := pb.New(t.Len())
	bar.SetWriter(cl.Stderr())
	if err := bar.Err(); err != nil {
		return 0, err
	}
	bar.Start()
	defer bar.Finish()

	inserted := 0
	for head := 0; head < t.Len(); head += batch {
		tail := min(head+batch, t.Len())
		docs := make([]store.Document, 0, tail-head)
		for i := head; i < tail; i++ {
			docs = append(docs, store.FromCells(columns, t.Row(i)))
		}
		n, err := st.InsertMany(ctx, database, collection, docs)
		inserted += n
		bar.Add(n)
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}
