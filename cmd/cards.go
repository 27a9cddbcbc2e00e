package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/artifact"
	"github.com/pable/go-cr-metrics/internal/clashroyale"
	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/normalize"
	"github.com/pable/go-cr-metrics/internal/retry"
)

var cardsSkipDB bool

// cardsCmd fetches the card catalog.
var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Fetch the card catalog into cards.csv and the cards table",
	Args:  cobra.NoArgs,
	RunE:  runCards,
}

func init() {
	cardsCmd.Flags().BoolVar(&cardsSkipDB, "no-db", false, "only write cards.csv")
}

func runCards(cmd *cobra.Command, args []string) error {
	_, err := syncCards(cmd.Context(), !cardsSkipDB)
	return err
}

// syncCards writes the catalog to cards.csv and, when toDB is set, upserts it.
func syncCards(ctx context.Context, toDB bool) ([]model.Card, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	pol := retry.Default()
	pol.Classify = clashroyale.Classify
	items, err := retry.Do(ctx, pol, func(int) ([]clashroyale.CardItem, error) {
		return client.Cards(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch cards: %w", err)
	}

	cards := make([]model.Card, 0, len(items))
	for _, it := range items {
		if c, ok := normalize.Card(it); ok {
			cards = append(cards, c)
		}
	}

	path := cfg.DataPath(artifact.CardsCSV)
	if err := artifact.WriteCards(path, cards); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	if toDB {
		db, err := openDB()
		if err != nil {
			return nil, err
		}
		defer db.Close()
		n, err := db.UpsertCards(ctx, cards)
		if err != nil {
			return nil, fmt.Errorf("upsert cards: %w", err)
		}
		log.Info().Int("rows", n).Msg("cards upserted")
	}

	fmt.Fprintf(os.Stdout, "Done: %d cards → %s\n", len(cards), path)
	return cards, nil
}
