package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// OpportunityCard is one "spark" produced by the final pipeline stage.
// Cards are written once by the completion webhook and never mutated except
// for the starred flag.
type OpportunityCard struct {
	ID        uuid.UUID `json:"id"`
	RunID     string    `json:"run_id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	IsStarred bool      `json:"is_starred"`
}

// OpportunityCardInput represents input for creating an opportunity card.
type OpportunityCardInput struct {
	Number  int
	Title   string
	Content string
}

// CreateOpportunityCards bulk-inserts cards for a run. Duplicate (run_id,
// number) pairs are skipped so a redelivered completion webhook does not
// produce duplicate cards. Returns the number of rows actually inserted.
func (db *DB) CreateOpportunityCards(ctx context.Context, runID string, cards []OpportunityCardInput) (int, error) {
	created := 0
	for _, card := range cards {
		tag, err := db.pool.Exec(ctx,
			`INSERT INTO opportunity_cards (run_id, number, title, content, is_starred)
			 VALUES ($1, $2, $3, $4, false)
			 ON CONFLICT (run_id, number) DO NOTHING`,
			runID, card.Number, card.Title, card.Content,
		)
		if err != nil {
			return created, fmt.Errorf("failed to create opportunity card %d: %w", card.Number, err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

// ListOpportunityCards retrieves all cards for a run ordered by number.
func (db *DB) ListOpportunityCards(ctx context.Context, runID string) ([]OpportunityCard, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, number, title, content, is_starred
		 FROM opportunity_cards
		 WHERE run_id = $1
		 ORDER BY number`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunity cards: %w", err)
	}
	defer rows.Close()

	var cards []OpportunityCard
	for rows.Next() {
		var card OpportunityCard
		if err := rows.Scan(&card.ID, &card.RunID, &card.Number, &card.Title,
			&card.Content, &card.IsStarred); err != nil {
			return nil, fmt.Errorf("failed to scan opportunity card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// SetCardStarred updates the starred flag on a card.
func (db *DB) SetCardStarred(ctx context.Context, cardID uuid.UUID, starred bool) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE opportunity_cards SET is_starred = $1 WHERE id = $2`,
		starred, cardID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card not found: %s", cardID)
	}
	return nil
}
