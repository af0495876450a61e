package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agropulse/agropulse/internal/model"
)

// PostgresHistoryRepo はPostgreSQLを使用した助言履歴リポジトリ。
// 気象スナップショット・サマリー・セクション群はJSONBカラムに格納する。
type PostgresHistoryRepo struct {
	db *sql.DB
}

// NewPostgresHistoryRepo はPostgresHistoryRepoを生成する。
func NewPostgresHistoryRepo(db *sql.DB) *PostgresHistoryRepo {
	return &PostgresHistoryRepo{db: db}
}

// Prepend はエントリを挿入し、同一トランザクションで上限超過分の古い行を削除する。
func (r *PostgresHistoryRepo) Prepend(ctx context.Context, username string, entry *model.HistoryEntry) error {
	weather, err := json.Marshal(entry.Weather)
	if err != nil {
		return fmt.Errorf("failed to marshal weather snapshot: %w", err)
	}
	summary, err := json.Marshal(entry.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal plan summary: %w", err)
	}
	sections, err := json.Marshal(entry.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}
	sectionsHTML, err := json.Marshal(entry.SectionsHTML)
	if err != nil {
		return fmt.Errorf("failed to marshal sections html: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history_entries
		   (id, username, crop, land_size, location_name,
		    weather, summary, sections, sections_html,
		    insights_md, insights_html, ai_failed, ai_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		entry.ID, username, entry.Crop, entry.LandSize, entry.LocationName,
		weather, summary, sections, sectionsHTML,
		entry.InsightsMD, entry.InsightsHTML, entry.AIFailed, entry.AIError, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	// 上限を超えた古いエントリを破棄する
	_, err = tx.ExecContext(ctx,
		`DELETE FROM history_entries
		 WHERE username = $1 AND id NOT IN (
		   SELECT id FROM history_entries
		   WHERE username = $1
		   ORDER BY created_at DESC, id DESC
		   LIMIT $2
		 )`,
		username, model.HistoryLimit,
	)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByUsername は指定ユーザーの履歴を新しい順で返す（最大model.HistoryLimit件）。
func (r *PostgresHistoryRepo) ListByUsername(ctx context.Context, username string) ([]*model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, crop, land_size, location_name,
		        weather, summary, sections, sections_html,
		        insights_md, insights_html, ai_failed, ai_error, created_at
		 FROM history_entries
		 WHERE username = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		username, model.HistoryLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var result []*model.HistoryEntry
	for rows.Next() {
		entry := &model.HistoryEntry{}
		var weather, summary, sections, sectionsHTML []byte
		if err := rows.Scan(
			&entry.ID, &entry.Crop, &entry.LandSize, &entry.LocationName,
			&weather, &summary, &sections, &sectionsHTML,
			&entry.InsightsMD, &entry.InsightsHTML, &entry.AIFailed, &entry.AIError, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if err := json.Unmarshal(weather, &entry.Weather); err != nil {
			return nil, fmt.Errorf("failed to unmarshal weather snapshot: %w", err)
		}
		if err := json.Unmarshal(summary, &entry.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan summary: %w", err)
		}
		if err := json.Unmarshal(sections, &entry.Sections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
		}
		if err := json.Unmarshal(sectionsHTML, &entry.SectionsHTML); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sections html: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	if result == nil {
		result = []*model.HistoryEntry{}
	}
	return result, nil
}

// compile-time interface check
var _ HistoryRepository = (*PostgresHistoryRepo)(nil)
