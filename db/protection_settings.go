package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	"guardbackend/core"
	dbtx "guardbackend/db/tx"
	"guardbackend/models"
)

type PostgresProtectionSettingsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for protection_settings table
var protectionSettingsColumns = []string{
	"id",
	"guild_id",
	"detector_kind",
	"action",
	"threshold",
	"window_seconds",
	"duration_minutes",
	"min_account_age_minutes",
	"role_id",
	"ignored_channel_ids",
	"created_at",
	"updated_at",
}

func NewPostgresProtectionSettingsRepository(db *sqlx.DB, schema string) *PostgresProtectionSettingsRepository {
	return &PostgresProtectionSettingsRepository{db: db, schema: schema}
}

// UpsertProtectionSetting inserts or replaces the single setting row for a
// (guild, detector kind) pair
func (r *PostgresProtectionSettingsRepository) UpsertProtectionSetting(
	ctx context.Context,
	setting *models.ProtectionSetting,
) (*models.ProtectionSetting, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	id := core.NewID("ps")
	returningStr := strings.Join(protectionSettingsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.protection_settings (
			id, guild_id, detector_kind, action, threshold, window_seconds,
			duration_minutes, min_account_age_minutes, role_id, ignored_channel_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (guild_id, detector_kind)
		DO UPDATE SET
			action = EXCLUDED.action,
			threshold = EXCLUDED.threshold,
			window_seconds = EXCLUDED.window_seconds,
			duration_minutes = EXCLUDED.duration_minutes,
			min_account_age_minutes = EXCLUDED.min_account_age_minutes,
			role_id = EXCLUDED.role_id,
			ignored_channel_ids = EXCLUDED.ignored_channel_ids,
			updated_at = NOW()
		RETURNING %s
	`, r.schema, returningStr)

	var stored models.ProtectionSetting
	err := db.QueryRowxContext(
		ctx,
		query,
		id,
		setting.GuildID,
		setting.DetectorKind,
		setting.Action,
		setting.Threshold,
		setting.WindowSeconds,
		setting.DurationMinutes,
		setting.MinAccountAgeMinutes,
		setting.RoleID,
		setting.IgnoredChannelIDs,
	).StructScan(&stored)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert protection setting: %w", err)
	}

	return &stored, nil
}

// GetProtectionSetting fetches the setting row for a (guild, detector kind) pair
func (r *PostgresProtectionSettingsRepository) GetProtectionSetting(
	ctx context.Context,
	guildID string,
	kind models.DetectorKind,
) (mo.Option[*models.ProtectionSetting], error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(protectionSettingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s FROM %s.protection_settings
		WHERE guild_id = $1 AND detector_kind = $2
	`, columnsStr, r.schema)

	var setting models.ProtectionSetting
	err := db.GetContext(ctx, &setting, query, guildID, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.ProtectionSetting](), nil
		}
		return mo.None[*models.ProtectionSetting](), fmt.Errorf("failed to get protection setting: %w", err)
	}

	return mo.Some(&setting), nil
}

// GetProtectionSettingsByGuildID fetches every configured detector for one guild
func (r *PostgresProtectionSettingsRepository) GetProtectionSettingsByGuildID(
	ctx context.Context,
	guildID string,
) ([]*models.ProtectionSetting, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(protectionSettingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s FROM %s.protection_settings
		WHERE guild_id = $1
		ORDER BY detector_kind
	`, columnsStr, r.schema)

	var settings []*models.ProtectionSetting
	if err := db.SelectContext(ctx, &settings, query, guildID); err != nil {
		return nil, fmt.Errorf("failed to get protection settings for guild: %w", err)
	}

	return settings, nil
}

// GetAllProtectionSettings fetches every persisted setting row (startup sync)
func (r *PostgresProtectionSettingsRepository) GetAllProtectionSettings(
	ctx context.Context,
) ([]*models.ProtectionSetting, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(protectionSettingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s FROM %s.protection_settings
		ORDER BY guild_id, detector_kind
	`, columnsStr, r.schema)

	var settings []*models.ProtectionSetting
	if err := db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("failed to get all protection settings: %w", err)
	}

	return settings, nil
}

// DeleteProtectionSetting removes the setting row for a (guild, detector kind)
// pair and reports whether a row existed
func (r *PostgresProtectionSettingsRepository) DeleteProtectionSetting(
	ctx context.Context,
	guildID string,
	kind models.DetectorKind,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		DELETE FROM %s.protection_settings
		WHERE guild_id = $1 AND detector_kind = $2
	`, r.schema)

	result, err := db.ExecContext(ctx, query, guildID, kind)
	if err != nil {
		return false, fmt.Errorf("failed to delete protection setting: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
