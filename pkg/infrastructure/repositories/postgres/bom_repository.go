// Package postgres reads components, headers and BOM items from PostgreSQL. Numeric columns
// are read as text so decimals stay exact.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsinha/bom/pkg/domain/entities"
	"github.com/vsinha/bom/pkg/domain/repositories"
	"github.com/vsinha/bom/pkg/domain/services"
)

// Schema creates the tables the repository reads
//
//go:embed schema.sql
var Schema string

// Querier is the subset of pgxpool.Pool (and pgx.Tx) the repository needs
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectComponent = `
	SELECT id, description, component_type, standard_cost::text, uom,
	       procurement_type, lead_time_days, organization
	FROM bom_components
	WHERE id = $1`

// The active header is the most recently effective released or frozen header of the
// requested usage and alternative; headerless items always apply.
const selectItems = `
	WITH active AS (
		SELECT id FROM bom_headers
		WHERE component_id = $1
		  AND usage = $2
		  AND alternative = $3
		  AND status IN ('released', 'frozen')
		  AND ($4::timestamptz IS NULL OR (
		        (effective_from IS NULL OR effective_from <= $4) AND
		        (effective_to IS NULL OR effective_to >= $4)))
		ORDER BY effective_from DESC NULLS LAST, id ASC
		LIMIT 1
	)
	SELECT i.id, COALESCE(i.header_id, ''), i.parent_id, i.child_id,
	       i.quantity::text, i.scrap_factor::text, i.sequence,
	       i.effective_from, i.effective_to,
	       COALESCE(i.alternative_group, ''), i.alternative_priority,
	       i.is_phantom, COALESCE(i.reference_designator, '')
	FROM bom_items i
	WHERE i.parent_id = $1
	  AND (i.header_id IS NULL OR i.header_id = (SELECT id FROM active))
	  AND ($4::timestamptz IS NULL OR (
	        (i.effective_from IS NULL OR i.effective_from <= $4) AND
	        (i.effective_to IS NULL OR i.effective_to >= $4)))
	ORDER BY i.sequence, i.child_id`

const selectComponentIDs = `SELECT id FROM bom_components ORDER BY id`

// BomRepository implements repositories.CatalogRepository over PostgreSQL
type BomRepository struct {
	db          Querier
	usage       entities.BomUsage
	alternative string
	logger      *zap.Logger
}

var _ repositories.CatalogRepository = (*BomRepository)(nil)

// Option configures a BomRepository
type Option func(*BomRepository)

// WithUsage selects which header usage and alternative GetBomItems resolves
func WithUsage(usage entities.BomUsage, alternative string) Option {
	return func(r *BomRepository) {
		r.usage = usage
		r.alternative = alternative
	}
}

// WithLogger sets the repository logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *BomRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewBomRepository creates a repository over db
func NewBomRepository(db Querier, opts ...Option) *BomRepository {
	r := &BomRepository{
		db:     db,
		usage:  entities.UsageProduction,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect opens a connection pool for dsn and pings it
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the BOM tables if they do not exist
func (r *BomRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type componentRow struct {
	id, description, componentType string
	standardCost                   *string
	uom, procurement               string
	leadTimeDays                   int
	organization                   string
}

// GetComponent returns the component or a ComponentNotFoundError
func (r *BomRepository) GetComponent(ctx context.Context, id entities.ComponentID) (*entities.Component, error) {
	var row componentRow
	err := r.db.QueryRow(ctx, selectComponent, string(id)).Scan(
		&row.id, &row.description, &row.componentType, &row.standardCost, &row.uom,
		&row.procurement, &row.leadTimeDays, &row.organization,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query component %s: %w", id, err)
	}
	return row.toEntity()
}

func (row componentRow) toEntity() (*entities.Component, error) {
	componentType, err := entities.ParseComponentType(row.componentType)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", row.id, err)
	}
	procurement, err := entities.ParseProcurementType(row.procurement)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", row.id, err)
	}

	c := &entities.Component{
		ID:            entities.ComponentID(row.id),
		Description:   row.description,
		Type:          componentType,
		UnitOfMeasure: row.uom,
		Procurement:   procurement,
		LeadTimeDays:  row.leadTimeDays,
		Organization:  row.organization,
	}
	if row.standardCost != nil {
		cost, err := decimal.NewFromString(*row.standardCost)
		if err != nil {
			return nil, fmt.Errorf("component %s: invalid standard_cost %q: %w", row.id, *row.standardCost, err)
		}
		*c = c.WithCost(cost)
	}
	return c, nil
}

type itemRow struct {
	id                  uuid.UUID
	headerID            string
	parentID, childID   string
	quantity, scrap     string
	sequence            int
	effectiveFrom       *time.Time
	effectiveTo         *time.Time
	alternativeGroup    string
	alternativePriority int
	phantom             bool
	referenceDesignator string
}

// GetBomItems returns the resolved items under parentID as of asOf
func (r *BomRepository) GetBomItems(ctx context.Context, parentID entities.ComponentID, asOf *time.Time) ([]entities.BomItem, error) {
	rows, err := r.db.Query(ctx, selectItems,
		string(parentID), strings.ToLower(r.usage.String()), r.alternative, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query BOM items of %s: %w", parentID, err)
	}
	defer rows.Close()

	items := make([]entities.BomItem, 0)
	for rows.Next() {
		var row itemRow
		if err := rows.Scan(
			&row.id, &row.headerID, &row.parentID, &row.childID,
			&row.quantity, &row.scrap, &row.sequence,
			&row.effectiveFrom, &row.effectiveTo,
			&row.alternativeGroup, &row.alternativePriority,
			&row.phantom, &row.referenceDesignator,
		); err != nil {
			return nil, fmt.Errorf("failed to scan BOM item of %s: %w", parentID, err)
		}
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating BOM items of %s: %w", parentID, err)
	}

	resolved := services.ResolveSubstituteGroups(items)
	r.logger.Debug("loaded BOM items",
		zap.String("parent", string(parentID)),
		zap.Int("rows", len(items)),
		zap.Int("resolved", len(resolved)),
	)
	return resolved, nil
}

func (row itemRow) toEntity() (entities.BomItem, error) {
	quantity, err := decimal.NewFromString(row.quantity)
	if err != nil {
		return entities.BomItem{}, fmt.Errorf("BOM item %s: invalid quantity %q: %w", row.id, row.quantity, err)
	}
	scrap, err := decimal.NewFromString(row.scrap)
	if err != nil {
		return entities.BomItem{}, fmt.Errorf("BOM item %s: invalid scrap_factor %q: %w", row.id, row.scrap, err)
	}

	item := entities.BomItem{
		ID:                  row.id,
		HeaderID:            row.headerID,
		ParentID:            entities.ComponentID(row.parentID),
		ChildID:             entities.ComponentID(row.childID),
		Quantity:            quantity,
		ScrapFactor:         scrap,
		Sequence:            row.sequence,
		EffectiveTo:         row.effectiveTo,
		AlternativeGroup:    row.alternativeGroup,
		AlternativePriority: row.alternativePriority,
		Phantom:             row.phantom,
		ReferenceDesignator: row.referenceDesignator,
	}
	if row.effectiveFrom != nil {
		item.EffectiveFrom = *row.effectiveFrom
	}
	return item, nil
}

// ListComponentIDs returns every component id in sorted order
func (r *BomRepository) ListComponentIDs(ctx context.Context) ([]entities.ComponentID, error) {
	rows, err := r.db.Query(ctx, selectComponentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query component ids: %w", err)
	}
	defer rows.Close()

	var ids []entities.ComponentID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan component id: %w", err)
		}
		ids = append(ids, entities.ComponentID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating component ids: %w", err)
	}
	return ids, nil
}
