// Package catalog persists lender products and serves the active set to the
// matching worker through a Redis cache.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/models"
)

// activeProductsCacheKey holds the JSON-encoded active catalog. Writes
// invalidate it; readers fall back to Postgres on a miss.
const activeProductsCacheKey = "catalog:active-products"

type Store struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewStore builds a catalog store. The redis client may be nil, in which case
// every read goes to Postgres.
func NewStore(db *sql.DB, redisClient *redis.Client, cacheTTL time.Duration, log logger.Logger) *Store {
	return &Store{
		db:       db,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

const selectActiveProducts = `
	SELECT id, lender_name, product_name, category, country,
	       amount_min, amount_max, rate_min, rate_max,
	       term_min_months, term_max_months, min_monthly_revenue,
	       required_documents, excluded_industries, active
	FROM lender_products
	WHERE active = true
	ORDER BY id`

// ActiveProducts returns the active catalog, served from Redis when the
// cached copy is still fresh. Cache failures degrade to a database read
// rather than failing the match.
func (s *Store) ActiveProducts(ctx context.Context) ([]*models.LenderProduct, error) {
	if products, ok := s.fromCache(ctx); ok {
		return products, nil
	}

	rows, err := s.db.QueryContext(ctx, selectActiveProducts)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select active products", err)
	}
	defer rows.Close()

	var products []*models.LenderProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan product row", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("iterate product rows", err)
	}

	s.toCache(ctx, products)
	return products, nil
}

func scanProduct(rows *sql.Rows) (*models.LenderProduct, error) {
	var p models.LenderProduct
	var requiredDocs, excludedIndustries pq.StringArray
	err := rows.Scan(
		&p.ID, &p.LenderName, &p.ProductName, &p.Category, &p.Country,
		&p.AmountMin, &p.AmountMax, &p.RateMin, &p.RateMax,
		&p.TermMinMonths, &p.TermMaxMonths, &p.MinMonthlyRevenue,
		&requiredDocs, &excludedIndustries, &p.Active,
	)
	if err != nil {
		return nil, err
	}
	for _, d := range requiredDocs {
		p.RequiredDocuments = append(p.RequiredDocuments, models.DocumentType(d))
	}
	p.ExcludedIndustries = excludedIndustries
	return &p, nil
}

func (s *Store) fromCache(ctx context.Context) ([]*models.LenderProduct, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, activeProductsCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("catalog cache read failed", map[string]interface{}{"error": err})
		}
		return nil, false
	}
	var products []*models.LenderProduct
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		s.logger.Warn("catalog cache entry corrupt, dropping it", map[string]interface{}{"error": err})
		s.redis.Del(ctx, activeProductsCacheKey)
		return nil, false
	}
	return products, true
}

func (s *Store) toCache(ctx context.Context, products []*models.LenderProduct) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, activeProductsCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("catalog cache write failed", map[string]interface{}{"error": err})
	}
}

// InvalidateCache drops the cached catalog. Called after imports.
func (s *Store) InvalidateCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, activeProductsCacheKey).Err(); err != nil {
		s.logger.Warn("catalog cache invalidation failed", map[string]interface{}{"error": err})
	}
}

const upsertProduct = `
	INSERT INTO lender_products (
		id, lender_name, product_name, category, country,
		amount_min, amount_max, rate_min, rate_max,
		term_min_months, term_max_months, min_monthly_revenue,
		required_documents, excluded_industries, active, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	ON CONFLICT (id) DO UPDATE SET
		lender_name = EXCLUDED.lender_name,
		product_name = EXCLUDED.product_name,
		category = EXCLUDED.category,
		country = EXCLUDED.country,
		amount_min = EXCLUDED.amount_min,
		amount_max = EXCLUDED.amount_max,
		rate_min = EXCLUDED.rate_min,
		rate_max = EXCLUDED.rate_max,
		term_min_months = EXCLUDED.term_min_months,
		term_max_months = EXCLUDED.term_max_months,
		min_monthly_revenue = EXCLUDED.min_monthly_revenue,
		required_documents = EXCLUDED.required_documents,
		excluded_industries = EXCLUDED.excluded_industries,
		active = EXCLUDED.active,
		updated_at = NOW()`

// Upsert writes one product, inserting or overwriting by ID.
func (s *Store) Upsert(ctx context.Context, p *models.LenderProduct) error {
	if err := p.Validate(); err != nil {
		return err
	}

	docs := make([]string, len(p.RequiredDocuments))
	for i, d := range p.RequiredDocuments {
		docs[i] = string(d)
	}

	_, err := s.db.ExecContext(ctx, upsertProduct,
		p.ID, p.LenderName, p.ProductName, p.Category, p.Country,
		p.AmountMin, p.AmountMax, p.RateMin, p.RateMax,
		p.TermMinMonths, p.TermMaxMonths, p.MinMonthlyRevenue,
		pq.Array(docs), pq.Array(p.ExcludedIndustries), p.Active,
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError("lender_products", err)
	}
	return nil
}

// DeactivateMissing soft-deletes every product not named in keepIDs. Products
// are never hard-deleted so past match results stay explainable.
func (s *Store) DeactivateMissing(ctx context.Context, keepIDs []string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE lender_products SET active = false, updated_at = NOW()
		 WHERE active = true AND NOT (id = ANY($1))`,
		pq.Array(keepIDs))
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("deactivate missing products", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
