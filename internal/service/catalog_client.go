package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"
	"teenprint-core/internal/redisclient"
	"teenprint-core/internal/util"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ProductSource is the persistent lookup behind the catalog cache.
type ProductSource interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// CatalogClient resolves product references with a Redis read-through
// cache in front of the database. Lookups carry their own deadline so
// a slow catalog cannot stall a cart mutation.
type CatalogClient struct {
	source  ProductSource
	redis   *redisclient.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewCatalogClient creates a catalog client. redis may be nil in tests.
func NewCatalogClient(source ProductSource, redis *redisclient.Client, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		source:  source,
		redis:   redis,
		timeout: timeout,
		logger:  util.GetLogger(),
	}
}

// GetProduct returns the product for id, from cache when fresh.
func (cc *CatalogClient) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.GetProduct")
	defer span.End()

	timer := prometheus.NewTimer(util.CatalogLookupLatency)
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	if cc.redis != nil {
		product, err := cc.redis.GetProduct(ctx, productID)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			cc.logger.Warn("Product cache read failed, falling back to DB",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	product, err := cc.source.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: product %d lookup timed out", apperrors.ErrCatalogUnavailable, productID)
		}
		return nil, err
	}

	if cc.redis != nil {
		if err := cc.redis.SetProduct(ctx, product); err != nil {
			cc.logger.Warn("Product cache write failed",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	return product, nil
}
