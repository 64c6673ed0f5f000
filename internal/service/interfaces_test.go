package service

import (
	"teenprint-core/internal/broker"
	"teenprint-core/internal/gateway"
	"teenprint-core/internal/redisclient"
	"teenprint-core/internal/store"
)

// The concrete wiring in cmd/server must keep satisfying the consumer
// interfaces; a signature drift fails here instead of at startup.
var (
	_ CartStore      = (*store.Store)(nil)
	_ CouponStore    = (*store.Store)(nil)
	_ OrderStore     = (*store.Store)(nil)
	_ ProductSource  = (*store.Store)(nil)
	_ Catalog        = (*CatalogClient)(nil)
	_ CartCache      = (*redisclient.Client)(nil)
	_ PaymentGateway = (*gateway.Client)(nil)
	_ EventSink      = (*broker.EventPublisher)(nil)
	_ CartCheckout   = (*CartService)(nil)
)
