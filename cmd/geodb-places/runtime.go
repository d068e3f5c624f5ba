package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mohammed-shakir/geodb-places/internal/cache/redisstore"
	"github.com/mohammed-shakir/geodb-places/internal/core/config"
	"github.com/mohammed-shakir/geodb-places/internal/core/httpclient"
	"github.com/mohammed-shakir/geodb-places/internal/events"
	"github.com/mohammed-shakir/geodb-places/internal/h3index"
	"github.com/mohammed-shakir/geodb-places/internal/places"
	"github.com/mohammed-shakir/geodb-places/internal/places/registry"
)

// runtime holds the long lived collaborators shared by the commands.
type runtime struct {
	reg       *registry.Registry
	annotator places.FeatureAnnotator
	forwarder *registry.Forwarder
	hc        *http.Client
	closers   []func() error
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{hc: httpclient.NewOutbound(cfg.GeoDBTimeout)}

	var cache registry.GroupCache
	if cfg.RedisAddr != "" {
		store, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)
		cache = registry.NewRedisCache(store, "geodb-places", cfg.CacheTTL)
		logger.Info("group cache: redis", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	} else {
		cache = registry.NewLRUCache(cfg.CacheSize, cfg.CacheTTL)
	}

	var listeners []registry.Listener
	if cfg.HostPlacesURL != "" {
		rt.forwarder = registry.NewForwarder(cfg.HostPlacesURL, rt.hc, logger)
		listeners = append(listeners, rt.forwarder)
	}
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic, logger)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, pub.Close)
		listeners = append(listeners, pub)
	}
	rt.reg = registry.New(cache, logger, listeners...)

	if cfg.H3Res != config.H3Disabled {
		a, err := h3index.NewAnnotator(cfg.H3Res)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.annotator = a
	}
	return rt, nil
}

// waitForHost blocks until the external places host answers; a no-op when
// groups are not forwarded.
func (rt *runtime) waitForHost(ctx context.Context) error {
	if rt.forwarder == nil {
		return nil
	}
	return rt.forwarder.WaitReady(ctx)
}

func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}
