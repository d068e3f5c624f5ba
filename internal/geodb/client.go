// Package geodb is a client for the xcube geoDB REST API, a PostgREST
// service in front of PostGIS collections named "<database>_<collection>".
package geodb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
)

type Options struct {
	ServerURL    string
	ServerPort   int
	ClientID     string
	ClientSecret string
	Audience     string
	// AuthDomain is the OAuth server; the API server is used when empty.
	AuthDomain string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	base   *url.URL
	hc     *http.Client
	auth   *tokenSource
	logger *slog.Logger
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse geodb server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("geodb server url %q must be absolute", opts.ServerURL)
	}
	if opts.ServerPort > 0 && base.Port() == "" {
		base.Host = net.JoinHostPort(base.Hostname(), strconv.Itoa(opts.ServerPort))
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authBase := strings.TrimRight(opts.AuthDomain, "/")
	if authBase == "" {
		authBase = base.String()
	}

	return &Client{
		base:   base,
		hc:     hc,
		logger: logger,
		auth: &tokenSource{
			hc:           hc,
			endpoint:     authBase + "/oauth/token",
			clientID:     opts.ClientID,
			clientSecret: opts.ClientSecret,
			audience:     opts.Audience,
			now:          time.Now,
		},
	}, nil
}

func collectionName(collection, database string) string {
	return database + "_" + collection
}

// GetCollection runs a PostgREST query against a collection and returns its
// rows as GeoJSON features together with the collection SRID.
func (c *Client) GetCollection(ctx context.Context, collection, query, database string) (*Collection, error) {
	name := collectionName(collection, database)
	u := *c.base
	u.Path = c.base.Path + "/" + name
	u.RawQuery = query

	var fc *geojson.FeatureCollection
	err := c.do(ctx, "get_collection", http.MethodGet, u.String(), nil, "application/geo+json", func(b []byte) error {
		var perr error
		fc, perr = geojson.UnmarshalFeatureCollection(b)
		return perr
	})
	if err != nil {
		return nil, err
	}

	srid, err := c.GetCollectionSRID(ctx, collection, database)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "geodb collection fetched",
		"collection", name, "features", len(fc.Features), "srid", srid)
	return &Collection{Database: database, Name: collection, SRID: srid, Features: fc}, nil
}

func (c *Client) GetCollectionInfo(ctx context.Context, collection, database string) (CollectionInfo, error) {
	var info CollectionInfo
	err := c.rpc(ctx, "geodb_get_collection_info", map[string]string{
		"collection": collectionName(collection, database),
	}, func(b []byte) error {
		return json.Unmarshal(b, &info)
	})
	return info, err
}

// GetCollectionSRID accepts both a bare number and PostgREST's
// [{"srid": n}] row form.
func (c *Client) GetCollectionSRID(ctx context.Context, collection, database string) (int, error) {
	var srid int
	err := c.rpc(ctx, "geodb_get_collection_srid", map[string]string{
		"collection": collectionName(collection, database),
	}, func(b []byte) error {
		if err := json.Unmarshal(b, &srid); err == nil {
			return nil
		}
		var rows []struct {
			SRID int `json:"srid"`
		}
		if err := json.Unmarshal(b, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.New("empty srid response")
		}
		srid = rows[0].SRID
		return nil
	})
	return srid, err
}

// WhoAmI returns the database role the credentials map to.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	u := *c.base
	u.Path = c.base.Path + "/rpc/geodb_whoami"
	var who string
	err := c.do(ctx, "whoami", http.MethodGet, u.String(), nil, "application/json", func(b []byte) error {
		if err := json.Unmarshal(b, &who); err != nil {
			who = strings.TrimSpace(string(b))
		}
		return nil
	})
	return who, err
}

func (c *Client) rpc(ctx context.Context, fn string, args any, decode func([]byte) error) error {
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal %s args: %w", fn, err)
	}
	u := *c.base
	u.Path = c.base.Path + "/rpc/" + fn
	return c.do(ctx, fn, http.MethodPost, u.String(), body, "application/json", decode)
}

func (c *Client) do(ctx context.Context, op, method, target string, body []byte, accept string, decode func([]byte) error) error {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return err
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveUpstreamLatency("geodb", op, err, time.Since(start).Seconds())
		return fmt.Errorf("geodb %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		rerr := &RemoteError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		observability.ObserveUpstreamLatency("geodb", op, rerr, time.Since(start).Seconds())
		return rerr
	}

	b, err := io.ReadAll(resp.Body)
	observability.ObserveUpstreamLatency("geodb", op, err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("geodb %s: read body: %w", op, err)
	}
	if err := decode(b); err != nil {
		return fmt.Errorf("geodb %s: decode: %w", op, err)
	}
	return nil
}
