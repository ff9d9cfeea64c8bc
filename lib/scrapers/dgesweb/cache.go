package dgesweb

import (
	"bytes"
	"context"
	"encoding/gob"
	"net/url"
	"time"

	"dgesscraper/lib/dges"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type cachedPage struct {
	Contents  string
	ExpiresAt int64
}

// pageCache stores raw page HTML in badger, keyed by the normalized
// request URL plus form parameters. Retrying a partially completed
// scrape then only pays for the pages that actually failed.
type pageCache struct {
	db       *badger.DB
	lifetime time.Duration
}

func (c *pageCache) key(req dges.PageRequest) (string, error) {
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return "", err
	}
	normalized := purell.NormalizeURL(
		parsed,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	if req.Form != nil {
		normalized += "\x00" + req.Form.Encode()
	}
	return normalized, nil
}

func (c *pageCache) get(ctx context.Context, req dges.PageRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "cache:get")
	defer span.End()

	key, err := c.key(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return "", err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	tx := c.db.NewTransaction(false)
	defer tx.Discard()
	item, err := tx.Get([]byte(key))
	if err != nil {
		return "", err
	}
	serialized, err := item.ValueCopy(nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy cached item")
		return "", err
	}

	var cached cachedPage
	if err := gob.NewDecoder(bytes.NewReader(serialized)).Decode(&cached); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached item")
		return "", err
	}

	if time.Now().Unix() >= cached.ExpiresAt {
		wtx := c.db.NewTransaction(true)
		defer wtx.Commit()
		if err := wtx.Delete([]byte(key)); err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Ok, "CACHE EXPIRED")
		return "", badger.ErrKeyNotFound
	}

	return cached.Contents, nil
}

func (c *pageCache) set(ctx context.Context, req dges.PageRequest, contents string) error {
	ctx, span := tracer.Start(ctx, "cache:set")
	defer span.End()

	key, err := c.key(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	var serialized bytes.Buffer
	err = gob.NewEncoder(&serialized).Encode(cachedPage{
		Contents:  contents,
		ExpiresAt: time.Now().Add(c.lifetime).Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize page")
		return err
	}

	tx := c.db.NewTransaction(true)
	defer tx.Commit()
	return tx.Set([]byte(key), serialized.Bytes())
}
