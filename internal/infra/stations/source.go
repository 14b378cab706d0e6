// Package stations loads GBFS station metadata and live inventory over HTTP or from
// a Go CDK blob bucket.
package stations

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"bikeshare/config"
	domainerrors "bikeshare/internal/domain/errors"
	"bikeshare/internal/domain/entity"
	"bikeshare/internal/domain/service"
	"bikeshare/internal/infra/metrics"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
	"golang.org/x/sync/singleflight"
)

// maxFeedSize caps the bytes read from one feed document
const maxFeedSize = 32 << 20

// BucketOpener opens the bucket behind a blob URL
type BucketOpener func(ctx context.Context, bucketURL string) (*blob.Bucket, error)

// Source is a service.StationSource backed by two GBFS documents
type Source struct {
	informationURL string
	statusURL      string
	client         *http.Client
	timeout        time.Duration
	openBucket     BucketOpener
	logger         *slog.Logger
	metrics        *metrics.Registry
	now            func() time.Time

	group singleflight.Group
}

var _ service.StationSource = (*Source)(nil)

// Option customizes a Source
type Option func(*Source)

// WithHTTPClient replaces the HTTP client used for http(s) URLs
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithBucketOpener replaces blob.OpenBucket
func WithBucketOpener(opener BucketOpener) Option {
	return func(s *Source) {
		s.openBucket = opener
	}
}

// New creates a station source. registry may be nil.
func New(cfg *config.StationsConfig, logger *slog.Logger, registry *metrics.Registry, opts ...Option) *Source {
	s := &Source{
		informationURL: cfg.InformationURL,
		statusURL:      cfg.StatusURL,
		client:         &http.Client{Timeout: cfg.Timeout},
		timeout:        cfg.Timeout,
		openBucket:     blob.OpenBucket,
		logger:         logger,
		metrics:        registry,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Snapshot fetches both documents. Concurrent callers share one fetch, which outlives
// any single caller giving up on it.
func (s *Source) Snapshot(ctx context.Context) (*entity.Snapshot, error) {
	ch := s.group.DoChan("snapshot", func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			// one timeout per document
			fetchCtx, cancel = context.WithTimeout(fetchCtx, 2*s.timeout)
			defer cancel()
		}

		return s.fetch(fetchCtx)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(domainerrors.ErrStationDataUnavailable, ctx.Err().Error())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	snapshot := res.Val.(*entity.Snapshot)
	if res.Shared {
		// every caller owns its inventory
		snapshot = &entity.Snapshot{
			Stations:  snapshot.Stations,
			Inventory: snapshot.Inventory.Clone(),
			FetchedAt: snapshot.FetchedAt,
		}
	}

	return snapshot, nil
}

func (s *Source) fetch(ctx context.Context) (*entity.Snapshot, error) {
	start := s.now()

	snapshot, err := s.load(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		s.logger.Warn("Station feed fetch failed", slog.Any("error", err))
	} else {
		s.logger.Debug("Station feed fetched",
			slog.Int("stations", len(snapshot.Stations)),
			slog.Int("inventory", len(snapshot.Inventory)),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	if s.metrics != nil {
		s.metrics.RecordStationFetch(status, time.Since(start))
	}

	return snapshot, err
}

func (s *Source) load(ctx context.Context) (*entity.Snapshot, error) {
	infoBody, err := s.read(ctx, s.informationURL)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrStationDataUnavailable, err.Error())
	}
	stationList, err := decodeInformation(infoBody)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrStationDataUnavailable, err.Error())
	}

	statusBody, err := s.read(ctx, s.statusURL)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrStationDataUnavailable, err.Error())
	}
	inventory, err := decodeStatus(statusBody)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrStationDataUnavailable, err.Error())
	}

	return &entity.Snapshot{
		Stations:  stationList,
		Inventory: inventory,
		FetchedAt: s.now(),
	}, nil
}

func (s *Source) read(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, errors.New("feed URL is empty")
	}
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return s.readHTTP(ctx, rawURL)
	}

	return s.readBlob(ctx, rawURL)
}

func (s *Source) readHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build feed request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", rawURL)
	}

	return body, nil
}

func (s *Source) readBlob(ctx context.Context, rawURL string) ([]byte, error) {
	bucketURL, key, err := splitBlobURL(rawURL)
	if err != nil {
		return nil, err
	}

	bucket, err := s.openBucket(ctx, bucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "open bucket %s", bucketURL)
	}
	defer bucket.Close()

	body, err := bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s from %s", key, bucketURL)
	}

	return body, nil
}

// splitBlobURL separates a blob object URL into its bucket URL and object key.
// file:///data/status.json -> file:///data, status.json
// gs://bucket/feeds/status.json -> gs://bucket, feeds/status.json
func splitBlobURL(rawURL string) (bucketURL, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Wrapf(err, "parse %s", rawURL)
	}
	if u.Scheme == "" {
		return "", "", errors.Errorf("blob URL %s has no scheme", rawURL)
	}

	if u.Scheme == "file" {
		dir, file := path.Split(u.Path)
		if file == "" {
			return "", "", errors.Errorf("blob URL %s has no object key", rawURL)
		}
		bucket := url.URL{Scheme: u.Scheme, Host: u.Host, Path: strings.TrimSuffix(dir, "/"), RawQuery: u.RawQuery}

		return bucket.String(), file, nil
	}

	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", errors.Errorf("blob URL %s has no object key", rawURL)
	}
	bucket := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}

	return bucket.String(), key, nil
}
