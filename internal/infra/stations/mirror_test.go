package stations

import (
	"context"
	"testing"
	"time"

	"bikeshare/config"
	"bikeshare/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
)

// openerOf opens a fresh in-memory bucket holding a copy of docs on every call
func openerOf(docs map[string][]byte) BucketOpener {
	return func(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
		bucket := memblob.OpenBucket(nil)
		for key, body := range docs {
			if err := bucket.WriteAll(ctx, key, body, nil); err != nil {
				return nil, err
			}
		}

		return bucket, nil
	}
}

func TestSource_Mirror(t *testing.T) {
	srv := newFeedServer(t, nil)
	source := New(&config.StationsConfig{
		InformationURL: srv.URL + "/station_information.json",
		StatusURL:      srv.URL + "/station_status.json",
		Timeout:        time.Second,
	}, discardLogger(), nil)

	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	manifest, err := source.Mirror(ctx, bucket)
	require.NoError(t, err)

	assert.Equal(t, 3, manifest.Stations)
	assert.Equal(t, 4, manifest.Inventory)
	assert.Equal(t, util.ChecksumBytes([]byte(informationDoc)), manifest.Files[InformationKey].SHA256)
	assert.Equal(t, int64(len(statusDoc)), manifest.Files[StatusKey].SizeBytes)

	body, err := bucket.ReadAll(ctx, StatusKey)
	require.NoError(t, err)
	assert.Equal(t, statusDoc, string(body))

	verified, err := VerifyMirror(ctx, bucket)
	require.NoError(t, err)
	assert.Equal(t, manifest.Files, verified.Files)

	// the mirrored documents serve as a station source of their own
	infoBody, err := bucket.ReadAll(ctx, InformationKey)
	require.NoError(t, err)
	mirrored := New(&config.StationsConfig{
		InformationURL: "mem://mirror/" + InformationKey,
		StatusURL:      "mem://mirror/" + StatusKey,
	}, discardLogger(), nil, WithBucketOpener(openerOf(map[string][]byte{
		InformationKey: infoBody,
		StatusKey:      body,
	})))
	snapshot, err := mirrored.Snapshot(ctx)
	require.NoError(t, err)
	assertDecoded(t, snapshot)
}

func TestSource_Mirror_MalformedFeedWritesNothing(t *testing.T) {
	ctx := context.Background()
	source := New(&config.StationsConfig{
		InformationURL: "mem://in/info.json",
		StatusURL:      "mem://in/status.json",
	}, discardLogger(), nil, WithBucketOpener(openerOf(map[string][]byte{
		"info.json":   []byte("{not json"),
		"status.json": []byte(statusDoc),
	})))

	target := memblob.OpenBucket(nil)
	defer target.Close()

	_, err := source.Mirror(ctx, target)
	require.Error(t, err)

	exists, err := target.Exists(ctx, ManifestKey)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVerifyMirror_Tampered(t *testing.T) {
	srv := newFeedServer(t, nil)
	source := New(&config.StationsConfig{
		InformationURL: srv.URL + "/station_information.json",
		StatusURL:      srv.URL + "/station_status.json",
	}, discardLogger(), nil)

	ctx := context.Background()

	tests := []struct {
		name    string
		tamper  func(t *testing.T, bucket *blob.Bucket)
		wantErr string
	}{
		{
			name: "changed document",
			tamper: func(t *testing.T, bucket *blob.Bucket) {
				require.NoError(t, bucket.WriteAll(ctx, StatusKey, []byte(statusDoc+"\n"), nil))
			},
			wantErr: "size mismatch",
		},
		{
			name: "missing document",
			tamper: func(t *testing.T, bucket *blob.Bucket) {
				require.NoError(t, bucket.Delete(ctx, InformationKey))
			},
			wantErr: "read " + InformationKey,
		},
		{
			name: "missing manifest",
			tamper: func(t *testing.T, bucket *blob.Bucket) {
				require.NoError(t, bucket.Delete(ctx, ManifestKey))
			},
			wantErr: "read " + ManifestKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket := memblob.OpenBucket(nil)
			defer bucket.Close()

			_, err := source.Mirror(ctx, bucket)
			require.NoError(t, err)

			tt.tamper(t, bucket)

			_, err = VerifyMirror(ctx, bucket)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
