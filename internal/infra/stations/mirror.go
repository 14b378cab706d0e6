package stations

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"bikeshare/internal/util"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
)

// Object keys written by Mirror
const (
	InformationKey = "station_information.json"
	StatusKey      = "station_status.json"
	ManifestKey    = "manifest.json"

	manifestVersion = "1.0"
)

// Manifest describes a mirrored pair of feed documents
type Manifest struct {
	Version     string                  `json:"version"`
	GeneratedAt time.Time               `json:"generated_at"`
	Sources     map[string]string       `json:"sources"`
	Stations    int                     `json:"stations"`
	Inventory   int                     `json:"inventory"`
	Files       map[string]FileManifest `json:"files"`
}

// FileManifest records the size and checksum of one mirrored document
type FileManifest struct {
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Mirror copies both feed documents into bucket together with a manifest. Documents
// that do not decode are not written.
func (s *Source) Mirror(ctx context.Context, bucket *blob.Bucket) (*Manifest, error) {
	infoBody, err := s.read(ctx, s.informationURL)
	if err != nil {
		return nil, err
	}
	stationList, err := decodeInformation(infoBody)
	if err != nil {
		return nil, err
	}

	statusBody, err := s.read(ctx, s.statusURL)
	if err != nil {
		return nil, err
	}
	inventory, err := decodeStatus(statusBody)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		Version:     manifestVersion,
		GeneratedAt: s.now().UTC(),
		Sources: map[string]string{
			InformationKey: s.informationURL,
			StatusKey:      s.statusURL,
		},
		Stations:  len(stationList),
		Inventory: len(inventory),
		Files:     make(map[string]FileManifest, 2),
	}

	docs := []struct {
		key  string
		body []byte
	}{
		{InformationKey, infoBody},
		{StatusKey, statusBody},
	}
	for _, doc := range docs {
		if err := bucket.WriteAll(ctx, doc.key, doc.body, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
			return nil, errors.Wrapf(err, "write %s", doc.key)
		}
		manifest.Files[doc.key] = FileManifest{
			SizeBytes: int64(len(doc.body)),
			SHA256:    util.ChecksumBytes(doc.body),
		}
	}

	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode manifest")
	}
	if err := bucket.WriteAll(ctx, ManifestKey, encoded, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return nil, errors.Wrapf(err, "write %s", ManifestKey)
	}

	s.logger.Info("Station feeds mirrored",
		slog.Int("stations", manifest.Stations),
		slog.Int("inventory", manifest.Inventory),
	)

	return manifest, nil
}

// VerifyMirror checks a mirrored bucket against its manifest: every listed document
// must exist with the recorded size and checksum and must still decode.
func VerifyMirror(ctx context.Context, bucket *blob.Bucket) (*Manifest, error) {
	raw, err := bucket.ReadAll(ctx, ManifestKey)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", ManifestKey)
	}

	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	if manifest.Version != manifestVersion {
		return nil, errors.Errorf("unsupported manifest version: %s", manifest.Version)
	}

	for _, key := range []string{InformationKey, StatusKey} {
		want, ok := manifest.Files[key]
		if !ok {
			return nil, errors.Errorf("manifest does not list %s", key)
		}

		body, err := bucket.ReadAll(ctx, key)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", key)
		}
		if int64(len(body)) != want.SizeBytes {
			return nil, errors.Errorf("size mismatch for %s: expected %d, got %d", key, want.SizeBytes, len(body))
		}
		if sum := util.ChecksumBytes(body); sum != want.SHA256 {
			return nil, errors.Errorf("checksum mismatch for %s", key)
		}

		switch key {
		case InformationKey:
			stationList, err := decodeInformation(body)
			if err != nil {
				return nil, err
			}
			if len(stationList) != manifest.Stations {
				return nil, errors.Errorf("%s holds %d stations, manifest says %d", key, len(stationList), manifest.Stations)
			}
		case StatusKey:
			if _, err := decodeStatus(body); err != nil {
				return nil, err
			}
		}
	}

	return &manifest, nil
}
