// Package importer loads campus locations from a YAML manifest into the
// location store, uploading their photos on the way.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/guessucla/campusguess/internal/campusguess"
	"github.com/guessucla/campusguess/internal/imagestore"
)

var ErrNoLocations = errors.New("manifest has no locations")

// Entry is one location in the manifest. Coordinates may be given either
// as the "lat: x, lon: y" string or as separate lat and lon fields.
type Entry struct {
	Name        string   `koanf:"name"`
	Address     string   `koanf:"address"`
	Coordinates string   `koanf:"coordinates"`
	Lat         *float64 `koanf:"lat"`
	Lon         *float64 `koanf:"lon"`
	Image       string   `koanf:"image"`
}

// LoadManifest reads the locations list from a YAML file.
func LoadManifest(path string) ([]Entry, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading manifest %s: %w", path, err)
	}

	var entries []Entry
	if err := k.Unmarshal("locations", &entries); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, ErrNoLocations
	}
	return entries, nil
}

// Coord resolves the entry's position.
func (e Entry) Coord() (campusguess.Coord, error) {
	if e.Coordinates != "" {
		return campusguess.ParseCoord(e.Coordinates)
	}
	if e.Lat == nil || e.Lon == nil {
		return campusguess.Coord{}, fmt.Errorf("%w: coordinates or lat and lon are required", campusguess.ErrBadCoord)
	}
	// Round-trip through the stored form so range checks match.
	return campusguess.ParseCoord(campusguess.Coord{Lat: *e.Lat, Lon: *e.Lon}.String())
}

// LocationUpserter is the slice of the store the importer writes to.
type LocationUpserter interface {
	UpsertLocation(ctx context.Context, loc campusguess.Location) (campusguess.Location, error)
}

// Uploader stores image bytes under a key.
type Uploader interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
}

type Importer struct {
	store     LocationUpserter
	images    Uploader
	imagesDir string
	logger    *slog.Logger
}

// New builds an importer. images may be nil, in which case photos are
// skipped and locations keep whatever image key they already had.
func New(store LocationUpserter, images Uploader, imagesDir string, logger *slog.Logger) *Importer {
	return &Importer{store: store, images: images, imagesDir: imagesDir, logger: logger}
}

type Summary struct {
	Imported int
	Uploaded int
	Failed   int
}

// Run imports every entry. A bad entry is logged and counted; it does not
// stop the rest.
func (im *Importer) Run(ctx context.Context, entries []Entry) (Summary, error) {
	var sum Summary
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		uploaded, err := im.importOne(ctx, e)
		if err != nil {
			sum.Failed++
			im.logger.Warn("skipping location", "index", i, "name", e.Name, "error", err)
			continue
		}
		sum.Imported++
		if uploaded {
			sum.Uploaded++
		}
	}
	im.logger.Info("import finished",
		"imported", sum.Imported,
		"uploaded", sum.Uploaded,
		"failed", sum.Failed,
	)
	return sum, nil
}

func (im *Importer) importOne(ctx context.Context, e Entry) (uploaded bool, err error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return false, errors.New("name is required")
	}
	coord, err := e.Coord()
	if err != nil {
		return false, err
	}

	loc := campusguess.Location{Name: name, Address: strings.TrimSpace(e.Address), Coord: coord}
	if e.Image != "" && im.images != nil {
		key, err := im.upload(ctx, name, e.Image)
		if err != nil {
			return false, err
		}
		loc.ImageKey = key
		uploaded = true
	}

	if _, err := im.store.UpsertLocation(ctx, loc); err != nil {
		return false, err
	}
	return uploaded, nil
}

func (im *Importer) upload(ctx context.Context, name, image string) (string, error) {
	key, err := imagestore.ObjectKey(name, image)
	if err != nil {
		return "", err
	}
	ct, err := imagestore.ContentType(image)
	if err != nil {
		return "", err
	}

	path := image
	if !filepath.IsAbs(path) {
		path = filepath.Join(im.imagesDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	if err := im.images.Put(ctx, key, f, ct); err != nil {
		return "", err
	}
	return key, nil
}
