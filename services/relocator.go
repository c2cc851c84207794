package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"homely-scraper/models"
	"homely-scraper/storage"
	"homely-scraper/utils"
)

// Asset categories and their fixed extensions. The index in the target
// name is the 1-based position in the source list, so repeated runs
// produce the same object keys.
const (
	categoryGallery   = "gallery"
	categoryFloorPlan = "floorplan"
	categoryPDF       = "pdf"

	// keyPrefix namespaces this site's media inside the shared bucket.
	keyPrefix = "realestate/hl"

	maxAssetBytes = 25 << 20
)

// Relocator moves a listing's remote media into durable blob storage and
// rewrites the listing's media fields to CDN URLs. It runs after the
// core record is committed; nothing here can fail the listing itself.
type Relocator struct {
	uploader  storage.BlobUploader
	store     storage.ListingStore
	client    *http.Client
	cdnDomain string
	logger    *utils.Logger
}

// NewRelocator wires a Relocator for one site. cdnDomain comes from the
// per-site CDN table and already carries a trailing slash.
func NewRelocator(uploader storage.BlobUploader, store storage.ListingStore, cdnDomain string, logger *utils.Logger) *Relocator {
	return &Relocator{
		uploader:  uploader,
		store:     store,
		client:    &http.Client{Timeout: 30 * time.Second},
		cdnDomain: cdnDomain,
		logger:    logger,
	}
}

// Relocate processes the three raw-URL sets of a committed listing and
// writes the resulting CDN URL sets back. A category that relocated
// nothing leaves the stored field at its prior value.
func (r *Relocator) Relocate(ctx context.Context, listing *models.Listing) {
	images := r.relocateSet(ctx, listing.ExternalID, categoryGallery, listing.OriginImages)
	floorPlans := r.relocateSet(ctx, listing.ExternalID, categoryFloorPlan, listing.OriginFloorPlan)
	documents := r.relocateSet(ctx, listing.ExternalID, categoryPDF, listing.OriginDocuments)

	if images == nil && floorPlans == nil && documents == nil {
		return
	}

	if err := r.store.UpdateMedia(ctx, listing.ExternalID, images, floorPlans, documents); err != nil {
		r.logger.Error("media rewrite failed for %s: %v", listing.ExternalID, err)
	}
}

// relocateSet fetches and uploads one category's assets, returning the
// ordered CDN URLs of the ones that made it. A failed asset is dropped;
// a category with no successes returns nil so the field keeps its prior
// value.
func (r *Relocator) relocateSet(ctx context.Context, externalID, category string, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}

	relocated := make([]string, 0, len(urls))
	for i, rawURL := range urls {
		path := targetPath(externalID, category, i+1)

		data, err := r.fetch(ctx, rawURL)
		if err != nil {
			r.logger.Warn("asset fetch failed (%s %s #%d): %v", externalID, category, i+1, err)
			continue
		}

		if err := r.uploader.Upload(ctx, path, data, contentType(category)); err != nil {
			r.logger.Warn("asset upload failed (%s %s #%d): %v", externalID, category, i+1, err)
			continue
		}

		relocated = append(relocated, r.cdnDomain+path)
	}

	if len(relocated) == 0 {
		return nil
	}

	r.logger.Info("relocated %d/%d %s assets for %s", len(relocated), len(urls), category, externalID)
	return relocated
}

func (r *Relocator) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// targetPath builds the deterministic object key
// realestate/hl/{external_id}/{category}-{index}.{ext}.
func targetPath(externalID, category string, index int) string {
	return fmt.Sprintf("%s/%s/%s-%d.%s", keyPrefix, externalID, category, index, extension(category))
}

func extension(category string) string {
	if category == categoryPDF {
		return "pdf"
	}
	return "jpg"
}

func contentType(category string) string {
	if category == categoryPDF {
		return "application/pdf"
	}
	return "image/jpeg"
}
