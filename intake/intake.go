// ABOUTME: Business card intake pipeline
// ABOUTME: Stores the card image, extracts fields, probes for a duplicate and saves the contact
package intake

import (
	"context"
	"fmt"
	"math/rand"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/match"
	"github.com/harperreed/cardsync/merge"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// ImagePrefix is where card images are stored in the bucket.
const ImagePrefix = "Images/"

// Decision is the caller's answer to a probable duplicate.
type Decision struct {
	// Merge folds the card into the matched contact instead of creating a new one.
	Merge     bool
	JobStatus merge.JobStatus
}

// DecideFunc is consulted when a scanned card matches an existing contact.
type DecideFunc func(ctx context.Context, scanned models.Contact, m *match.Match) (Decision, error)

// MergeAlways accepts every match and keeps the prior role in history.
func MergeAlways(context.Context, models.Contact, *match.Match) (Decision, error) {
	return Decision{Merge: true, JobStatus: merge.JobHistory}, nil
}

// Card is one scan request.
type Card struct {
	Image       []byte
	ContentType string
	// Filename, when set, supplies the image key extension.
	Filename string
	MetAt    string
	Tags     []string
	Notes    string
}

// Result reports what Scan did.
type Result struct {
	Contact  models.Contact
	ImageKey string
	Created  bool
	Match    *match.Match
}

type Intake struct {
	Store     *store.Store
	Images    blob.Bucket
	Extractor Extractor
	// Decide is nil when no one can be asked; duplicates are then merged
	// with MergeAlways.
	Decide DecideFunc
	Logger *zap.Logger
	Now    func() time.Time
}

func New(st *store.Store, images blob.Bucket, extractor Extractor, logger *zap.Logger) *Intake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Intake{
		Store:     st,
		Images:    images,
		Extractor: extractor,
		Logger:    logger.Named("intake"),
		Now:       time.Now,
	}
}

// Scan runs one card through the pipeline. The image is uploaded before
// extraction so a failed extraction still leaves the card retrievable.
func (in *Intake) Scan(ctx context.Context, card Card) (*Result, error) {
	if len(card.Image) == 0 {
		return nil, fmt.Errorf("no image data")
	}
	contentType := card.ContentType
	if contentType == "" {
		contentType = blob.ContentType(card.Filename)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(card.Image)
	}

	key := in.imageKey(card.Filename, contentType)
	if err := in.Images.Put(ctx, key, card.Image, contentType); err != nil {
		return nil, fmt.Errorf("failed to store card image: %w", err)
	}
	in.Logger.Info("card image stored", zap.String("key", key), zap.Int("bytes", len(card.Image)))

	candidate, err := in.Extractor.Extract(ctx, card.Image, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to extract card %s: %w", key, err)
	}

	scanned := candidate.Contact()
	scanned.ImageURL = key
	scanned.MetAt = strings.TrimSpace(card.MetAt)
	scanned.Notes = strings.TrimSpace(card.Notes)
	scanned.Tags = in.Store.Tags().Union(card.Tags, scanned.Tags)
	scanned.ApplyCompanyCard()
	if strings.TrimSpace(scanned.Name) == "" {
		return nil, fmt.Errorf("card %s: %w: no name or company found", key, store.ErrInvalidContact)
	}

	opts := store.SaveOptions{}
	found, err := in.Store.FindDuplicate(ctx, scanned)
	if err != nil {
		return nil, err
	}
	if found != nil {
		decide := in.Decide
		if decide == nil {
			decide = MergeAlways
		}
		decision, err := decide(ctx, scanned, found)
		if err != nil {
			return nil, err
		}
		if decision.Merge {
			opts.MatchDuplicates = true
			opts.JobStatus = decision.JobStatus
		}
	}

	res, err := in.Store.Save(ctx, scanned, opts)
	if err != nil {
		return nil, err
	}
	return &Result{Contact: res.Contact, ImageKey: key, Created: res.Created, Match: res.Match}, nil
}

func (in *Intake) imageKey(filename, contentType string) string {
	now := in.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(now), entropy).String()
	return ImagePrefix + id + extension(filename, contentType)
}

func extension(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	}
	return ".bin"
}
