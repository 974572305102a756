// ABOUTME: Backend-agnostic contact store facade
// ABOUTME: Upserts through the duplicate matcher and merge engine, caches reads and drives document sync
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/match"
	"github.com/harperreed/cardsync/merge"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/tags"
	"go.uber.org/zap"
)

// DefaultCacheTTL bounds how stale a read can be across processes.
const DefaultCacheTTL = 30 * time.Second

// ArtifactSink receives every successful canonical write. It must not fail
// the write; artifact.Syncer satisfies it.
type ArtifactSink interface {
	Written(ctx context.Context, previousName string, c models.Contact)
	Removed(ctx context.Context, c models.Contact)
}

// Options configures a Store. Zero values pick defaults.
type Options struct {
	// CacheTTL is the read cache lifetime. Negative disables the cache;
	// zero means DefaultCacheTTL.
	CacheTTL time.Duration
	Tags     *tags.Normalizer
	// Artifacts is notified after writes. Nil disables document sync.
	Artifacts ArtifactSink
	// MergeLog records duplicate merges when set.
	MergeLog *sql.DB
	Logger   *zap.Logger
	Now      func() time.Time
	NewID    func() string
}

// Store is the single entry point for reading and writing contacts.
type Store struct {
	backend   Backend
	cache     *cache
	engine    *merge.Engine
	tags      *tags.Normalizer
	artifacts ArtifactSink
	mergeLog  *sql.DB
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	// writes are serialized per process
	mu sync.Mutex
}

// New wraps backend.
func New(backend Backend, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.Tags == nil {
		opts.Tags = tags.NewNormalizer(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	engine := merge.NewEngine(opts.Tags)
	engine.Now = opts.Now

	return &Store{
		backend:   backend,
		cache:     newCache(ttl, opts.Now),
		engine:    engine,
		tags:      opts.Tags,
		artifacts: opts.Artifacts,
		mergeLog:  opts.MergeLog,
		logger:    opts.Logger.Named("store"),
		now:       opts.Now,
		newID:     opts.NewID,
	}
}

// Backend returns the injected backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Engine returns the merge engine the store uses.
func (s *Store) Engine() *merge.Engine {
	return s.engine
}

// Tags returns the tag normalizer the store uses.
func (s *Store) Tags() *tags.Normalizer {
	return s.tags
}

// List returns every contact. An unconfigured backend yields an empty set and
// a warning so read-only surfaces keep working.
func (s *Store) List(ctx context.Context) ([]models.Contact, error) {
	if contacts, ok := s.cache.get(); ok {
		return contacts, nil
	}
	contacts, err := s.backend.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			s.logger.Warn("backend not configured, returning no contacts", zap.String("backend", s.backend.Name()), zap.Error(err))
			return []models.Contact{}, nil
		}
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	s.cache.set(contacts)
	return contacts, nil
}

// Get returns the contact with id, or nil when there is none.
func (s *Store) Get(ctx context.Context, id string) (*models.Contact, error) {
	contacts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(contacts, id); i >= 0 {
		c := contacts[i]
		return &c, nil
	}
	return nil, nil
}

// FindDuplicate returns the existing contact c most likely duplicates.
func (s *Store) FindDuplicate(ctx context.Context, c models.Contact) (*match.Match, error) {
	contacts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return match.Find(c, contacts), nil
}

// UniqueTags returns every distinct tag in the store, sorted.
func (s *Store) UniqueTags(ctx context.Context) ([]string, error) {
	contacts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []string{}
	for _, c := range contacts {
		for _, t := range c.Tags {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Invalidate drops the read cache.
func (s *Store) Invalidate() {
	s.cache.invalidate()
}

// SaveOptions controls Save.
type SaveOptions struct {
	// JobStatus decides what happens to a changed title or company.
	JobStatus merge.JobStatus
	// MatchDuplicates merges into a matched existing contact when c has no id.
	MatchDuplicates bool
}

// SaveResult describes what Save did.
type SaveResult struct {
	Contact models.Contact
	// Created is true when a new record was inserted.
	Created bool
	// Match is set when c was merged into a duplicate.
	Match *match.Match
}

// Save upserts c. An existing id merges into that record; otherwise, when
// asked, a duplicate match merges into the matched record; otherwise c is
// inserted with a fresh id.
func (s *Store) Save(ctx context.Context, c models.Contact, opts SaveOptions) (*SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var target *models.Contact
	var found *match.Match
	if c.ID != "" {
		if i := indexOf(contacts, c.ID); i >= 0 {
			target = &contacts[i]
		}
	} else if opts.MatchDuplicates {
		if found = match.Find(c, contacts); found != nil {
			target = &found.Contact
		}
	}

	if target == nil {
		created, err := s.insert(ctx, c)
		if err != nil {
			return nil, err
		}
		return &SaveResult{Contact: created, Created: true}, nil
	}

	if c.Revision != 0 && c.Revision != target.Revision {
		return nil, &ConflictError{ID: target.ID, ExpectedRevision: c.Revision, CurrentRevision: target.Revision}
	}

	merged := s.engine.Merge(*target, c, opts.JobStatus)
	merged.Revision = target.Revision + 1
	merged.ApplyDefaults()
	if err := s.backend.Replace(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to save contact %s: %w", merged.ID, err)
	}
	s.cache.invalidate()

	if found != nil {
		s.logMerge(ctx, db.MergeLogEntry{
			SurvivorID: merged.ID,
			Source:     db.MergeSourceSave,
			Rule:       string(found.Rule),
			Confidence: string(found.Confidence),
			JobStatus:  string(opts.JobStatus),
		})
	}
	s.written(ctx, target.Name, merged)

	s.logger.Info("contact updated", zap.String("contact_id", merged.ID), zap.Int64("revision", merged.Revision))
	return &SaveResult{Contact: merged, Match: found}, nil
}

func (s *Store) insert(ctx context.Context, c models.Contact) (models.Contact, error) {
	c = c.Clone()
	c.ApplyCompanyCard()
	if strings.TrimSpace(c.Name) == "" {
		return models.Contact{}, ErrInvalidContact
	}
	if c.ID == "" {
		c.ID = s.newID()
	}

	now := s.stamp()
	if c.AddedAt.IsZero() {
		c.AddedAt = now
	}
	c.UpdatedAt = now
	c.Tags = s.tags.Union(c.Tags)
	c.History = []models.HistoryEntry{}
	c.Revision = 1
	c.ApplyDefaults()

	if err := s.backend.Insert(ctx, c); err != nil {
		return models.Contact{}, fmt.Errorf("failed to insert contact: %w", err)
	}
	s.cache.invalidate()
	s.written(ctx, "", c)

	s.logger.Info("contact created", zap.String("contact_id", c.ID))
	return c, nil
}

// Patch is a partial update. Nil fields are left alone; a non-nil empty
// string clears the field. Tags, when set, replace the tag set.
type Patch struct {
	Name               *string
	Title              *string
	Company            *string
	Email              *string
	SecondaryEmail     *string
	Phone              *string
	Website            *string
	LinkedIn           *string
	Facebook           *string
	Instagram          *string
	MetAt              *string
	Notes              *string
	Tags               *[]string
	AISummary          *string
	ImageURL           *string
	ImportanceScore    *int
	LastVerifiedAt     *string
	VerificationStatus *models.VerificationStatus
	EmailValid         *models.EmailValidity
	// Revision, when non-zero, must equal the stored revision.
	Revision int64
}

func (p Patch) apply(c *models.Contact) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Name, p.Name)
	set(&c.Title, p.Title)
	set(&c.Company, p.Company)
	set(&c.Email, p.Email)
	set(&c.SecondaryEmail, p.SecondaryEmail)
	set(&c.Phone, p.Phone)
	set(&c.SocialProfiles.Website, p.Website)
	set(&c.SocialProfiles.LinkedIn, p.LinkedIn)
	set(&c.SocialProfiles.Facebook, p.Facebook)
	set(&c.SocialProfiles.Instagram, p.Instagram)
	set(&c.MetAt, p.MetAt)
	set(&c.Notes, p.Notes)
	set(&c.AISummary, p.AISummary)
	set(&c.ImageURL, p.ImageURL)
	set(&c.LastVerifiedAt, p.LastVerifiedAt)
	if p.Tags != nil {
		c.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.ImportanceScore != nil {
		c.ImportanceScore = *p.ImportanceScore
	}
	if p.VerificationStatus != nil {
		c.VerificationStatus = *p.VerificationStatus
	}
	if p.EmailValid != nil {
		c.EmailValid = *p.EmailValid
	}
}

// Update applies patch to the contact with id. It returns nil when there is
// no such contact.
func (s *Store) Update(ctx context.Context, id string, patch Patch, status merge.JobStatus) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(contacts, id)
	if i < 0 {
		return nil, nil
	}
	existing := contacts[i]
	if patch.Revision != 0 && patch.Revision != existing.Revision {
		return nil, &ConflictError{ID: id, ExpectedRevision: patch.Revision, CurrentRevision: existing.Revision}
	}

	edited := existing.Clone()
	patch.apply(&edited)
	if strings.TrimSpace(edited.Name) == "" && strings.TrimSpace(edited.Company) == "" {
		return nil, ErrInvalidContact
	}
	edited.ApplyCompanyCard()

	updated := s.engine.Edit(existing, edited, status)
	updated.Revision = existing.Revision + 1
	updated.ApplyDefaults()
	if err := s.backend.Replace(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update contact %s: %w", id, err)
	}
	s.cache.invalidate()
	s.written(ctx, existing.Name, updated)

	s.logger.Info("contact updated", zap.String("contact_id", id), zap.Int64("revision", updated.Revision))
	return &updated, nil
}

// Delete removes the contact with id and its documents. It returns the
// removed contact, or nil when there was none.
func (s *Store) Delete(ctx context.Context, id string) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(contacts, id)
	if i < 0 {
		return nil, nil
	}
	removed := contacts[i]

	if err := s.backend.Remove(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete contact %s: %w", id, err)
	}
	s.cache.invalidate()
	if s.artifacts != nil {
		s.artifacts.Removed(ctx, removed)
	}

	s.logger.Info("contact deleted", zap.String("contact_id", id))
	return &removed, nil
}

// ReplaceAll rewrites the whole record set. basis is the snapshot the caller
// computed records from: a live record whose revision moved since basis
// aborts the rewrite with a ConflictError, and live records absent from basis
// (created after the snapshot) are kept. A nil basis skips both checks.
// Callers bump Revision on records they changed.
func (s *Store) ReplaceAll(ctx context.Context, records, basis []models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Contact, 0, len(records))
	for _, c := range records {
		c = c.Clone()
		c.ApplyDefaults()
		out = append(out, c)
	}

	if basis != nil {
		live, err := s.load(ctx)
		if err != nil {
			return err
		}
		seen := make(map[string]int64, len(basis))
		for _, c := range basis {
			seen[c.ID] = c.Revision
		}
		kept := make(map[string]bool, len(out))
		for _, c := range out {
			kept[c.ID] = true
		}
		for _, c := range live {
			rev, ok := seen[c.ID]
			if !ok {
				if !kept[c.ID] {
					s.logger.Info("keeping contact created during batch run", zap.String("contact_id", c.ID))
					out = append(out, c)
				}
				continue
			}
			if rev != c.Revision {
				return &ConflictError{ID: c.ID, ExpectedRevision: rev, CurrentRevision: c.Revision}
			}
		}
	}

	if err := s.backend.ReplaceAll(ctx, out); err != nil {
		return fmt.Errorf("failed to rewrite contacts: %w", err)
	}
	s.cache.invalidate()
	s.logger.Info("contacts rewritten", zap.Int("count", len(out)), zap.String("backend", s.backend.Name()))
	return nil
}

// load always reads through to the backend; writes must not act on a cached set.
func (s *Store) load(ctx context.Context) ([]models.Contact, error) {
	contacts, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	return contacts, nil
}

func (s *Store) written(ctx context.Context, previousName string, c models.Contact) {
	if s.artifacts != nil {
		s.artifacts.Written(ctx, previousName, c)
	}
}

func (s *Store) logMerge(ctx context.Context, e db.MergeLogEntry) {
	if s.mergeLog == nil {
		return
	}
	if err := db.LogMerge(ctx, s.mergeLog, e); err != nil {
		s.logger.Warn("failed to record merge", zap.Error(err))
	}
}

func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func indexOf(contacts []models.Contact, id string) int {
	if id == "" {
		return -1
	}
	for i := range contacts {
		if contacts[i].ID == id {
			return i
		}
	}
	return -1
}
