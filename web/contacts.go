// ABOUTME: Contact page and form handlers for the web UI
// ABOUTME: Lists, adds, edits and deletes contacts and serves card images and uploads
package web

import (
	"errors"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/intake"
	"github.com/harperreed/cardsync/merge"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/record"
	"github.com/harperreed/cardsync/store"
	"github.com/harperreed/cardsync/viz"
)

// maxUpload caps card image uploads.
const maxUpload = 20 << 20

func (s *Server) handleContacts(c *gin.Context) {
	contacts, err := s.store.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	allTags, err := s.store.UniqueTags(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	query := strings.ToLower(strings.TrimSpace(c.Query("q")))
	tag := c.Query("tag")
	tagKey := s.store.Tags().Key(tag)

	shown := make([]models.Contact, 0, len(contacts))
	for _, ct := range contacts {
		if query != "" && !matchesQuery(ct, query) {
			continue
		}
		if tagKey != "" && !s.carriesTag(ct, tagKey) {
			continue
		}
		shown = append(shown, ct)
	}
	sort.SliceStable(shown, func(i, j int) bool {
		return shown[i].AddedAt.After(shown[j].AddedAt)
	})

	c.HTML(http.StatusOK, "layout.html", gin.H{
		"Title":           "Contacts",
		"ContentTemplate": "contacts-content",
		"Contacts":        shown,
		"Total":           len(contacts),
		"Tags":            allTags,
		"Query":           c.Query("q"),
		"Tag":             tag,
		"CanScan":         s.intake != nil,
	})
}

func (s *Server) handleContactDetail(c *gin.Context) {
	ct, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if ct == nil {
		c.String(http.StatusNotFound, "Contact not found")
		return
	}
	c.HTML(http.StatusOK, "contact-detail", gin.H{"Contact": ct})
}

func (s *Server) handleAddContact(c *gin.Context) {
	status, err := merge.ParseJobStatus(c.DefaultPostForm("jobStatus", string(merge.JobHistory)))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	ct := models.Contact{
		Name:    strings.TrimSpace(c.PostForm("name")),
		Title:   strings.TrimSpace(c.PostForm("title")),
		Company: strings.TrimSpace(c.PostForm("company")),
		Email:   strings.TrimSpace(c.PostForm("email")),
		Phone:   strings.TrimSpace(c.PostForm("phone")),
		MetAt:   strings.TrimSpace(c.PostForm("metAt")),
		Notes:   strings.TrimSpace(c.PostForm("notes")),
		Tags:    record.SplitTags(c.PostForm("tags")),
	}

	res, err := s.store.Save(c.Request.Context(), ct, store.SaveOptions{
		JobStatus:       status,
		MatchDuplicates: c.PostForm("new") == "",
	})
	if errors.Is(err, store.ErrInvalidContact) {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("contact saved from web",
		zap.String("contact_id", res.Contact.ID),
		zap.Bool("created", res.Created))
	c.Redirect(http.StatusSeeOther, "/")
}

// patchFields maps form names onto patch fields; only submitted fields change.
func patchFields(p *store.Patch) map[string]**string {
	return map[string]**string{
		"name":      &p.Name,
		"title":     &p.Title,
		"company":   &p.Company,
		"email":     &p.Email,
		"phone":     &p.Phone,
		"metAt":     &p.MetAt,
		"notes":     &p.Notes,
		"aiSummary": &p.AISummary,
		"website":   &p.Website,
		"linkedin":  &p.LinkedIn,
	}
}

func (s *Server) handleUpdateContact(c *gin.Context) {
	var patch store.Patch
	for field, dst := range patchFields(&patch) {
		if v, ok := c.GetPostForm(field); ok {
			v = strings.TrimSpace(v)
			*dst = &v
		}
	}
	if v, ok := c.GetPostForm("tags"); ok {
		t := record.SplitTags(v)
		patch.Tags = &t
	}
	if v := c.PostForm("revision"); v != "" {
		rev, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, "invalid revision")
			return
		}
		patch.Revision = rev
	}
	status, err := merge.ParseJobStatus(c.DefaultPostForm("jobStatus", string(merge.JobHistory)))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.store.Update(c.Request.Context(), c.Param("id"), patch, status)
	switch {
	case errors.Is(err, store.ErrRevisionConflict):
		c.String(http.StatusConflict, "This contact was changed elsewhere. Reload and try again.")
		return
	case errors.Is(err, store.ErrInvalidContact):
		c.String(http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.fail(c, err)
		return
	case updated == nil:
		c.String(http.StatusNotFound, "Contact not found")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleDeleteContact(c *gin.Context) {
	removed, err := s.store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if removed == nil {
		c.String(http.StatusNotFound, "Contact not found")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

type duplicateInput struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Title   string `json:"title"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

func (s *Server) handleCheckDuplicate(c *gin.Context) {
	var input duplicateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	found, err := s.store.FindDuplicate(c.Request.Context(), models.Contact{
		Name:    input.Name,
		Company: input.Company,
		Title:   input.Title,
		Email:   input.Email,
		Phone:   input.Phone,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if found == nil {
		c.JSON(http.StatusOK, gin.H{"duplicate": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"duplicate":   true,
		"rule":        found.Rule,
		"confidence":  found.Confidence,
		"roleChanged": merge.RoleChanged(found.Contact, models.Contact{Title: input.Title, Company: input.Company}),
		"contact":     found.Contact,
	})
}

func (s *Server) handleParseCard(c *gin.Context) {
	if s.intake == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "card extraction is not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.intake.Scan(c.Request.Context(), intake.Card{
		Image:       data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
		MetAt:       c.PostForm("metAt"),
		Tags:        record.SplitTags(c.PostForm("tags")),
		Notes:       c.PostForm("notes"),
	})
	if errors.Is(err, store.ErrInvalidContact) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("card scan failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	out := gin.H{
		"created":  res.Created,
		"imageKey": res.ImageKey,
		"contact":  res.Contact,
	}
	if res.Match != nil {
		out["mergedInto"] = res.Match.Contact.ID
		out["rule"] = res.Match.Rule
	}
	c.JSON(http.StatusOK, out)
}

// handleImage streams Images/<path> from the bucket.
func (s *Server) handleImage(c *gin.Context) {
	rel := strings.TrimPrefix(path.Clean("/"+c.Param("path")), "/")
	if rel == "" || rel == "." {
		c.String(http.StatusNotFound, "Not Found")
		return
	}
	key := intake.ImagePrefix + rel

	data, err := s.images.Get(c.Request.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		c.String(http.StatusNotFound, "Not Found")
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	contentType := blob.ContentType(key)
	if contentType == "application/octet-stream" {
		contentType = "image/jpeg"
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) handleDashboard(c *gin.Context) {
	contacts, err := s.store.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "layout.html", gin.H{
		"Title":           "Dashboard",
		"ContentTemplate": "dashboard-content",
		"Stats":           viz.GenerateDashboardStats(contacts, time.Now()),
	})
}

// handleGraph returns the career graph as DOT, centred on ?focus when given.
func (s *Server) handleGraph(c *gin.Context) {
	contacts, err := s.store.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	dot, _, err := viz.NewGraphGenerator(contacts).CareerGraph(c.Query("focus"))
	if err != nil {
		c.String(http.StatusNotFound, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/vnd.graphviz; charset=utf-8", []byte(dot))
}

func matchesQuery(c models.Contact, query string) bool {
	fields := append([]string{c.Name, c.Email, c.SecondaryEmail, c.Company, c.Title}, c.Tags...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func (s *Server) carriesTag(c models.Contact, key string) bool {
	for _, t := range c.Tags {
		if s.store.Tags().Key(t) == key {
			return true
		}
	}
	return false
}
