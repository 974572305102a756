// ABOUTME: Card extraction collaborator and its HTTP client
// ABOUTME: Turns a card image into candidate contact fields via an external service
package intake

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/harperreed/cardsync/models"
	"go.uber.org/zap"
)

// Candidate is what an extractor read off a card.
type Candidate struct {
	Name      string   `json:"name"`
	Title     string   `json:"title"`
	TitleZh   string   `json:"title_zh"`
	Company   string   `json:"company"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Website   string   `json:"website"`
	Address   string   `json:"address"`
	Tags      []string `json:"tags"`
	AISummary string   `json:"aiSummary"`
}

// Contact converts the candidate into an unsaved contact. A translated title
// is appended in parentheses when it differs from the original.
func (c Candidate) Contact() models.Contact {
	title := strings.TrimSpace(c.Title)
	zh := strings.TrimSpace(c.TitleZh)
	switch {
	case zh != "" && title != "" && title != zh:
		title = fmt.Sprintf("%s (%s)", title, zh)
	case zh != "" && title == "":
		title = zh
	}

	tags := []string{}
	for _, t := range c.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return models.Contact{
		Name:           strings.TrimSpace(c.Name),
		Title:          title,
		Company:        strings.TrimSpace(c.Company),
		Email:          strings.TrimSpace(c.Email),
		Phone:          strings.TrimSpace(c.Phone),
		SocialProfiles: models.SocialProfiles{Website: strings.TrimSpace(c.Website)},
		Tags:           tags,
		AISummary:      strings.TrimSpace(c.AISummary),
	}
}

// Extractor reads a card image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, contentType string) (*Candidate, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, image []byte, contentType string) (*Candidate, error)

func (f ExtractorFunc) Extract(ctx context.Context, image []byte, contentType string) (*Candidate, error) {
	return f(ctx, image, contentType)
}

type extractRequest struct {
	Image string `json:"image"`
}

type extractError struct {
	Error string `json:"error"`
}

// HTTPExtractor posts the image as a data URL to an extraction endpoint and
// decodes the candidate it returns.
type HTTPExtractor struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPExtractor builds a client for url. token, when set, is sent as a
// bearer token.
func NewHTTPExtractor(url, token string, timeout time.Duration, logger *zap.Logger) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(url).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPExtractor{httpClient: client, logger: logger.Named("extractor")}
}

func (e *HTTPExtractor) Extract(ctx context.Context, image []byte, contentType string) (*Candidate, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("no image data")
	}
	if contentType == "" {
		contentType = http.DetectContentType(image)
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)

	var candidate Candidate
	var failure extractError
	resp, err := e.httpClient.R().
		SetContext(ctx).
		SetBody(extractRequest{Image: dataURL}).
		SetResult(&candidate).
		SetError(&failure).
		Post("")
	if err != nil {
		e.logger.Error("extraction request failed", zap.Error(err))
		return nil, fmt.Errorf("failed to call extractor: %w", err)
	}
	if resp.IsError() {
		msg := failure.Error
		if msg == "" {
			msg = resp.Status()
		}
		e.logger.Error("extractor returned error", zap.Int("status_code", resp.StatusCode()), zap.String("error", msg))
		return nil, fmt.Errorf("extractor error: %s (status: %d)", msg, resp.StatusCode())
	}

	e.logger.Debug("card extracted", zap.String("name", candidate.Name), zap.String("company", candidate.Company))
	return &candidate, nil
}
