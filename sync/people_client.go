// ABOUTME: Google People API client for contacts sync
// ABOUTME: Pages through the signed-in user's connections
package sync

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

// personFields are the People API fields the importer reads.
const personFields = "names,emailAddresses,phoneNumbers,organizations,biographies,urls"

// PeopleLister returns one page of connections and the next page token.
type PeopleLister interface {
	ListConnections(ctx context.Context, pageToken string) ([]*people.Person, string, error)
}

// PeopleClient is a PeopleLister backed by the People API.
type PeopleClient struct {
	service *people.Service
}

// NewPeopleClient creates a new Google People API client.
func NewPeopleClient(ctx context.Context, ts oauth2.TokenSource) (*PeopleClient, error) {
	if ts == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}

	service, err := people.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}
	return &PeopleClient{service: service}, nil
}

func (p *PeopleClient) ListConnections(ctx context.Context, pageToken string) ([]*people.Person, string, error) {
	call := p.service.People.Connections.List("people/me").
		PageSize(1000).
		PersonFields(personFields).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	response, err := call.Do()
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch contacts: %w", err)
	}
	if response == nil {
		return nil, "", nil
	}
	return response.Connections, response.NextPageToken, nil
}
