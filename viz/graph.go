// ABOUTME: GraphViz career graph of contacts and the companies they worked at
// ABOUTME: Current roles are solid edges, archived roles from history are dashed
package viz

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/harperreed/cardsync/models"
)

// GraphGenerator renders graphs over a fixed contact set.
type GraphGenerator struct {
	contacts []models.Contact
}

func NewGraphGenerator(contacts []models.Contact) *GraphGenerator {
	return &GraphGenerator{contacts: contacts}
}

// GraphStats counts what a rendered graph contains.
type GraphStats struct {
	Contacts  int
	Companies int
	Edges     int
}

// CareerGraph renders every contact linked to its current and past
// companies. With a focus id only that contact and the people who share a
// company with it are drawn. The result is XDOT source.
func (g *GraphGenerator) CareerGraph(focusID string) (string, GraphStats, error) {
	var stats GraphStats
	contacts := g.contacts
	if focusID != "" {
		var err error
		if contacts, err = g.colleagues(focusID); err != nil {
			return "", stats, err
		}
	}

	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", stats, fmt.Errorf("failed to create graphviz: %w", err)
	}
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return "", stats, fmt.Errorf("failed to create graph: %w", err)
	}
	defer graph.Close()

	graph.SetLabel("Career Graph")
	graph.SetRankDir(cgraph.LRRank)

	companyNodes := make(map[string]*cgraph.Node)
	companyNode := func(name string) (*cgraph.Node, error) {
		key := companyKey(name)
		if node, ok := companyNodes[key]; ok {
			return node, nil
		}
		node, err := graph.CreateNodeByName(fmt.Sprintf("company_%d", len(companyNodes)))
		if err != nil {
			return nil, fmt.Errorf("failed to create company node: %w", err)
		}
		node.SetLabel(strings.TrimSpace(name))
		node.SetShape("box")
		node.SetStyle("filled")
		node.SetFillColor("lightblue")
		companyNodes[key] = node
		stats.Companies++
		return node, nil
	}

	for i, c := range contacts {
		node, err := graph.CreateNodeByName(fmt.Sprintf("contact_%d", i))
		if err != nil {
			return "", stats, fmt.Errorf("failed to create contact node: %w", err)
		}
		node.SetLabel(contactLabel(c))
		node.SetShape("ellipse")
		node.SetStyle("filled")
		node.SetFillColor("lightgreen")
		stats.Contacts++

		if companyKey(c.Company) != "" {
			target, err := companyNode(c.Company)
			if err != nil {
				return "", stats, err
			}
			edge, err := graph.CreateEdgeByName(fmt.Sprintf("works_at_%d", i), node, target)
			if err != nil {
				return "", stats, fmt.Errorf("failed to create edge: %w", err)
			}
			edge.SetLabel(c.Title)
			stats.Edges++
		}

		for j, h := range c.History {
			if companyKey(h.Company) == "" {
				continue
			}
			target, err := companyNode(h.Company)
			if err != nil {
				return "", stats, err
			}
			edge, err := graph.CreateEdgeByName(fmt.Sprintf("worked_at_%d_%d", i, j), node, target)
			if err != nil {
				return "", stats, fmt.Errorf("failed to create edge: %w", err)
			}
			edge.SetLabel(strings.TrimSpace(h.Title + " " + shortDate(h.Date)))
			edge.SetStyle("dashed")
			stats.Edges++
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", stats, fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.String(), stats, nil
}

// colleagues returns the focus contact followed by everyone who shares a
// current or past company with it.
func (g *GraphGenerator) colleagues(focusID string) ([]models.Contact, error) {
	var focus *models.Contact
	for i := range g.contacts {
		if g.contacts[i].ID == focusID {
			focus = &g.contacts[i]
			break
		}
	}
	if focus == nil {
		return nil, fmt.Errorf("contact not found: %s", focusID)
	}

	companies := companiesOf(*focus)
	out := []models.Contact{*focus}
	for _, c := range g.contacts {
		if c.ID == focus.ID {
			continue
		}
		for key := range companiesOf(c) {
			if companies[key] {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func companiesOf(c models.Contact) map[string]bool {
	out := map[string]bool{}
	if key := companyKey(c.Company); key != "" {
		out[key] = true
	}
	for _, h := range c.History {
		if key := companyKey(h.Company); key != "" {
			out[key] = true
		}
	}
	return out
}

func companyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func contactLabel(c models.Contact) string {
	if c.Email == "" {
		return c.Name
	}
	return c.Name + "\n" + c.Email
}

// shortDate keeps the YYYY-MM part of a history date.
func shortDate(date string) string {
	if len(date) >= 7 {
		return "(" + date[:7] + ")"
	}
	if date != "" {
		return "(" + date + ")"
	}
	return ""
}
