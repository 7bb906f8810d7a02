package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/auth"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/chat"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/comparison"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/merge"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

//
// ==== PROJECTS ====
//

// GET /projects
func (c *Client) ListProjects(ctx context.Context) ([]projects.Project, error) {
	var out []projects.Project
	if err := c.do(ctx, "list projects", http.MethodGet, "/projects", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GET /projects/{id}
func (c *Client) GetProject(ctx context.Context, id projects.ProjectID) (*projects.Project, error) {
	var out projects.Project
	if err := c.do(ctx, "get project", http.MethodGet, fmt.Sprintf("/projects/%d", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//
// ==== ANALYSIS ====
//

// GET /files/{fileId}/analysis
func (c *Client) GetForFile(ctx context.Context, fileID projects.FileID) (*analysis.Record, error) {
	var out analysis.Record
	if err := c.do(ctx, "get analysis", http.MethodGet, fmt.Sprintf("/files/%d/analysis", fileID), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.FileID == 0 {
		out.FileID = fileID
	}
	return &out, nil
}

// POST /files/{fileId}/analysis
func (c *Client) Create(ctx context.Context, fileID projects.FileID, req analysis.Request) (*analysis.Record, error) {
	var out analysis.Record
	if err := c.do(ctx, "create analysis", http.MethodPost, fmt.Sprintf("/files/%d/analysis", fileID), nil, req, &out); err != nil {
		return nil, err
	}
	if out.FileID == 0 {
		out.FileID = fileID
	}
	return &out, nil
}

// GET /files/{fileId}/analyses
func (c *Client) ListSaved(ctx context.Context, fileID projects.FileID) ([]analysis.Record, error) {
	var out []analysis.Record
	if err := c.do(ctx, "list saved analyses", http.MethodGet, fmt.Sprintf("/files/%d/analyses", fileID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GET /analyses/{id}
func (c *Client) GetSaved(ctx context.Context, id analysis.ID) (*analysis.Record, error) {
	var out analysis.Record
	if err := c.do(ctx, "get saved analysis", http.MethodGet, fmt.Sprintf("/analyses/%d", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DELETE /analyses/{id}
func (c *Client) DeleteSaved(ctx context.Context, id analysis.ID) error {
	return c.do(ctx, "delete saved analysis", http.MethodDelete, fmt.Sprintf("/analyses/%d", id), nil, nil, nil)
}

//
// ==== COMPARISON & MERGE ====
//

// POST /comparisons
func (c *Client) Compare(ctx context.Context, req comparison.Request) (*comparison.Result, error) {
	var out comparison.Result
	if err := c.do(ctx, "compare", http.MethodPost, "/comparisons", nil, req, &out); err != nil {
		return nil, err
	}
	if out.Type == "" {
		out.Type = req.Type
	}
	if out.FileAID == 0 && out.FileBID == 0 {
		out.FileAID, out.FileBID = req.FileAID, req.FileBID
	}
	return &out, nil
}

// POST /merges/relationships
func (c *Client) CreateRelationship(ctx context.Context, req merge.RelationshipRequest) (*merge.Relationship, error) {
	var out struct {
		ID merge.RelationshipID `json:"id"`
	}
	if err := c.do(ctx, "create relationship", http.MethodPost, "/merges/relationships", nil, req, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, &Error{Op: "create relationship", Kind: KindRemote, Message: "response without relationship id"}
	}
	return &merge.Relationship{ID: out.ID, RelationshipRequest: req}, nil
}

// POST /merges/relationships/{id}/analyze
func (c *Client) AnalyzeRelationship(ctx context.Context, id merge.RelationshipID) (*merge.Result, error) {
	var out merge.Result
	if err := c.do(ctx, "analyze relationship", http.MethodPost, fmt.Sprintf("/merges/relationships/%d/analyze", id), nil, nil, &out); err != nil {
		return nil, err
	}
	out.RelationshipID = id
	return &out, nil
}

//
// ==== CHAT ====
//

// POST /chat/query
func (c *Client) Query(ctx context.Context, q chat.Query) (*chat.Answer, error) {
	var out chat.Answer
	if err := c.do(ctx, "chat query", http.MethodPost, "/chat/query", nil, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//
// ==== DASHBOARDS ====
//

// POST /dashboards
func (c *Client) CreateDashboard(ctx context.Context, req dashboards.CreateRequest) (*dashboards.Dashboard, error) {
	var out dashboards.Dashboard
	if err := c.do(ctx, "create dashboard", http.MethodPost, "/dashboards", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GET /dashboards
func (c *Client) ListDashboards(ctx context.Context) ([]dashboards.Dashboard, error) {
	var out []dashboards.Dashboard
	if err := c.do(ctx, "list dashboards", http.MethodGet, "/dashboards", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DELETE /dashboards/{id}
func (c *Client) DeleteDashboard(ctx context.Context, id dashboards.ID) error {
	return c.do(ctx, "delete dashboard", http.MethodDelete, fmt.Sprintf("/dashboards/%d", id), nil, nil, nil)
}

//
// ==== OAUTH ====
//

// GET /auth/oauth/{provider}/authorize
func (c *Client) AuthorizeURL(ctx context.Context, provider, state, redirectURI string) (string, error) {
	q := url.Values{}
	q.Set("state", state)
	q.Set("redirect_uri", redirectURI)
	var out struct {
		URL string `json:"url"`
	}
	path := "/auth/oauth/" + url.PathEscape(provider) + "/authorize"
	if err := c.do(ctx, "oauth authorize", http.MethodGet, path, q, nil, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("oauth authorize: empty provider url")
	}
	return out.URL, nil
}

// POST /auth/oauth/{provider}/token
func (c *Client) ExchangeCode(ctx context.Context, provider, code, redirectURI string) (*auth.Token, error) {
	body := map[string]string{"code": code, "redirect_uri": redirectURI}
	var out auth.Token
	path := "/auth/oauth/" + url.PathEscape(provider) + "/token"
	if err := c.do(ctx, "oauth token", http.MethodPost, path, nil, body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("oauth token: empty access token")
	}
	return &out, nil
}
