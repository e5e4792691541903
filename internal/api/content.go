package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tuic/dashboard-session/internal/apperror"
)

// Contributor is one attribution entry shown in the dashboard's
// contributor list. Populated whether or not a session exists.
type Contributor struct {
	UserID   int    `json:"user_id"`
	UserName string `json:"user_name"`
	Image    string `json:"image"`
	Link     string `json:"link"`
}

// ViewPoint is a saved map viewport belonging to the current user.
type ViewPoint struct {
	ID        int     `json:"id"`
	CenterX   float64 `json:"center_x"`
	CenterY   float64 `json:"center_y"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
	Bearing   float64 `json:"bearing"`
	Name      string  `json:"name"`
	PointType string  `json:"point_type"`
}

// Contributors fetches the attribution list. Public — no token needed.
func (c *Client) Contributors(ctx context.Context) ([]Contributor, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/contributor", nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Transport("fetching contributors", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Transport("fetching contributors", statusError(resp))
	}

	var body struct {
		Data []Contributor `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperror.Transport("decoding contributors", err)
	}
	return body.Data, nil
}

// ViewPoints fetches the current user's saved map viewports.
// Requires an authenticated session.
func (c *Client) ViewPoints(ctx context.Context) ([]ViewPoint, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/user/viewpoint", nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Transport("fetching viewpoints", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Transport("fetching viewpoints", statusError(resp))
	}

	var body struct {
		Data []ViewPoint `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperror.Transport("decoding viewpoints", err)
	}
	return body.Data, nil
}
