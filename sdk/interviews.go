package mypitch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/live"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
)

// The client is the production implementation of the live controller's
// backend contract.
var _ live.Backend = (*Client)(nil)

// CreateInterviewRequest configures a new interview session.
type CreateInterviewRequest struct {
	Topic         types.Topic `json:"topic"`
	CandidateName string      `json:"candidate_name"`
}

// CreateInterview creates an interview session for a candidate.
func (c *Client) CreateInterview(ctx context.Context, req CreateInterviewRequest) (types.Session, error) {
	if req.Topic.Title == "" {
		return types.Session{}, core.NewInvalidRequestErrorWithParam("topic title is required", "topic.title")
	}
	var session types.Session
	if err := c.do(ctx, "POST", "/v1/interviews", req, &session); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

// GetInterview fetches one interview session by id.
func (c *Client) GetInterview(ctx context.Context, sessionID string) (types.Session, error) {
	if sessionID == "" {
		return types.Session{}, core.NewInvalidRequestErrorWithParam("session id is required", "id")
	}
	var session types.Session
	if err := c.do(ctx, "GET", interviewPath(sessionID, ""), nil, &session); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

// FetchSessionCredential mints a fresh single-use connection credential for
// the session. Each (re)connection attempt needs its own credential.
func (c *Client) FetchSessionCredential(ctx context.Context, sessionID string) (types.Credential, error) {
	if sessionID == "" {
		return types.Credential{}, core.NewInvalidRequestErrorWithParam("session id is required", "id")
	}
	var cred types.Credential
	if err := c.do(ctx, "POST", interviewPath(sessionID, "token"), nil, &cred); err != nil {
		return types.Credential{}, err
	}
	return cred, nil
}

// PostTranscriptTurn appends one completed transcript turn to the session.
func (c *Client) PostTranscriptTurn(ctx context.Context, sessionID string, speaker types.Speaker, text string) error {
	if sessionID == "" {
		return core.NewInvalidRequestErrorWithParam("session id is required", "id")
	}
	if !speaker.Valid() {
		return core.NewInvalidRequestErrorWithParam("speaker must be user or ai", "speaker")
	}
	body := types.TranscriptTurn{Speaker: speaker, Text: text}
	return c.do(ctx, "POST", interviewPath(sessionID, "transcript"), body, nil)
}

// GenerateReport asks the backend to score the persisted transcript. The call
// returns once the report row exists.
func (c *Client) GenerateReport(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return core.NewInvalidRequestErrorWithParam("session id is required", "id")
	}
	return c.do(ctx, "POST", interviewPath(sessionID, "report"), nil, nil)
}

// GetReport fetches the scored report for a session.
func (c *Client) GetReport(ctx context.Context, sessionID string) (types.Report, error) {
	if sessionID == "" {
		return types.Report{}, core.NewInvalidRequestErrorWithParam("session id is required", "id")
	}
	var report types.Report
	if err := c.do(ctx, "GET", interviewPath(sessionID, "report"), nil, &report); err != nil {
		return types.Report{}, err
	}
	return report, nil
}

func interviewPath(sessionID, suffix string) string {
	path := fmt.Sprintf("/v1/interviews/%s", url.PathEscape(sessionID))
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}
