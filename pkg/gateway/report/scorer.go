// Package report turns a persisted interview transcript into a scored report
// using an LLM with a JSON response contract.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
)

// textGenerator is the narrow slice of the LLM client the scorer needs.
// Production uses genai; tests script responses.
type textGenerator interface {
	generateJSON(ctx context.Context, model, prompt string) (string, error)
}

// Scorer produces interview reports from transcripts.
type Scorer struct {
	gen   textGenerator
	model string
}

// NewScorer creates a scorer backed by the genai client.
func NewScorer(client *genai.Client, model string) *Scorer {
	return &Scorer{gen: &genaiGenerator{client: client}, model: model}
}

type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) generateJSON(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// reportPayload is the JSON contract the model is instructed to follow.
type reportPayload struct {
	OverallScore int `json:"overall_score"`
	Summary      string `json:"summary"`
	Questions    []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Score    int    `json:"score"`
		Feedback string `json:"feedback"`
	} `json:"questions"`
}

// Score evaluates the transcript and returns the report. An empty transcript
// is an error; there is nothing to evaluate.
func (s *Scorer) Score(ctx context.Context, session types.Session, turns []types.TranscriptTurn) (types.Report, error) {
	if len(turns) == 0 {
		return types.Report{}, fmt.Errorf("score interview: transcript is empty")
	}

	raw, err := s.gen.generateJSON(ctx, s.model, buildPrompt(session, turns))
	if err != nil {
		return types.Report{}, fmt.Errorf("score interview: %w", err)
	}
	report, err := parseReport(raw)
	if err != nil {
		return types.Report{}, fmt.Errorf("score interview: %w", err)
	}
	report.SessionID = session.ID
	return report, nil
}

func buildPrompt(session types.Session, turns []types.TranscriptTurn) string {
	var b strings.Builder
	b.WriteString("You are evaluating a completed job interview.\n")
	fmt.Fprintf(&b, "Role: %s\n", session.Topic.Title)
	if session.Topic.Description != "" {
		fmt.Fprintf(&b, "Role description: %s\n", session.Topic.Description)
	}
	fmt.Fprintf(&b, "Candidate: %s\n\n", session.CandidateName)
	b.WriteString("Transcript:\n")
	for _, turn := range turns {
		label := "Candidate"
		if turn.Speaker == types.SpeakerAI {
			label = "Interviewer"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, turn.Text)
	}
	b.WriteString("\nReturn a JSON object with fields: overall_score (0-100 integer), " +
		"summary (2-4 sentence hiring recommendation), and questions (array of " +
		"{question, answer, score (0-10 integer), feedback} covering each question " +
		"the interviewer asked). Score strictly on the candidate's answers only.\n")
	return b.String()
}

func parseReport(raw string) (types.Report, error) {
	raw = strings.TrimSpace(raw)
	// Tolerate models that wrap the JSON in a fenced block despite the
	// response mime type.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var payload reportPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return types.Report{}, fmt.Errorf("decode report payload: %w", err)
	}
	if payload.Summary == "" {
		return types.Report{}, fmt.Errorf("report payload missing summary")
	}

	report := types.Report{
		OverallScore: clamp(payload.OverallScore, 0, 100),
		Summary:      payload.Summary,
	}
	for _, q := range payload.Questions {
		if q.Question == "" {
			continue
		}
		report.Questions = append(report.Questions, types.QuestionScore{
			Question: q.Question,
			Answer:   q.Answer,
			Score:    clamp(q.Score, 0, 10),
			Feedback: q.Feedback,
		})
	}
	return report, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
