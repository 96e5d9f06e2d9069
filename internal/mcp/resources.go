// ABOUTME: MCP resources over the device's local state.
// ABOUTME: Provides cradle://today, cradle://summary, and cradle://queue.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/cradle/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerResources() {
	// cradle://today - activities since local midnight
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "cradle://today",
		Name:        "Today's Log",
		Description: "All activities logged today, with counts per type",
		MIMEType:    "application/json",
	}, s.handleTodayResource)

	// cradle://summary - latest of each activity type, latest growth, profile
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "cradle://summary",
		Name:        "Summary",
		Description: "Most recent activity of each type, latest growth record, and profile",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)

	// cradle://queue - writes waiting for the server
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "cradle://queue",
		Name:        "Offline Queue",
		Description: "Writes made offline that have not reached the server yet",
		MIMEType:    "application/json",
	}, s.handleQueueResource)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return s.today(ctx, time.Now())
}

func (s *Server) today(ctx context.Context, now time.Time) (*mcp.ReadResourceResult, error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	snap, err := s.engine.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read local state: %w", err)
	}

	todays := []models.Activity{}
	counts := map[string]int{}
	for _, a := range snap.Activities {
		if a.Timestamp.Before(todayStart) {
			continue
		}
		todays = append(todays, a)
		counts[a.Type]++
	}

	return jsonResource("cradle://today", map[string]any{
		"date":       todayStart.Format(models.DateLayout),
		"activities": todays,
		"counts":     counts,
	})
}

func (s *Server) handleSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	snap, err := s.engine.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read local state: %w", err)
	}

	// Activities are newest first, so the first of each type is the latest.
	latest := map[string]models.Activity{}
	for _, a := range snap.Activities {
		if _, ok := latest[a.Type]; !ok {
			latest[a.Type] = a
		}
	}

	var growth *models.GrowthRecord
	if len(snap.GrowthRecords) > 0 {
		growth = &snap.GrowthRecords[0]
	}

	return jsonResource("cradle://summary", map[string]any{
		"generated_at":      time.Now().Format(time.RFC3339),
		"profile":           snap.Profile,
		"latest_activities": latest,
		"latest_growth":     growth,
		"custom_activities": snap.CustomActivities,
		"summary": map[string]int{
			"activities":     len(snap.Activities),
			"growth_records": len(snap.GrowthRecords),
		},
	})
}

func (s *Server) handleQueueResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	entries, err := s.engine.Queued(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]any{
			"id":        e.ID,
			"action":    e.Action,
			"record":    e.RecordKey,
			"queued_at": e.Timestamp.Format(time.RFC3339),
			"attempts":  e.Attempts,
			"lastError": e.LastError,
		})
	}
	return jsonResource("cradle://queue", map[string]any{
		"pending": len(items),
		"entries": items,
	})
}
