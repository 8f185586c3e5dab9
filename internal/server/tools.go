// internal/server/tools.go
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"greenbite/internal/apperr"
)

type EstimateEmissionsParams struct {
	ImageBase64 string `json:"image_base64" description:"Meal photo as base64 or a data URL"`
	UserID      string `json:"user_id,omitempty" description:"User to record the meal for"`
}

type ResolveEmissionsParams struct {
	Items []string `json:"items" description:"Food names to resolve"`
}

type GetMealsParams struct {
	UserID string `json:"user_id" description:"User whose meals to return"`
	Limit  int    `json:"limit,omitempty" description:"Maximum number of meals to return"`
}

type GetTrendParams struct {
	UserID string `json:"user_id" description:"User whose daily emissions to return"`
}

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

var toolList = []*protocol.Tool{
	{Name: "estimate_emissions", Description: "Detect the foods in a meal photo and estimate their carbon footprint"},
	{Name: "resolve_emissions", Description: "Estimate the carbon footprint of a list of food names"},
	{Name: "get_leaderboard", Description: "List users by CO2 saved"},
	{Name: "get_trend", Description: "Daily CO2 emitted by a user"},
	{Name: "get_meals", Description: "Most recent meals recorded for a user"},
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return apperr.Inputf("failed to marshal arguments: %v", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return apperr.Inputf("invalid parameters: %v", err)
	}

	return nil
}

func (s *GreenBiteServer) registerTools() {
	s.tools = map[string]toolHandler{
		"estimate_emissions": s.handleEstimateEmissions,
		"resolve_emissions":  s.handleResolveEmissions,
		"get_leaderboard":    s.handleGetLeaderboard,
		"get_trend":          s.handleGetTrend,
		"get_meals":          s.handleGetMeals,
	}
}

func (s *GreenBiteServer) handleEstimateEmissions(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params EstimateEmissionsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	data, err := decodeImageBase64(params.ImageBase64)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.config.MaxUploadBytes {
		return nil, apperr.Input("image exceeds the upload limit")
	}

	resp, err := s.pipeline.Estimate(ctx, data, strings.TrimSpace(params.UserID))
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(resp)
}

func (s *GreenBiteServer) handleResolveEmissions(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ResolveEmissionsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	return s.createJSONResponse(s.pipeline.EstimateItems(ctx, params.Items))
}

func (s *GreenBiteServer) handleGetLeaderboard(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	board, err := s.store.GetLeaderboard()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve leaderboard: %w", err)
	}
	return s.createJSONResponse(board)
}

func (s *GreenBiteServer) handleGetTrend(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetTrendParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.UserID == "" {
		return nil, apperr.Input("user_id is required")
	}

	trend, err := s.store.GetTrend(params.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve trend: %w", err)
	}
	return s.createJSONResponse(trend)
}

// handleGetMeals retrieves a user's meals from storage
func (s *GreenBiteServer) handleGetMeals(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetMealsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.UserID == "" {
		return nil, apperr.Input("user_id is required")
	}
	if params.Limit < 0 {
		return nil, apperr.Input("limit must not be negative")
	}

	meals, err := s.store.GetMeals(params.UserID, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve meals: %w", err)
	}
	return s.createJSONResponse(meals)
}

// decodeImageBase64 accepts raw base64 or a "data:<mime>;base64,<data>" URL.
func decodeImageBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, apperr.Input("image_base64 is required")
	}
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, apperr.Input("invalid data URL")
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, apperr.Inputf("failed to decode image: %v", err)
	}
	return data, nil
}
