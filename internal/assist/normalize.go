package assist

import (
	"roadassist/backend/internal/models"
)

// Assist request rows reach the watcher as raw JSON, and older writers
// used different column names for the same fields. Instead of scattering
// the fallbacks through conditionals, each output field carries an
// ordered list of source keys; the first non-empty one wins.
type extractRule struct {
	sources []string
	assign  func(*models.AssistSummary, string)
}

var summaryRules = []extractRule{
	{
		sources: []string{"id", "request_id", "_id"},
		assign:  func(s *models.AssistSummary, v string) { s.RequestID = v },
	},
	{
		sources: []string{"client_name", "customer_name", "full_name", "name"},
		assign:  func(s *models.AssistSummary, v string) { s.ClientName = v },
	},
	{
		sources: []string{"place_name", "place", "location_name"},
		assign:  func(s *models.AssistSummary, v string) { s.PlaceName = v },
	},
	{
		sources: []string{"address", "location_address", "formatted_address"},
		assign:  func(s *models.AssistSummary, v string) { s.Address = v },
	},
	{
		sources: []string{"vehicle", "vehicle_model", "car"},
		assign:  func(s *models.AssistSummary, v string) { s.Vehicle = v },
	},
	{
		sources: []string{"created_at", "createdAt", "requested_at"},
		assign:  func(s *models.AssistSummary, v string) { s.CreatedAt = v },
	},
}

// NormalizeSummary builds the operator-facing payload from a raw request
// row.
func NormalizeSummary(doc map[string]any) models.AssistSummary {
	var summary models.AssistSummary
	for _, rule := range summaryRules {
		if v := firstNonEmpty(doc, rule.sources); v != "" {
			rule.assign(&summary, v)
		}
	}
	return summary
}

func firstNonEmpty(doc map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := doc[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
