package dto

import "github.com/your-org/lostfound/internal/models"

type MatchResponse struct {
	Report     ReportResponse `json:"report"`
	Reference  string         `json:"reference"`
	Similarity float64        `json:"similarity"`
}

type SearchResponse struct {
	Matches []MatchResponse `json:"matches"`
	Total   int             `json:"total"`
}

// FavoritesRequest carries the edited copies of matched reports.
type FavoritesRequest struct {
	Reports []models.Report `json:"reports" binding:"required"`
}

type FavoritesResponse struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

type UploadResponse struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

func NewSearchResponse(matches []models.Match) SearchResponse {
	resp := SearchResponse{Matches: make([]MatchResponse, 0, len(matches))}
	for i := range matches {
		m := &matches[i]
		resp.Matches = append(resp.Matches, MatchResponse{
			Report:     NewReportResponse(&m.Report),
			Reference:  m.Reference,
			Similarity: m.Similarity,
		})
	}
	resp.Total = len(resp.Matches)
	return resp
}
