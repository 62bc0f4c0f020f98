// AngelaMos | 2026
// dto.go

package video

type VideoResponse struct {
	YouTubeID string `json:"youtubeId"`
}

type ProductEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Unlocked bool   `json:"unlocked"`
}

// VideoEntry never carries the YouTube ID; clients resolve it through
// the gated video endpoint.
type VideoEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ProductID string `json:"product_id"`
	Category  string `json:"category,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Level     string `json:"level,omitempty"`
	Unlocked  bool   `json:"unlocked"`
}

type CatalogResponse struct {
	Products []ProductEntry `json:"products"`
	Videos   []VideoEntry   `json:"videos"`
}
