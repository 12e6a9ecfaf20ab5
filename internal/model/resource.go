package model

// Resource is a single library item from the resource feed. The feed
// carries no authorship or timestamp signal, so resources are
// deduplicated by identity rather than by time.
type Resource struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	Description  string `json:"description,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	CourseName   string `json:"course_name,omitempty"`
	URL          string `json:"url,omitempty"`
}
