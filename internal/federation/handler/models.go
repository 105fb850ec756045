package handler

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	LocationIdentifier string `json:"locationIdentifier"`
	URL                string `json:"url"`
}

// RegisterResponse reports the registration outcome. A rejected registration
// still has Success true; Added and Reason carry the outcome.
type RegisterResponse struct {
	Success            bool   `json:"success"`
	Added              bool   `json:"added"`
	Reason             string `json:"reason,omitempty"`
	URLCount           int    `json:"urlCount"`
	MaxURLs            int    `json:"maxUrls"`
	LocationIdentifier string `json:"locationIdentifier"`
	URL                string `json:"url"`
}

// LocationResponse answers GET /location/{identifier}. URL is the first
// mirror for clients that only understand one.
type LocationResponse struct {
	LocationIdentifier string   `json:"locationIdentifier"`
	URL                string   `json:"url"`
	URLs               []string `json:"urls"`
}

// ResolveRequest is the body of POST /resolve.
type ResolveRequest struct {
	Shortcode      string `json:"shortcode"`
	CurrentWikiURL string `json:"currentWikiUrl,omitempty"`
}

type ResolveResponse struct {
	Success     bool   `json:"success"`
	Shortcode   string `json:"shortcode"`
	ResolvedURL string `json:"resolvedUrl"`
}

// ParseRequest is the body of POST /parse.
type ParseRequest struct {
	Shortcode string `json:"shortcode"`
}

type ParseResponse struct {
	Success            bool   `json:"success"`
	FederationPrefix   string `json:"federationPrefix"`
	LocationIdentifier string `json:"locationIdentifier"`
	ResourcePath       string `json:"resourcePath"`
}

// SitemapEntry is one page of the sitemap this site publishes so that peers
// can read its neighbourhood.
type SitemapEntry struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}
