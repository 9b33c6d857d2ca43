package model

import "time"

// PageContent is the fetched, parsed content of one wiki page. Fields are
// filled as they are fetched; HasBody marks Paragraphs and Infobox as known.
type PageContent struct {
	Title      string    `json:"title"`
	URL        string    `json:"url,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Paragraphs []string  `json:"paragraphs,omitempty"`
	Infobox    string    `json:"infobox,omitempty"`
	HasBody    bool      `json:"has_body"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Merge fills the fields of p that are unset from other.
func (p *PageContent) Merge(other *PageContent) {
	if other == nil {
		return
	}
	if p.URL == "" {
		p.URL = other.URL
	}
	if p.Summary == "" {
		p.Summary = other.Summary
	}
	if !p.HasBody && other.HasBody {
		p.Paragraphs = other.Paragraphs
		p.Infobox = other.Infobox
		p.HasBody = true
	}
	if other.FetchedAt.After(p.FetchedAt) {
		p.FetchedAt = other.FetchedAt
	}
}
