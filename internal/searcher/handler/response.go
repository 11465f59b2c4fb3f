package handler

import (
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/view"
)

type pageSummary struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	Volume       int      `json:"volume"`
	Number       int      `json:"number"`
	Icon         string   `json:"icon"`
	Preview      string   `json:"preview"`
	LastModified string   `json:"last_modified"`
	Tags         []string `json:"tags"`
	Comments     []string `json:"comments"`
}

type annotationJSON struct {
	Label  string `json:"label"`
	Author string `json:"author"`
	Kind   string `json:"kind"`
}

type pageDetail struct {
	pageSummary
	Text        string           `json:"text"`
	Edits       int              `json:"edits"`
	Version     int              `json:"version"`
	PageLabel   string           `json:"page_label"`
	CommentLine string           `json:"comment_line,omitempty"`
	Annotations []annotationJSON `json:"annotations"`
}

type rowJSON struct {
	Kind    string   `json:"kind"`
	ID      string   `json:"id,omitempty"`
	Columns []string `json:"columns"`
}

func (h *Handler) summarize(p *page.Page) pageSummary {
	cols := h.presenter.Columns(view.PageRow(p))
	return pageSummary{
		ID:           p.ID,
		Label:        cols[view.ColPage],
		Volume:       h.presenter.MappedVolume(p),
		Number:       p.Number,
		Icon:         cols[view.ColIcon],
		Preview:      cols[view.ColText],
		LastModified: cols[view.ColModified],
		Tags:         p.Labels(page.TagKindTag),
		Comments:     p.Labels(page.TagKindComment),
	}
}

func (h *Handler) detail(p *page.Page) pageDetail {
	annotations := make([]annotationJSON, len(p.Tags))
	for i, t := range p.Tags {
		annotations[i] = annotationJSON{Label: t.Label, Author: t.AuthorID, Kind: t.Kind.String()}
	}
	return pageDetail{
		pageSummary: h.summarize(p),
		Text:        p.FullText(),
		Edits:       p.Edits,
		Version:     p.Version,
		PageLabel:   h.presenter.PageLabel(p),
		CommentLine: view.CommentLine(p),
		Annotations: annotations,
	}
}
