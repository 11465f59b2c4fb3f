// Package chapter buckets pages into chapters using an externally supplied
// page-number to chapter-label table.
package chapter

import (
	"fmt"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	"gopkg.in/yaml.v3"
)

// Unknown labels pages whose number has no table entry.
const Unknown = "unknown"

// Table resolves a structural page number to its chapter label.
type Table interface {
	ChapterFor(number int) (string, bool)
}

// Group is one chapter bucket.
type Group struct {
	Label string
	Pages []*page.Page
}

// ChapterOf returns the chapter label of p, or Unknown.
func ChapterOf(p *page.Page, table Table) string {
	if table == nil {
		return Unknown
	}
	if label, ok := table.ChapterFor(p.Number); ok && label != "" {
		return label
	}
	return Unknown
}

// GroupByChapter partitions pages into chapters. Groups are sorted by label;
// pages keep their input order within a group.
func GroupByChapter(pages []*page.Page, table Table) []Group {
	buckets := make(map[string][]*page.Page)
	for _, p := range pages {
		label := ChapterOf(p, table)
		buckets[label] = append(buckets[label], p)
	}
	labels := make([]string, 0, len(buckets))
	for label := range buckets {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	groups := make([]Group, 0, len(labels))
	for _, label := range labels {
		groups = append(groups, Group{Label: label, Pages: buckets[label]})
	}
	return groups
}

// MapTable maps individual page numbers to labels.
type MapTable map[int]string

func (m MapTable) ChapterFor(number int) (string, bool) {
	label, ok := m[number]
	return label, ok
}

// Range starts a chapter at page number Start.
type Range struct {
	Start int    `yaml:"start"`
	Label string `yaml:"label"`
}

// RangeTable assigns each page to the chapter with the greatest start not
// after it, the way a structural map lists chapter start pages.
type RangeTable struct {
	ranges []Range
}

// NewRangeTable sorts ranges by start page.
func NewRangeTable(ranges []Range) *RangeTable {
	sorted := append([]Range(nil), ranges...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return &RangeTable{ranges: sorted}
}

func (t *RangeTable) ChapterFor(number int) (string, bool) {
	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].Start > number })
	if i == 0 {
		return "", false
	}
	return t.ranges[i-1].Label, true
}

type tableFile struct {
	Chapters map[int]string `yaml:"chapters"`
	Ranges   []Range        `yaml:"ranges"`
}

// LoadYAML reads a chapter table. The file holds either a "chapters" map of
// page number to label or a list of "ranges".
func LoadYAML(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chapter table %s: %w", path, err)
	}
	return ParseYAML(data)
}

func ParseYAML(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing chapter table: %w", err)
	}
	switch {
	case len(f.Chapters) > 0 && len(f.Ranges) > 0:
		return nil, fmt.Errorf("chapter table sets both chapters and ranges")
	case len(f.Ranges) > 0:
		return NewRangeTable(f.Ranges), nil
	default:
		return MapTable(f.Chapters), nil
	}
}
