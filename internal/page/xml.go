package page

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

var ErrWordIndex = errors.New("word index out of range")

// idPattern recovers volume and page number from store ids such as
// "PPN345572629_0004/PPN345572629_0004-0012.xml".
var idPattern = regexp.MustCompile(`_(\d+)-(\d+)\.[A-Za-z]+$`)

type xmlPage struct {
	XMLName xml.Name  `xml:"page"`
	ID      string    `xml:"id,attr,omitempty"`
	Volume  *int      `xml:"volume,attr"`
	Number  *int      `xml:"number,attr"`
	Version int       `xml:"version,attr,omitempty"`
	Words   []xmlWord `xml:"word"`
	Tags    []xmlTag  `xml:"tag"`
}

type xmlWord struct {
	Original      string            `xml:"original,attr"`
	Modifications []xmlModification `xml:"modification"`
}

type xmlModification struct {
	Form   string `xml:"form,attr"`
	Author string `xml:"author,attr"`
	Date   int64  `xml:"date,attr"`
}

type xmlTag struct {
	Kind   string `xml:"kind,attr,omitempty"`
	Author string `xml:"author,attr"`
	Label  string `xml:",chardata"`
}

// FromXML parses a stored page document. id is the store id and takes
// precedence over any id attribute in the document. Volume and number fall
// back to the values encoded in the id. Errors wrap ErrMalformedPage.
func FromXML(raw []byte, id string) (*Page, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: %s: empty document", apperrors.ErrMalformedPage, id)
	}
	var doc xmlPage
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedPage, id, err)
	}
	if id == "" {
		id = doc.ID
	}
	if id == "" {
		return nil, fmt.Errorf("%w: document has no id", apperrors.ErrMalformedPage)
	}

	volume, number, err := structure(doc, id)
	if err != nil {
		return nil, err
	}

	p := &Page{
		ID:      id,
		Volume:  volume,
		Number:  number,
		Version: doc.Version,
		Words:   make([]*Word, 0, len(doc.Words)),
		Tags:    make([]Tag, 0, len(doc.Tags)),
	}
	for i, xw := range doc.Words {
		w := &Word{}
		if len(xw.Modifications) == 0 {
			if xw.Original == "" {
				return nil, fmt.Errorf("%w: %s: word %d has no text", apperrors.ErrMalformedPage, id, i)
			}
			w.history.Push(Modification{Text: xw.Original, Author: OCRAuthor})
		}
		for _, m := range xw.Modifications {
			w.history.Push(Modification{
				Text:      m.Form,
				Author:    m.Author,
				Timestamp: time.UnixMilli(m.Date).UTC(),
			})
		}
		p.Words = append(p.Words, w)
	}
	for _, xt := range doc.Tags {
		p.annotate(Tag{Label: xt.Label, AuthorID: xt.Author, Kind: ParseTagKind(xt.Kind)})
	}
	return p, nil
}

func structure(doc xmlPage, id string) (volume, number int, err error) {
	m := idPattern.FindStringSubmatch(id)
	switch {
	case doc.Volume != nil:
		volume = *doc.Volume
	case m != nil:
		volume, _ = strconv.Atoi(m[1])
	default:
		return 0, 0, fmt.Errorf("%w: %s: no volume", apperrors.ErrMalformedPage, id)
	}
	switch {
	case doc.Number != nil:
		number = *doc.Number
	case m != nil:
		number, _ = strconv.Atoi(m[2])
	default:
		return 0, 0, fmt.Errorf("%w: %s: no page number", apperrors.ErrMalformedPage, id)
	}
	return volume, number, nil
}

// XML encodes the page in the stored document format, full histories included.
func (p *Page) XML() ([]byte, error) {
	volume, number := p.Volume, p.Number
	doc := xmlPage{
		ID:      p.ID,
		Volume:  &volume,
		Number:  &number,
		Version: p.Version,
		Words:   make([]xmlWord, 0, len(p.Words)),
		Tags:    make([]xmlTag, 0, len(p.Tags)),
	}
	for _, w := range p.Words {
		xw := xmlWord{}
		for i, m := range w.history.entries {
			if i == 0 {
				xw.Original = m.Text
			}
			xw.Modifications = append(xw.Modifications, xmlModification{
				Form:   m.Text,
				Author: m.Author,
				Date:   m.Timestamp.UnixMilli(),
			})
		}
		doc.Words = append(doc.Words, xw)
	}
	for _, t := range p.Tags {
		xt := xmlTag{Author: t.AuthorID, Label: t.Label}
		if t.Kind == TagKindComment {
			xt.Kind = t.Kind.String()
		}
		doc.Tags = append(doc.Tags, xt)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding page %s: %w", p.ID, err)
	}
	return append([]byte(xml.Header), out...), nil
}
