package model

import "strings"

// BBox is a paragraph bounding box in document coordinates: x0, y0, x1, y1.
type BBox [4]float64

// ParagraphUnit is one ordered unit of the converted document. Units are
// produced by the external document converter and are immutable here.
type ParagraphUnit struct {
	PageID int    `json:"page_id"`
	ParaID int    `json:"para_id"`
	Type   string `json:"type,omitempty"` // text|table|image_text|image_table
	Text   string `json:"text"`
	BBox   *BBox  `json:"bbox,omitempty"`
}

// Document is the parsed input to the pipeline: a display name plus the
// ordered paragraph units.
type Document struct {
	FileName string          `json:"file_name"`
	Units    []ParagraphUnit `json:"units"`
}

// Chunk is an overlapping window of paragraph units submitted to backends
// together. StartPara/EndPara are positions in the document's unit sequence,
// EndPara inclusive. Chunks are generated once and read-only thereafter.
type Chunk struct {
	Index     int
	StartPara int
	EndPara   int
	Units     []ParagraphUnit
}

// Text renders the chunk's paragraph texts as one prompt context block.
func (c Chunk) Text() string {
	var b strings.Builder
	for i, u := range c.Units {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(u.Text)
	}
	return b.String()
}

// Covers reports whether the chunk's window contains the given paragraph.
func (c Chunk) Covers(pageID, paraID int) bool {
	for _, u := range c.Units {
		if u.PageID == pageID && u.ParaID == paraID {
			return true
		}
	}
	return false
}
