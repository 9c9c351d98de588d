// Package ingest loads parsed-document JSON produced by the upstream PDF
// converter: an ordered list of paragraph units, optionally wrapped in an
// envelope carrying the source file name.
package ingest

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/finsight/reportminer/internal/model"
)

// maxDocumentBytes bounds uploaded document bodies.
const maxDocumentBytes = 64 << 20

// DecodeDocument reads a document from r. Both shapes are accepted:
// a bare unit array, or {"file_name": ..., "units": [...]}. fallbackName
// is used when the body carries no file name.
func DecodeDocument(r io.Reader, fallbackName string) (model.Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return model.Document{}, eris.Wrap(err, "ingest: read document")
	}
	if len(data) > maxDocumentBytes {
		return model.Document{}, eris.New("ingest: document exceeds size limit")
	}

	doc := model.Document{FileName: fallbackName}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return model.Document{}, eris.New("ingest: empty document body")
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Units); err != nil {
			return model.Document{}, eris.Wrap(err, "ingest: parse unit array")
		}
	} else {
		var envelope struct {
			FileName string                `json:"file_name"`
			Units    []model.ParagraphUnit `json:"units"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return model.Document{}, eris.Wrap(err, "ingest: parse document envelope")
		}
		doc.Units = envelope.Units
		if envelope.FileName != "" {
			doc.FileName = envelope.FileName
		}
	}

	if err := validate(doc); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

// LoadDocument reads a parsed document from disk. The base name of the
// path is the fallback file name.
func LoadDocument(path string) (model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()
	return DecodeDocument(f, filepath.Base(path))
}

func validate(doc model.Document) error {
	if doc.FileName == "" {
		return eris.New("ingest: document has no file name")
	}
	for i, u := range doc.Units {
		if u.PageID < 0 || u.ParaID < 0 {
			return eris.Errorf("ingest: unit %d has negative page or paragraph id", i)
		}
	}
	return nil
}
