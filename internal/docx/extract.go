package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidPackage is returned when the input is not a readable .docx.
var ErrInvalidPackage = errors.New("invalid docx package")

var requiredParts = []string{partContentTypes, partRels, partDocument}

// Paragraphs returns the text of every non-empty paragraph of the main
// document part, in document order.
func Paragraphs(r io.ReaderAt, size int64) ([]string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	for _, name := range requiredParts {
		if _, ok := files[name]; !ok {
			return nil, fmt.Errorf("%w: missing part %s", ErrInvalidPackage, name)
		}
	}

	rc, err := files[partDocument].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	defer rc.Close()

	return readParagraphs(rc)
}

// ParagraphsFromBytes is Paragraphs over an in-memory package.
func ParagraphsFromBytes(data []byte) ([]string, error) {
	return Paragraphs(bytes.NewReader(data), int64(len(data)))
}

func readParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		out []string
		cur strings.Builder
		inP bool
		inT bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inP = true
				cur.Reset()
			case "t":
				inT = inP
			case "tab":
				if inP {
					cur.WriteByte('\t')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inT = false
			case "p":
				if inP && cur.Len() > 0 {
					out = append(out, cur.String())
				}
				inP = false
			}
		case xml.CharData:
			if inT {
				cur.Write(t)
			}
		}
	}
	return out, nil
}
