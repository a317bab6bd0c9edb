package docx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"
)

const (
	nsMain    = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsCore    = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	nsDC      = "http://purl.org/dc/elements/1.1/"
	nsDCTerms = "http://purl.org/dc/terms/"
	nsXSI     = "http://www.w3.org/2001/XMLSchema-instance"

	partContentTypes = "[Content_Types].xml"
	partRels         = "_rels/.rels"
	partCore         = "docProps/core.xml"
	partDocument     = "word/document.xml"
	partStyles       = "word/styles.xml"
	partDocumentRels = "word/_rels/document.xml.rels"
)

const contentTypesXML = `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const packageRelsXML = `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRelsXML = `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:docDefaults><w:rPrDefault><w:rPr>` +
	`<w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:eastAsia="Calibri" w:cs="Calibri"/>` +
	`<w:sz w:val="22"/><w:szCs w:val="22"/><w:lang w:val="en-US"/>` +
	`</w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="160" w:line="259" w:lineRule="auto"/></w:pPr></w:pPrDefault>` +
	`</w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>` +
	`</w:styles>`

type document struct {
	XMLName xml.Name `xml:"w:document"`
	XmlnsW  string   `xml:"xmlns:w,attr"`
	Body    body     `xml:"w:body"`
}

type body struct {
	Paragraphs []paragraph `xml:"w:p"`
	Section    section     `xml:"w:sectPr"`
}

type paragraph struct {
	Props *paragraphProps `xml:"w:pPr,omitempty"`
	Runs  []run           `xml:"w:r"`
}

type paragraphProps struct {
	Border  *paragraphBorder `xml:"w:pBdr,omitempty"`
	Spacing *spacing         `xml:"w:spacing,omitempty"`
}

type paragraphBorder struct {
	Bottom border `xml:"w:bottom"`
}

type border struct {
	Val   string `xml:"w:val,attr"`
	Size  int    `xml:"w:sz,attr"`
	Space int    `xml:"w:space,attr"`
	Color string `xml:"w:color,attr"`
}

type spacing struct {
	Before int `xml:"w:before,attr"`
	After  int `xml:"w:after,attr"`
}

type run struct {
	Props *runProps `xml:"w:rPr,omitempty"`
	Text  runText   `xml:"w:t"`
}

// Element order inside w:rPr is fixed by the schema.
type runProps struct {
	Bold   *onOff     `xml:"w:b,omitempty"`
	Italic *onOff     `xml:"w:i,omitempty"`
	Color  *valueAttr `xml:"w:color,omitempty"`
	Size   *valueAttr `xml:"w:sz,omitempty"`
	SizeCS *valueAttr `xml:"w:szCs,omitempty"`
}

type onOff struct{}

type valueAttr struct {
	Val string `xml:"w:val,attr"`
}

type runText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Value string `xml:",chardata"`
}

type section struct {
	PageSize    pageSize    `xml:"w:pgSz"`
	PageMargins pageMargins `xml:"w:pgMar"`
}

// A4 in twips.
type pageSize struct {
	W int `xml:"w:w,attr"`
	H int `xml:"w:h,attr"`
}

type pageMargins struct {
	Top    int `xml:"w:top,attr"`
	Right  int `xml:"w:right,attr"`
	Bottom int `xml:"w:bottom,attr"`
	Left   int `xml:"w:left,attr"`
	Header int `xml:"w:header,attr"`
	Footer int `xml:"w:footer,attr"`
}

type coreProperties struct {
	XMLName      xml.Name `xml:"cp:coreProperties"`
	XmlnsCP      string   `xml:"xmlns:cp,attr"`
	XmlnsDC      string   `xml:"xmlns:dc,attr"`
	XmlnsDCTerms string   `xml:"xmlns:dcterms,attr"`
	XmlnsXSI     string   `xml:"xmlns:xsi,attr"`
	Title        string   `xml:"dc:title,omitempty"`
	Subject      string   `xml:"dc:subject,omitempty"`
	Creator      string   `xml:"dc:creator,omitempty"`
	Created      *w3cdtf  `xml:"dcterms:created,omitempty"`
}

type w3cdtf struct {
	Type  string `xml:"xsi:type,attr"`
	Value string `xml:",chardata"`
}

// Render writes a complete .docx package holding blocks, in order, to w.
// Text is XML-escaped; runes that XML 1.0 forbids come out as U+FFFD.
func Render(w io.Writer, blocks []Block, props Properties) error {
	doc := document{
		XmlnsW: nsMain,
		Body: body{
			Paragraphs: make([]paragraph, 0, len(blocks)),
			Section: section{
				PageSize:    pageSize{W: 11906, H: 16838},
				PageMargins: pageMargins{Top: 1440, Right: 1440, Bottom: 1440, Left: 1440, Header: 708, Footer: 708},
			},
		},
	}
	for i, b := range blocks {
		p, err := renderBlock(b)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		doc.Body.Paragraphs = append(doc.Body.Paragraphs, p)
	}

	zw := zip.NewWriter(w)

	parts := []struct {
		name string
		body any
	}{
		{partContentTypes, contentTypesXML},
		{partRels, packageRelsXML},
		{partCore, newCoreProperties(props)},
		{partDocument, doc},
		{partStyles, stylesXML},
		{partDocumentRels, documentRelsXML},
	}
	for _, part := range parts {
		if err := writePart(zw, part.name, part.body); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close package: %w", err)
	}
	return nil
}

func renderBlock(b Block) (paragraph, error) {
	switch b.Kind {
	case KindText:
		p := paragraph{Props: spacingProps(b.Style)}
		p.Runs = []run{{
			Props: runPropsFor(b.Style),
			Text:  runText{Space: "preserve", Value: b.Text},
		}}
		return p, nil
	case KindSeparator:
		props := spacingProps(b.Style)
		if props == nil {
			props = &paragraphProps{}
		}
		props.Border = &paragraphBorder{Bottom: border{Val: "single", Size: 6, Space: 1, Color: "auto"}}
		return paragraph{Props: props}, nil
	default:
		return paragraph{}, fmt.Errorf("unknown block kind %d", b.Kind)
	}
}

func spacingProps(s Style) *paragraphProps {
	if s.SpaceBefore == 0 && s.SpaceAfter == 0 {
		return nil
	}
	return &paragraphProps{Spacing: &spacing{Before: s.SpaceBefore, After: s.SpaceAfter}}
}

func runPropsFor(s Style) *runProps {
	rp := &runProps{}
	empty := true
	if s.Bold {
		rp.Bold = &onOff{}
		empty = false
	}
	if s.Italic {
		rp.Italic = &onOff{}
		empty = false
	}
	if s.Color != "" {
		rp.Color = &valueAttr{Val: s.Color}
		empty = false
	}
	if s.SizePt > 0 {
		// w:sz is measured in half-points
		half := strconv.Itoa(int(s.SizePt*2 + 0.5))
		rp.Size = &valueAttr{Val: half}
		rp.SizeCS = &valueAttr{Val: half}
		empty = false
	}
	if empty {
		return nil
	}
	return rp
}

func newCoreProperties(p Properties) coreProperties {
	cp := coreProperties{
		XmlnsCP:      nsCore,
		XmlnsDC:      nsDC,
		XmlnsDCTerms: nsDCTerms,
		XmlnsXSI:     nsXSI,
		Title:        p.Title,
		Subject:      p.Subject,
		Creator:      p.Creator,
	}
	if !p.Created.IsZero() {
		cp.Created = &w3cdtf{Type: "dcterms:W3CDTF", Value: p.Created.UTC().Format(time.RFC3339)}
	}
	return cp
}

func writePart(zw *zip.Writer, name string, content any) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create part %s: %w", name, err)
	}
	if _, err := io.WriteString(f, xml.Header); err != nil {
		return fmt.Errorf("write part %s: %w", name, err)
	}

	switch v := content.(type) {
	case string:
		_, err = io.WriteString(f, v)
	default:
		err = xml.NewEncoder(f).Encode(v)
	}
	if err != nil {
		return fmt.Errorf("write part %s: %w", name, err)
	}
	return nil
}
