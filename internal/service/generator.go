package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"finreport_srv/internal/docx"

	"github.com/sirupsen/logrus"
)

const (
	// Форматы времени в документе и в имени файла
	footerTimeLayout   = "2006-01-02 15:04:05"
	fileNameTimeLayout = "20060102_150405"

	fileNamePrefix      = "FinancialReport"
	maxFileNameSegment  = 64
	emptySegmentName    = "unnamed"
	documentCreatorName = "finreport"

	// Лимит байт на часть имени: две части плюс префикс, время, суффикс
	// и расширение укладываются в 255 байт имени файла
	maxFileNameSegmentBytes = 100

	// Оформление блоков
	accentColor = "0078D4"
	footerColor = "808080"
	titleSizePt = 16
	bodySizePt  = 12
	smallSizePt = 9

	// Интервалы в twips (1/20 пункта)
	titleSpaceAfter     = 240
	separatorSpaceAbove = 240
	separatorSpaceBelow = 240
)

// ReportContent описывает содержимое одного документа
type ReportContent struct {
	ClientName  string
	ReportType  string
	ReportYear  int
	GeneratedAt time.Time
}

// ReportGenerator интерфейс для генерации документов отчетов
type ReportGenerator interface {
	Generate(ctx context.Context, doc ReportContent) (*bytes.Buffer, error)
	GetMimeType() string
	GetFileExtension() string
}

// ReportBlocks возвращает фиксированную раскладку документа:
// заголовок, клиент, год, разделитель, подвал с временем генерации.
func ReportBlocks(doc ReportContent) []docx.Block {
	return []docx.Block{
		docx.Text("Financial Report: "+doc.ReportType, docx.Style{
			Bold:       true,
			SizePt:     titleSizePt,
			Color:      accentColor,
			SpaceAfter: titleSpaceAfter,
		}),
		docx.Text("Client: "+doc.ClientName, docx.Style{SizePt: bodySizePt}),
		docx.Text(fmt.Sprintf("Reporting Year: %d", doc.ReportYear), docx.Style{SizePt: bodySizePt}),
		docx.Separator(separatorSpaceAbove, separatorSpaceBelow),
		docx.Text("Generated on: "+doc.GeneratedAt.Format(footerTimeLayout), docx.Style{
			Italic: true,
			SizePt: smallSizePt,
			Color:  footerColor,
		}),
	}
}

// DocxReportGenerator генератор Word отчетов
type DocxReportGenerator struct {
	logger *logrus.Logger
}

// NewDocxReportGenerator создает новый генератор Word отчетов
func NewDocxReportGenerator(logger *logrus.Logger) ReportGenerator {
	return &DocxReportGenerator{logger: logger}
}

// Generate собирает документ целиком в памяти
func (g *DocxReportGenerator) Generate(ctx context.Context, doc ReportContent) (*bytes.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err := docx.Render(&buf, ReportBlocks(doc), docx.Properties{
		Title:   "Financial Report: " + doc.ReportType,
		Subject: fmt.Sprintf("%s %d", doc.ClientName, doc.ReportYear),
		Creator: documentCreatorName,
		Created: doc.GeneratedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render docx: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"client_name": doc.ClientName,
		"report_type": doc.ReportType,
		"size":        buf.Len(),
	}).Debug("Документ отчета собран")

	return &buf, nil
}

// GetMimeType возвращает MIME тип для Word документов
func (g *DocxReportGenerator) GetMimeType() string {
	return docx.MimeType
}

// GetFileExtension возвращает расширение файла для Word документов
func (g *DocxReportGenerator) GetFileExtension() string {
	return docx.Extension
}

var unsafeFileChars = strings.NewReplacer(
	"/", "", `\`, "", ":", "",
	"*", "", "?", "", `"`, "", "<", "", ">", "", "|", "",
)

// SanitizeFileSegment убирает из строки символы, недопустимые в имени файла,
// и заменяет пробельные последовательности на "_".
func SanitizeFileSegment(s string) string {
	s = unsafeFileChars.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), "_")

	s = truncateSegment(s)
	if s == "" {
		return emptySegmentName
	}
	return s
}

// truncateSegment обрезает строку по границе символа
func truncateSegment(s string) string {
	size, count := 0, 0
	for i, r := range s {
		width := utf8.RuneLen(r)
		if count == maxFileNameSegment || size+width > maxFileNameSegmentBytes {
			return s[:i]
		}
		size += width
		count++
	}
	return s
}

// BuildFileName формирует имя файла отчета.
// suffix разводит документы, созданные для одного клиента в одну секунду.
func BuildFileName(clientName, reportType string, at time.Time, suffix, ext string) string {
	return fmt.Sprintf("%s_%s_%s_%s_%s.%s",
		fileNamePrefix,
		SanitizeFileSegment(clientName),
		SanitizeFileSegment(reportType),
		at.Format(fileNameTimeLayout),
		suffix,
		ext,
	)
}
