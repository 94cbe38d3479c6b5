// Package parser extracts plain text from uploaded documents. Modern Office
// formats and PDF go through the VantageDataChat libraries (gopdf2, goword,
// goexcel, goppt); legacy binary formats are handled in legacy.go.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	goexcel "github.com/VantageDataChat/GoExcel"
	gopdf "github.com/VantageDataChat/GoPDF2"
	goppt "github.com/VantageDataChat/GoPPT"
	goword "github.com/VantageDataChat/GoWord"
)

// ErrUnsupported is returned for file types no parser handles.
var ErrUnsupported = errors.New("unsupported file type")

// DocumentParser extracts text from document bytes.
type DocumentParser struct{}

// ParseResult holds the extracted text and format metadata.
type ParseResult struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Parse dispatches on fileType. Supported: pdf, docx, doc, xlsx, xls, pptx,
// ppt, txt, md. Parser panics inside the format libraries are recovered and
// reported as extraction errors.
func (dp *DocumentParser) Parse(fileData []byte, fileType string) (*ParseResult, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		return dp.parsePDF(fileData)
	case "docx":
		return dp.parseWord(fileData)
	case "doc":
		return dp.parseWordLegacy(fileData)
	case "xlsx":
		return dp.parseExcel(fileData)
	case "xls":
		return dp.parseXLSLegacy(fileData)
	case "pptx":
		return dp.parsePPT(fileData)
	case "ppt":
		return dp.parsePPTLegacy(fileData)
	case "txt", "md":
		return dp.parsePlain(fileData, strings.ToLower(fileType))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, fileType)
	}
}

func (dp *DocumentParser) parsePlain(data []byte, kind string) (*ParseResult, error) {
	text := CleanText(string(data))
	if text == "" {
		return nil, fmt.Errorf("%s extraction error: file is empty", kind)
	}
	return &ParseResult{
		Text:     text,
		Metadata: map[string]string{"type": kind},
	}, nil
}

func (dp *DocumentParser) parsePDF(data []byte) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pdf extraction error: %v", r)
		}
	}()

	pageCount, err := gopdf.GetSourcePDFPageCountFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("pdf extraction error: %w", err)
	}

	var sb strings.Builder
	for i := 0; i < pageCount; i++ {
		text, err := gopdf.ExtractPageText(data, i)
		if err != nil {
			return nil, fmt.Errorf("pdf extraction error: page %d: %w", i+1, err)
		}
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(text)
		}
	}

	return &ParseResult{
		Text: CleanText(sb.String()),
		Metadata: map[string]string{
			"type":       "pdf",
			"page_count": fmt.Sprintf("%d", pageCount),
		},
	}, nil
}

func (dp *DocumentParser) parseWord(data []byte) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("docx extraction error: %v", r)
		}
	}()

	doc, err := goword.OpenFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("docx extraction error: %w", err)
	}

	return &ParseResult{
		Text: CleanText(doc.ExtractText()),
		Metadata: map[string]string{
			"type":  "docx",
			"title": doc.Properties.Title,
		},
	}, nil
}

// parseExcel flattens cell content to "Sheet-Row,Col: value" lines so
// spreadsheet structure survives word-based chunking.
func (dp *DocumentParser) parseExcel(data []byte) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("xlsx extraction error: %v", r)
		}
	}()

	reader := goexcel.NewXLSXReader()
	wb, err := reader.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("xlsx extraction error: %w", err)
	}

	var sb strings.Builder
	sheetNames := wb.GetSheetNames()
	for _, name := range sheetNames {
		sheet, err := wb.GetSheetByName(name)
		if err != nil {
			continue
		}
		rows, err := sheet.RowIterator()
		if err != nil {
			continue
		}
		for rowIdx, row := range rows {
			for _, cell := range row {
				if cell == nil || cell.IsEmpty() {
					continue
				}
				val := cell.GetFormattedValue()
				if val == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("%s-%d,%d: %s", name, rowIdx+1, cell.Col()+1, val))
			}
		}
	}

	return &ParseResult{
		Text: CleanText(sb.String()),
		Metadata: map[string]string{
			"type":        "xlsx",
			"sheet_count": fmt.Sprintf("%d", len(sheetNames)),
		},
	}, nil
}

func (dp *DocumentParser) parsePPT(data []byte) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pptx extraction error: %v", r)
		}
	}()

	pres, err := goppt.ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pptx extraction error: %w", err)
	}

	var sb strings.Builder
	slides := pres.Slides()
	for i, slide := range slides {
		text := slide.ExtractText()
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(fmt.Sprintf("Slide %d:\n%s", i+1, text))
		}
	}

	return &ParseResult{
		Text: CleanText(sb.String()),
		Metadata: map[string]string{
			"type":        "pptx",
			"slide_count": fmt.Sprintf("%d", len(slides)),
		},
	}, nil
}

// CleanText removes control characters (except newlines and tabs), collapses
// runs of spaces per line, and caps consecutive blank lines at one.
func CleanText(text string) string {
	controlRe := regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	text = controlRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	var cleaned []string
	spaceRe := regexp.MustCompile(`[ \t]+`)
	for _, line := range lines {
		line = spaceRe.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		cleaned = append(cleaned, line)
	}
	text = strings.Join(cleaned, "\n")

	nlRe := regexp.MustCompile(`\n{3,}`)
	text = nlRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
