// Legacy binary format support: .xls via shakinm/xlsReader, .doc and .ppt via
// richardlehane/mscfb (OLE2 compound files).
package parser

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"github.com/shakinm/xlsReader/xls"
)

// parseXLSLegacy extracts cell text from BIFF .xls workbooks.
func (dp *DocumentParser) parseXLSLegacy(data []byte) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("xls extraction error: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xls extraction error: %w", err)
	}

	var sb strings.Builder
	numSheets := wb.GetNumberSheets()
	for i := 0; i < numSheets; i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil {
			continue
		}
		sheetName := sheet.GetName()
		numRows := sheet.GetNumberRows()
		for rowIdx := 0; rowIdx < numRows; rowIdx++ {
			row, err := sheet.GetRow(rowIdx)
			if err != nil || row == nil {
				continue
			}
			for colIdx, cell := range row.GetCols() {
				val := strings.TrimSpace(cell.GetString())
				if val == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("%s-%d,%d: %s", sheetName, rowIdx+1, colIdx+1, val))
			}
		}
	}

	text := CleanText(sb.String())
	if text == "" {
		return nil, fmt.Errorf("xls extraction error: workbook has no cell content")
	}

	return &ParseResult{
		Text: text,
		Metadata: map[string]string{
			"type":        "xls",
			"sheet_count": fmt.Sprintf("%d", numSheets),
		},
	}, nil
}

// parseWordLegacy extracts text from .doc files by reading the WordDocument
// stream and, when present, the piece table in the 0Table/1Table stream.
func (dp *DocumentParser) parseWordLegacy(data []byte) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("doc extraction error: %v", r)
		}
	}()

	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("doc extraction error: %w", err)
	}

	var wordDocData []byte
	var tableData []byte
	for {
		entry, nextErr := doc.Next()
		if nextErr != nil {
			break
		}
		switch entry.Name {
		case "WordDocument":
			wordDocData, _ = io.ReadAll(entry)
		case "0Table":
			if tableData == nil {
				tableData, _ = io.ReadAll(entry)
			}
		case "1Table":
			tableData, _ = io.ReadAll(entry)
		}
	}

	if len(wordDocData) == 0 {
		return nil, fmt.Errorf("doc extraction error: WordDocument stream not found")
	}

	text := extractWordText(wordDocData, tableData)
	text = filterWordFieldCodes(text)
	text = CleanText(text)
	if text == "" {
		return nil, fmt.Errorf("doc extraction error: document has no text content")
	}

	return &ParseResult{
		Text: text,
		Metadata: map[string]string{
			"type": "doc",
		},
	}, nil
}

// extractWordText prefers the piece table in the Table stream and falls back
// to a direct scan of the WordDocument stream.
func extractWordText(wordDoc []byte, tableData []byte) string {
	if len(wordDoc) < 12 {
		return ""
	}
	if len(tableData) > 0 {
		if text := extractFromPieceTable(wordDoc, tableData); text != "" {
			return text
		}
	}
	return extractDirectText(wordDoc)
}

// extractFromPieceTable reads the CLX from the Table stream and decodes each
// text piece from the WordDocument stream. Pieces are either UTF-16LE or
// compressed ANSI, flagged per piece descriptor.
func extractFromPieceTable(wordDoc []byte, tableData []byte) string {
	if len(wordDoc) < 0x01A2+8 {
		return ""
	}

	// FIB: fcClx at 0x01A2, lcbClx at 0x01A6
	fcClx := binary.LittleEndian.Uint32(wordDoc[0x01A2:0x01A6])
	lcbClx := binary.LittleEndian.Uint32(wordDoc[0x01A6:0x01AA])
	if fcClx == 0 || lcbClx == 0 || int(fcClx+lcbClx) > len(tableData) {
		return ""
	}
	clx := tableData[fcClx : fcClx+lcbClx]

	// Skip Prc entries (type 0x01) until the Pcdt (type 0x02)
	pos := 0
	for pos < len(clx) {
		if clx[pos] == 0x01 {
			if pos+3 > len(clx) {
				break
			}
			cbGrpprl := int(binary.LittleEndian.Uint16(clx[pos+1 : pos+3]))
			pos += 3 + cbGrpprl
		} else if clx[pos] == 0x02 {
			pos++
			break
		} else {
			break
		}
	}
	if pos+4 > len(clx) {
		return ""
	}

	lcb := int(binary.LittleEndian.Uint32(clx[pos : pos+4]))
	pos += 4
	if pos+lcb > len(clx) || lcb < 12 {
		return ""
	}
	plcPcd := clx[pos : pos+lcb]

	// PlcPcd: n+1 character positions followed by n 8-byte piece descriptors
	const pcdSize = 8
	n := (lcb - 4) / (4 + pcdSize)
	if n <= 0 {
		return ""
	}
	cpArraySize := (n + 1) * 4
	if cpArraySize+n*pcdSize > lcb {
		return ""
	}

	var sb strings.Builder
	for i := 0; i < n; i++ {
		cpStart := binary.LittleEndian.Uint32(plcPcd[i*4 : i*4+4])
		cpEnd := binary.LittleEndian.Uint32(plcPcd[(i+1)*4 : (i+1)*4+4])

		pcdOffset := cpArraySize + i*pcdSize
		if pcdOffset+8 > len(plcPcd) {
			break
		}
		fcCompressed := binary.LittleEndian.Uint32(plcPcd[pcdOffset+2 : pcdOffset+6])

		isUnicode := (fcCompressed & 0x40000000) == 0
		fc := fcCompressed & 0x3FFFFFFF

		charCount := cpEnd - cpStart
		if charCount == 0 || charCount > 1000000 {
			continue
		}

		if isUnicode {
			byteLen := charCount * 2
			if int(fc+byteLen) > len(wordDoc) {
				continue
			}
			chunk := wordDoc[fc : fc+byteLen]
			u16s := make([]uint16, charCount)
			for j := uint32(0); j < charCount; j++ {
				u16s[j] = binary.LittleEndian.Uint16(chunk[j*2 : j*2+2])
			}
			for _, r := range utf16.Decode(u16s) {
				writeWordRune(&sb, r)
			}
		} else {
			byteOffset := fc / 2
			if int(byteOffset+charCount) > len(wordDoc) {
				continue
			}
			for _, b := range wordDoc[byteOffset : byteOffset+charCount] {
				writeWordRune(&sb, rune(b))
			}
		}
	}
	return sb.String()
}

func writeWordRune(sb *strings.Builder, r rune) {
	switch {
	case r == 0x0D || r == 0x0B:
		sb.WriteByte('\n')
	case r == 0x07: // table cell marker
		sb.WriteByte('\t')
	case r >= 0x20 || r == 0x09:
		sb.WriteRune(r)
	}
}

// extractDirectText scans the WordDocument stream for printable sequences.
// Best effort when the piece table is absent or unreadable.
func extractDirectText(wordDoc []byte) string {
	var sb strings.Builder
	inText := false
	for i := 0; i < len(wordDoc); i++ {
		b := wordDoc[i]
		if (b >= 0x20 && b < 0x7F) || b == 0x0A || b == 0x0D || b == 0x09 {
			if b == 0x0D {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(b)
			}
			inText = true
		} else {
			if inText && sb.Len() > 0 {
				last := sb.String()
				if last[len(last)-1] != '\n' {
					sb.WriteByte('\n')
				}
			}
			inText = false
		}
	}
	return sb.String()
}

// Field code markers that leak through piece table extraction.
var wordFieldCodePatterns = []string{
	"HYPERLINK",
	"PAGEREF",
	"MERGEFORMAT",
	"TOC \\o",
	"TOC \\h",
	"\\l \"",
	" \\h",
}

func filterWordFieldCodes(text string) string {
	lines := strings.Split(text, "\n")
	var filtered []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			filtered = append(filtered, line)
			continue
		}
		isFieldCode := false
		for _, pat := range wordFieldCodePatterns {
			if strings.Contains(trimmed, pat) {
				isFieldCode = true
				break
			}
		}
		if !isFieldCode {
			filtered = append(filtered, line)
		}
	}
	return strings.Join(filtered, "\n")
}

// parsePPTLegacy extracts text from .ppt files by walking the record stream
// of the "PowerPoint Document" OLE2 entry.
func (dp *DocumentParser) parsePPTLegacy(data []byte) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("ppt extraction error: %v", r)
		}
	}()

	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ppt extraction error: %w", err)
	}

	var pptData []byte
	for {
		entry, nextErr := doc.Next()
		if nextErr != nil {
			break
		}
		if entry.Name == "PowerPoint Document" {
			pptData, _ = io.ReadAll(entry)
		}
	}

	if len(pptData) == 0 {
		return nil, fmt.Errorf("ppt extraction error: PowerPoint Document stream not found")
	}

	text := CleanText(extractPPTText(pptData))
	if text == "" {
		return nil, fmt.Errorf("ppt extraction error: presentation has no text content")
	}

	return &ParseResult{
		Text: text,
		Metadata: map[string]string{
			"type": "ppt",
		},
	}, nil
}

// Master slide template placeholders filtered from legacy PPT text.
var pptNoisePatterns = []string{
	"Click to edit Master title style",
	"Click to edit Master text styles",
	"Click to edit Master subtitle style",
}

var pptNoiseExact = map[string]bool{
	"*":            true,
	"Second level": true,
	"Third level":  true,
	"Fourth level": true,
	"Fifth level":  true,
}

func isPPTNoise(text string) bool {
	if pptNoiseExact[text] {
		return true
	}
	for _, pat := range pptNoisePatterns {
		if strings.Contains(text, pat) {
			return true
		}
	}
	return false
}

// extractPPTText walks the binary record stream. Each record header is 8
// bytes: recVer+recInstance (16 bits), recType (16 bits), recLen (32 bits).
// Text lives in TextCharsAtom (0x0FA0, UTF-16LE) and TextBytesAtom (0x0FA8,
// ANSI). Container records (recVer 0x0F) are descended into.
func extractPPTText(data []byte) string {
	var sb strings.Builder
	pos := 0

	for pos+8 <= len(data) {
		recVerInstance := binary.LittleEndian.Uint16(data[pos : pos+2])
		recType := binary.LittleEndian.Uint16(data[pos+2 : pos+4])
		recLen := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		recVer := recVerInstance & 0x0F

		pos += 8
		if recLen > uint32(len(data)-pos) {
			break
		}

		switch recType {
		case 0x0FA0: // TextCharsAtom
			if recLen >= 2 {
				charCount := recLen / 2
				u16s := make([]uint16, charCount)
				for i := uint32(0); i < charCount; i++ {
					u16s[i] = binary.LittleEndian.Uint16(data[pos+int(i*2) : pos+int(i*2+2)])
				}
				appendPPTLine(&sb, string(utf16.Decode(u16s)))
			}
			pos += int(recLen)

		case 0x0FA8: // TextBytesAtom
			if recLen > 0 {
				appendPPTLine(&sb, string(data[pos:pos+int(recLen)]))
			}
			pos += int(recLen)

		default:
			if recVer != 0x0F {
				pos += int(recLen)
			}
			// Containers fall through so sub-records parse next iteration.
		}
	}

	return sb.String()
}

func appendPPTLine(sb *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" || isPPTNoise(text) {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(text)
}
