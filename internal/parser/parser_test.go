package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractText_UnsupportedFormat(t *testing.T) {
	path := writeTemp(t, "binary.exe", "MZ")
	_, err := ExtractText(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractText_PlainText(t *testing.T) {
	path := writeTemp(t, "notes.txt", "  hello world\nsecond line  \n")
	got, err := ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world\nsecond line", got)
}

func TestExtractText_Markdown(t *testing.T) {
	path := writeTemp(t, "readme.md", "# Title\n\nBody text.")
	got, err := ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody text.", got)
}

func TestExtractText_MissingFile(t *testing.T) {
	_, err := ExtractText(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, ErrParse)
}

func TestExtractText_CSV(t *testing.T) {
	path := writeTemp(t, "people.csv", "name,age,city\nAda,36,London\nAlan,41,Manchester\n")
	got, err := ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "name: Ada, age: 36, city: London\nname: Alan, age: 41, city: Manchester", got)
}

func TestExtractText_CSV_RaggedRows(t *testing.T) {
	path := writeTemp(t, "ragged.csv", "a,b,c\n1,2\n3,4,5,6\n")
	got, err := ExtractText(path)
	require.NoError(t, err)
	// Short rows drop trailing fields; long rows drop the excess.
	assert.Equal(t, "a: 1, b: 2\na: 3, b: 4, c: 5", got)
}

func TestExtractText_CSV_HeaderOnly(t *testing.T) {
	path := writeTemp(t, "empty.csv", "only,headers\n")
	got, err := ExtractText(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func writeDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	entry, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

func TestExtractText_DOCX(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r><w:r><w:t> Same line.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	got, err := ExtractText(writeDOCX(t, xml))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph. Same line.\nSecond paragraph.", got)
}

func TestExtractText_DOCX_NotAZip(t *testing.T) {
	path := writeTemp(t, "fake.docx", "this is not a zip archive")
	_, err := ExtractText(path)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParserValue(t *testing.T) {
	p := New()
	path := writeTemp(t, "v.txt", "via the value")
	got, err := p.ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "via the value", got)
}
