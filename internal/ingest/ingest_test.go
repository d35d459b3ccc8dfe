package ingest

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ariefcatur/go-image-orders/internal/apperr"
)

type testFile struct {
	field, name, ctype string
	body               []byte
}

func buildForm(t *testing.T, files ...testFile) *multipart.Form {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		h.Set("Content-Type", f.ctype)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("webhookUrl", "https://hook.example/done"))
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form
}

func csvFile(body string) testFile {
	return testFile{field: FileField, name: "skus.csv", ctype: "text/csv", body: []byte(body)}
}

func newTestPipeline(t *testing.T) (*Pipeline, string, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	dir := t.TempDir()
	return NewPipeline(dir, nil, log), dir, hook
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, code, ve.Code)
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStandardizeHeader(t *testing.T) {
	cases := map[string]string{
		"S. No.":           "sno",
		"s_no":             "sno",
		"sno":              "sno",
		" SNO ":            "sno",
		"Serial Number":    "sno",
		"Product Name":     "product_name",
		"product":          "product_name",
		"Input Image Urls": "input_image_urls",
		"Input Image Url":  "input_image_urls",
		"\ufeffS. No.":     "sno",
		" \ufeffS. No.":    "sno",
		"\ufeff Product ":  "product_name",
		"Notes.":           "notes",
	}
	for in, want := range cases {
		got := StandardizeHeader(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, StandardizeHeader(got), "not idempotent for %q", in)
	}
}

func TestSplitImageURLs(t *testing.T) {
	assert.Equal(t, []string{"https://a/x.jpg", "https://a/y.png"},
		SplitImageURLs(` https://a/x.jpg, "https://a/y.png" `))
	assert.Equal(t, []string{"https://a/xy.jpg"}, SplitImageURLs(`"https://a/x y.jpg"`))
	assert.Equal(t, []string{"https://a/x.jpg"}, SplitImageURLs(`,, https://a/x.jpg ,`))
	assert.Empty(t, SplitImageURLs(`  `))
	assert.Empty(t, SplitImageURLs(`"", , " "`))
}

func TestParseSNO(t *testing.T) {
	for in, want := range map[string]int{"1": 1, " 7 ": 7, "2.0": 2, "1e1": 10, "3000000000": 3000000000} {
		got, err := ParseSNO(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "0", "-1", "0.5", "abc", "NaN", "Inf", "1e19"} {
		_, err := ParseSNO(in)
		assert.ErrorIs(t, err, errBadSNO, in)
	}
}

func TestIngestSingleRowWithQuotedURLList(t *testing.T) {
	p, dir, _ := newTestPipeline(t)
	form := buildForm(t, csvFile("S. No.,Product Name,Input Image Urls\n"+
		`1, Widget, "https://a/x.jpg, https://a/y.png"`+"\n"))

	res, err := p.Ingest(context.Background(), form)
	require.NoError(t, err)
	require.Len(t, res.Drafts, 1)

	d := res.Drafts[0]
	assert.Equal(t, 1, d.SNO)
	assert.Equal(t, "Widget", d.ProductName)
	assert.Equal(t, []string{"https://a/x.jpg", "https://a/y.png"}, d.InputImageURL)
	assert.Equal(t, res.RequestID, d.RequestID)
	assert.NotEmpty(t, res.RequestID)
	assertDirEmpty(t, dir)
}

func TestIngestNoFiles(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, err := p.Ingest(context.Background(), buildForm(t))
	requireCode(t, err, apperr.CodeNoFiles)

	_, err = p.Ingest(context.Background(), nil)
	requireCode(t, err, apperr.CodeNoFiles)
}

func TestIngestMoreThanOneFile(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	form := buildForm(t, csvFile("sno\n1\n"), testFile{field: "extra", name: "b.csv", ctype: "text/csv", body: []byte("x")})
	_, err := p.Ingest(context.Background(), form)
	requireCode(t, err, apperr.CodeOnlyOneFile)
}

func TestIngestRejectsNonTabular(t *testing.T) {
	p, dir, _ := newTestPipeline(t)

	_, err := p.Ingest(context.Background(),
		buildForm(t, testFile{field: FileField, name: "a.png", ctype: "image/png", body: []byte("x")}))
	requireCode(t, err, apperr.CodeNotCSV)

	_, err = p.Ingest(context.Background(),
		buildForm(t, testFile{field: "file", name: "a.csv", ctype: "text/csv", body: []byte("x")}))
	requireCode(t, err, apperr.CodeNotCSV)
	assertDirEmpty(t, dir)
}

func TestIngestEveryRowInvalid(t *testing.T) {
	p, dir, hook := newTestPipeline(t)
	form := buildForm(t, csvFile("sno,product_name,input_image_urls\n"+
		"0,Widget,https://a/x.jpg\n"+
		"0,Gadget,https://a/y.jpg\n"))

	_, err := p.Ingest(context.Background(), form)
	requireCode(t, err, apperr.CodeNoValidSKUData)
	assertDirEmpty(t, dir)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestIngestDropsOnlyBadRows(t *testing.T) {
	p, _, hook := newTestPipeline(t)
	form := buildForm(t, csvFile(strings.Join([]string{
		"S. No.,Product Name,Input Image Urls",
		"1,Widget,https://a/x.jpg",
		"abc,Bad Sno,https://a/y.jpg",
		"3,,https://a/z.jpg",
		"4,No Urls,\"  \"",
		"",
		"5,Gadget,\"https://a/g.jpg,https://a/h.png\"",
		"5,Dup,https://a/dup.jpg",
		"6,Short",
	}, "\n")))

	res, err := p.Ingest(context.Background(), form)
	require.NoError(t, err)
	require.Len(t, res.Drafts, 2)
	assert.Equal(t, 1, res.Drafts[0].SNO)
	assert.Equal(t, 5, res.Drafts[1].SNO)
	assert.Equal(t, []string{"https://a/g.jpg", "https://a/h.png"}, res.Drafts[1].InputImageURL)

	var lines []any
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			lines = append(lines, e.Data["line"])
		}
	}
	assert.Equal(t, []any{3, 4, 5, 8, 9}, lines)
}

func TestIngestHeaderOnlyIsInvalidContent(t *testing.T) {
	p, dir, _ := newTestPipeline(t)
	_, err := p.Ingest(context.Background(), buildForm(t, csvFile("sno,product_name,input_image_urls\n\n\n")))
	requireCode(t, err, apperr.CodeInvalidCSV)
	assertDirEmpty(t, dir)
}

func TestParseToleratesRaggedRowsAndLazyQuotes(t *testing.T) {
	records, err := Parse(strings.NewReader("sno,product_name,input_image_urls,extra\n1,Wid\"get\n2,Gadget,u,x,y\n"), KindCSV)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `Wid"get`, records[0].Fields[ColProductName])
	assert.Equal(t, "", records[0].Fields[ColInputImageURLs])
	assert.Equal(t, "u", records[1].Fields[ColInputImageURLs])
}

func TestParseUnknownKind(t *testing.T) {
	_, err := Parse(strings.NewReader("sno\n1\n"), Kind(99))
	requireCode(t, err, apperr.CodeInvalidCSV)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"S. No.", "Product Name", "Input Image Urls"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{1, "Widget", "https://a/x.jpg, https://a/y.png"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	records, err := Parse(bytes.NewReader(buf.Bytes()), KindXLSX)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Line)
	assert.Equal(t, "1", records[0].Fields[ColSNO])
	assert.Equal(t, "Widget", records[0].Fields[ColProductName])
}

func TestParseXLSXGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader("definitely not a zip"), KindXLSX)
	requireCode(t, err, apperr.CodeInvalidCSV)
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf("text/csv; charset=utf-8")
	assert.True(t, ok)
	assert.Equal(t, KindCSV, k)

	k, ok = KindOf("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	assert.True(t, ok)
	assert.Equal(t, KindXLSX, k)

	_, ok = KindOf("application/json")
	assert.False(t, ok)
	_, ok = KindOf("")
	assert.False(t, ok)
}
