package extractors

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"
)

const decisionPage = `<!DOCTYPE html>
<html>
<head><title>Urteil 4A_500/2021 vom 31. Januar 2022</title>
<style>body { color: red }</style>
<script>var tracking = "should not appear";</script>
</head>
<body>
<header><nav><a href="/">Startseite</a> <a href="/kontakt">Kontakt</a></nav></header>
<div id="sidebar"><ul><li><a href="/a">Link A</a></li><li><a href="/b">Link B</a></li></ul></div>
<article>
<h1>Urteil vom 31. Januar 2022</h1>
<p>Das Bundesgericht hat in der Sache 4A_500/2021 entschieden, dass die Beschwerde abgewiesen wird.
Die Vorinstanz hat den Sachverhalt <strong>korrekt</strong> festgestellt.</p>
<p>Die Beschwerdeführerin rügt eine Verletzung von Art. 8 ZGB. Diese Rüge ist unbegründet, da die Beweislast
korrekt verteilt wurde und keine willkürliche Beweiswürdigung vorliegt.</p>
<p>Demnach erkennt das Bundesgericht: Die Beschwerde wird abgewiesen. Die Gerichtskosten werden der
Beschwerdeführerin auferlegt. Siehe auch <a href="/bge/147">BGE 147 III 73</a>.</p>
</article>
<footer>Impressum und Datenschutz</footer>
</body>
</html>`

func TestExtractHTMLMainContent(t *testing.T) {
	e := NewExtractor()
	res, err := e.Extract([]byte(decisionPage), "text/html; charset=utf-8", "https://example.court/entscheide/1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if res.Title != "Urteil 4A_500/2021 vom 31. Januar 2022" {
		t.Errorf("Unexpected title %q", res.Title)
	}
	if res.Method != methodHTMLMain {
		t.Errorf("Expected main-content path, got %s", res.Method)
	}

	mustContain := []string{"Das Bundesgericht hat", "korrekt festgestellt", "BGE 147 III 73", "\n\n"}
	for _, s := range mustContain {
		if !strings.Contains(res.Text, s) {
			t.Errorf("Expected text to contain %q, got:\n%s", s, res.Text)
		}
	}

	mustNotContain := []string{"tracking", "Startseite", "Impressum", "color: red", "](", "**", "Link A"}
	for _, s := range mustNotContain {
		if strings.Contains(res.Text, s) {
			t.Errorf("Expected text not to contain %q, got:\n%s", s, res.Text)
		}
	}
}

func TestExtractHTMLShortPage(t *testing.T) {
	page := `<html><head><title>Kurz</title><script>x()</script></head><body><div><span>Nur ein kurzer Satz.</span></div></body></html>`

	e := NewExtractor()
	res, err := e.Extract([]byte(page), "text/html", "https://example.court/x")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Text != "Nur ein kurzer Satz." {
		t.Errorf("Unexpected text %q", res.Text)
	}
	if res.Title != "Kurz" {
		t.Errorf("Unexpected title %q", res.Title)
	}
}

func TestExtractDetectsHTMLWithoutContentType(t *testing.T) {
	e := NewExtractor()
	res, err := e.Extract([]byte("<!DOCTYPE html><html><body><p>Hallo Welt</p></body></html>"), "", "https://x")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Text != "Hallo Welt" {
		t.Errorf("Unexpected text %q", res.Text)
	}
}

func TestExtractLegacyCharset(t *testing.T) {
	body := "<p>Das Gericht erw\xe4gt, dass die Beschwerde gegen die Veranlagung unbegr\xfcndet ist.</p>"

	tests := []struct {
		name        string
		page        string
		contentType string
		description string
	}{
		{
			name:        "charset header",
			page:        "<html><head><title>Entscheid \xfcber Steuern</title></head><body>" + body + "</body></html>",
			contentType: "text/html; charset=iso-8859-1",
			description: "the Content-Type charset is honoured",
		},
		{
			name: "meta declaration",
			page: `<html><head><meta http-equiv="Content-Type" content="text/html; charset=ISO-8859-1">` +
				"<title>Entscheid \xfcber Steuern</title></head><body>" + body + "</body></html>",
			contentType: "text/html",
			description: "a meta charset is honoured",
		},
		{
			name:        "undeclared",
			page:        "<html><head><title>Entscheid \xfcber Steuern</title></head><body>" + body + "</body></html>",
			contentType: "text/html",
			description: "undeclared high bytes are read as Windows-1252",
		},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Extract([]byte(tt.page), tt.contentType, "https://example.court/entscheide/7")
			if err != nil {
				t.Fatalf("Unexpected error for test %s: %v", tt.description, err)
			}
			if res.Title != "Entscheid über Steuern" {
				t.Errorf("%s: unexpected title %q", tt.description, res.Title)
			}
			if !utf8.ValidString(res.Text) || !strings.Contains(res.Text, "erwägt") || !strings.Contains(res.Text, "unbegründet") {
				t.Errorf("%s: expected decoded text, got %q", tt.description, res.Text)
			}
		})
	}
}

func TestExtractPDFByPath(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		url         string
		method      string
		expectError bool
		description string
	}{
		{
			name:        "octet stream at pdf path",
			body:        "not a readable document",
			contentType: "application/octet-stream",
			url:         "https://example.court/files/urteil.PDF",
			method:      methodPDFNone,
			description: "a .pdf path selects the PDF reader",
		},
		{
			name:        "pdf path with query",
			body:        "binary",
			url:         "https://example.court/dl/urteil.pdf?download=1",
			method:      methodPDFNone,
			description: "the query string is ignored",
		},
		{
			name:        "html served at pdf path",
			body:        "<html><body><p>Dokument nicht gefunden</p></body></html>",
			contentType: "text/html",
			url:         "https://example.court/files/urteil.pdf",
			method:      "html",
			description: "an HTML body is still read as HTML",
		},
		{
			name:        "octet stream elsewhere",
			body:        "not a readable document",
			contentType: "application/octet-stream",
			url:         "https://example.court/files/urteil",
			expectError: true,
			description: "without the suffix the body is unsupported",
		},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Extract([]byte(tt.body), tt.contentType, tt.url)
			if tt.expectError {
				if !errors.Is(err, ErrUnsupportedContent) {
					t.Errorf("Expected ErrUnsupportedContent for test %s, got %v", tt.description, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for test %s: %v", tt.description, err)
			}
			if !strings.HasPrefix(res.Method, tt.method) {
				t.Errorf("%s: expected method %s, got %s", tt.description, tt.method, res.Method)
			}
		})
	}
}

func TestExtractUnsupported(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract([]byte{0x89, 0x50, 0x4e, 0x47}, "image/png", "https://x/img.png")
	if !errors.Is(err, ErrUnsupportedContent) {
		t.Errorf("Expected ErrUnsupportedContent, got %v", err)
	}
}

func TestExtractPDFNeverFails(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "garbage with pdf header", body: []byte("%PDF-1.4\nthis is not really a pdf")},
		{name: "empty body", body: []byte{}},
		{name: "truncated", body: buildTextPDF("Das Bundesgericht zieht in Erwägung")[:60]},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Extract(tt.body, "application/pdf", "https://example.court/x.pdf")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if res.Text != "" {
				t.Errorf("Expected empty text, got %q", res.Text)
			}
			if res.Method != methodPDFNone {
				t.Errorf("Expected %s, got %s", methodPDFNone, res.Method)
			}
		})
	}
}

func TestExtractPDFText(t *testing.T) {
	phrase := "Das Bundesgericht zieht in Erwaegung"
	e := NewExtractor()
	res, err := e.Extract(buildTextPDF(phrase), "application/pdf", "https://example.court/x.pdf")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Text == "" {
		t.Logf("no text recovered from minimal PDF (method %s)", res.Method)
		return
	}
	if !strings.Contains(res.Text, "Bundesgericht") {
		t.Errorf("Expected recovered text to contain the phrase, got %q", res.Text)
	}
}

func TestContentStreamText(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n72 720 Td\n(Erste Zeile) Tj\nT*\n[(Zwei) -250 (te)] TJ\n(Dritte \\(Klammer\\)) '\nET")
	got := NormalizeText(contentStreamText(stream))
	want := "Erste Zeile\nZweite\nDritte (Klammer)"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		contentType string
		body        string
		expected    bool
	}{
		{"application/pdf", "", true},
		{"Application/PDF; qs=1", "", true},
		{"application/octet-stream", "%PDF-1.7\n...", true},
		{"text/html", "<html>", false},
	}
	for _, tt := range tests {
		if got := IsPDF(strings.ToLower(tt.contentType), []byte(tt.body)); got != tt.expected {
			t.Errorf("IsPDF(%q, %q) = %v, want %v", tt.contentType, tt.body, got, tt.expected)
		}
	}
}

// buildTextPDF writes a one-page PDF whose content stream shows text.
func buildTextPDF(text string) []byte {
	escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(text)
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + escaped + ") Tj\nET"

	var b strings.Builder
	offsets := make([]int, 6)
	b.WriteString("%PDF-1.4\n")

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R " +
		"/Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")
	offsets[4] = b.Len()
	b.WriteString("4 0 obj\n<< /Length " + strconv.Itoa(len(stream)) + " >>\nstream\n" + stream + "\nendstream\nendobj\n")
	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		off := strconv.Itoa(offsets[i])
		b.WriteString(strings.Repeat("0", 10-len(off)) + off + " 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n" + strconv.Itoa(xref) + "\n%%EOF\n")

	return []byte(b.String())
}
