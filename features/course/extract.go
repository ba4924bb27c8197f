package course

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"lessonforge/internal/text"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("no extractable text found")
	ErrFetchFailed     = errors.New("failed to fetch url")
)

// Extractor turns uploaded documents and web pages into plain study text.
type Extractor struct {
	client   *http.Client
	maxBytes int64
}

func NewExtractor(client *http.Client, maxBytes int64) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{client: client, maxBytes: maxBytes}
}

// FromFile extracts the text of an uploaded file. The returned title is the
// document's own title where it has one, else the file name.
func (e *Extractor) FromFile(name string, r io.Reader) (string, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return "", "", err
	}
	if int64(len(data)) > e.maxBytes {
		return "", "", fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidCourse, e.maxBytes)
	}

	title := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	var content string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown":
		content = string(data)
	case ".pdf":
		content, err = pdfText(data)
		if err != nil {
			return "", "", err
		}
	case ".html", ".htm":
		var pageTitle string
		pageTitle, content, err = htmlText(bytes.NewReader(data))
		if err != nil {
			return "", "", err
		}
		if pageTitle != "" {
			title = pageTitle
		}
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(name))
	}

	if strings.TrimSpace(content) == "" {
		return "", "", ErrEmptyDocument
	}
	return content, title, nil
}

// FromURL downloads a page and extracts its readable text.
func (e *Extractor) FromURL(ctx context.Context, rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", fmt.Errorf("%w: invalid url %q", ErrInvalidCourse, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "text/html,text/plain")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, e.maxBytes)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", "", ErrEmptyDocument
		}
		return string(data), u.Host + u.Path, nil
	}

	title, content, err := htmlText(body)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", "", ErrEmptyDocument
	}
	if title == "" {
		title = u.Host + u.Path
	}
	return content, title, nil
}

// htmlText prefers the page's main article over the whole body.
func htmlText(r io.Reader) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	root := doc.Find("article, main").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	html, err := goquery.OuterHtml(root)
	if err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	return title, text.StripHTML(html), nil
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		// Page breaks become paragraph breaks.
		b.WriteString("\n\n")
	}
	return b.String(), nil
}
