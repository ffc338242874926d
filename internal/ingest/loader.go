package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"ragbot/internal/domain"
)

var fileTypes = map[string]string{
	".txt":  "text",
	".md":   "text",
	".json": "json",
	".html": "html",
	".htm":  "html",
	".pdf":  "pdf",
	".docx": "docx",
}

// LoadDirectory reads every supported file under root in lexical order.
// Files that cannot be used are reported in the returned errors and skipped.
// A missing root is created and yields no sources.
func LoadDirectory(ctx context.Context, root string) ([]Source, []error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, []error{fmt.Errorf("create documents directory: %w", err)}
		}
		return nil, nil
	}

	var (
		sources []Source
		skipped []error
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			skipped = append(skipped, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		fileType, ok := fileTypes[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		content, err := readFile(path, fileType)
		if err != nil {
			skipped = append(skipped, domain.NewValidationError(d.Name(), "%v", err))
			return nil
		}
		if strings.TrimSpace(content) == "" {
			skipped = append(skipped, domain.NewValidationError(d.Name(), "no text content"))
			return nil
		}
		sources = append(sources, Source{
			Content: content,
			Meta: map[string]any{
				"filename":  d.Name(),
				"filepath":  path,
				"file_type": fileType,
				"source":    "local",
			},
		})
		return nil
	})
	if err != nil {
		skipped = append(skipped, err)
	}
	return sources, skipped
}

func readFile(path, fileType string) (string, error) {
	switch fileType {
	case "pdf", "docx":
		return "", fmt.Errorf("%s files are not supported; convert to text first", fileType)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch fileType {
	case "json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return "", fmt.Errorf("invalid json: %w", err)
		}
		return buf.String(), nil
	case "html":
		return extractHTML(data)
	}
	return string(data), nil
}

// extractHTML returns the visible text of an HTML document, one line per
// non-empty text node.
func extractHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				lines = append(lines, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(lines, "\n"), nil
}
