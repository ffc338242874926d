package ingest

// Source is one document ready to be embedded.
type Source struct {
	Content string
	Meta    map[string]any
}

// Name is the filename recorded in meta, if any.
func (s Source) Name() string {
	if v, ok := s.Meta["filename"].(string); ok {
		return v
	}
	return ""
}

func cloneMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
