package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/openai"
	"github.com/JakeFAU/tgc-rag/internal/rag"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

const (
	defaultChunks = 5
	minChunks     = 1
	maxChunks     = 20
	snippetLength = 300
)

type askRequest struct {
	Query         string                      `json:"query"`
	NChunks       *int                        `json:"n_chunks"`
	Where         json.RawMessage             `json:"where"`
	WhereDocument *vectorstore.DocumentFilter `json:"where_document"`
}

type source struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	SourceURL string `json:"source_url"`
	Snippet   string `json:"snippet"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []source `json:"sources"`
}

// ClampChunks applies the default and the [1, 20] bounds to n_chunks.
func ClampChunks(n *int) int {
	if n == nil {
		return defaultChunks
	}
	return max(minChunks, min(maxChunks, *n))
}

// Snippet returns the first 300 characters of text, with "..." appended when
// anything was cut.
func Snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetLength {
		return text
	}
	return string([]rune(text)[:snippetLength]) + "..."
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusUnprocessableEntity, "query cannot be empty")
		return
	}
	if s.retriever == nil || s.answerer == nil {
		status, msg := errorStatus(openai.ErrMissingAPIKey)
		writeError(w, status, msg)
		return
	}

	where, err := decodeWhere(req.Where)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unsupported where filter: values must be strings matched exactly")
		return
	}

	opts := rag.Options{N: ClampChunks(req.NChunks), Where: where}
	if req.WhereDocument != nil {
		opts.WhereDocument = *req.WhereDocument
	}
	log := s.logger.With(zap.String("request_id", RequestIDFromContext(r.Context())))

	chunks, err := s.retriever.Retrieve(r.Context(), query, opts)
	if err == nil {
		var answer string
		answer, err = s.answerer.Answer(r.Context(), query, chunks)
		if err == nil {
			log.Info("question answered", zap.Int("n_chunks", opts.N), zap.Int("sources", len(chunks)))
			writeJSON(w, http.StatusOK, askResponse{Answer: answer, Sources: toSources(chunks)})
			return
		}
	}
	status, msg := errorStatus(err)
	log.Warn("ask failed", zap.Int("status", status), zap.Error(err))
	writeError(w, status, msg)
}

// decodeWhere accepts only field-to-string equality filters.
func decodeWhere(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var where map[string]string
	if err := json.Unmarshal(raw, &where); err != nil {
		return nil, err
	}
	return where, nil
}

func toSources(chunks []rag.RetrievedChunk) []source {
	out := make([]source, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, source{
			Title:     c.Title,
			Author:    c.Author,
			SourceURL: c.SourceURL,
			Snippet:   Snippet(c.Text),
		})
	}
	return out
}
