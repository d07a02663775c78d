// Package mcp implements the tool gateway: a stdio JSON-RPC server that
// advertises external capabilities ("tools/list") and dispatches calls
// ("tools/call"), plus the client used to drive it as a subprocess.
//
// All persistence and sessions are handled ONLY here (boundary); the tools
// themselves remain pure and operate on explicit inputs.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/museworks/museflow/config"
	"github.com/museworks/museflow/provider"
	"github.com/museworks/museflow/session"
	"github.com/museworks/museflow/session/models"
	"github.com/museworks/museflow/tools/embedding"
	srch "github.com/museworks/museflow/tools/search"
	"github.com/museworks/museflow/tools/web_fetch"
	"github.com/museworks/museflow/tools/web_ingest"
	"github.com/museworks/museflow/tools/web_search"
)

// ---------- JSON-RPC skeleton ----------

type rpcReq struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
}
type rpcResp struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   *rpcError              `json:"error,omitempty"`
}
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeResp(w io.Writer, id any, result map[string]interface{}, err error) {
	resp := rpcResp{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
	} else {
		resp.Result = result
	}
	enc := json.NewEncoder(w)
	_ = enc.Encode(resp)
}

// ---------- Tool registry ----------

// ToolDesc describes a single tool, including input schema.
type ToolDesc struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Server holds shared deps (the only state).
type Server struct {
	Store  session.Store
	Embed  embedding.Embedding
	Search srch.Hybrid

	Searchers map[string]web_search.WebSearcher
	Fetcher   web_fetch.WebFetcher

	DefaultTimeout time.Duration
	MaxChars       int

	tools []ToolDesc
}

// NewServer wires dependencies once from config.
func NewServer(cfg *config.Config) (*Server, error) {
	pv, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	emb := embedding.NewEmbedding(pv)

	fetcher, err := web_fetch.NewWebFetcher(web_fetch.ChromedpFetcherType, cfg.Tools.FetchTimeout, cfg.Tools.FetchMaxChars)
	if err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	searchers := map[string]web_search.WebSearcher{}
	if cfg.Tools.SerperAPIKey != "" {
		s, err := web_search.NewWebSearcher(web_search.SerperProvider, cfg.Tools.SerperAPIKey)
		if err != nil {
			return nil, err
		}
		searchers["serper"] = s
	}
	if cfg.Tools.BraveAPIKey != "" {
		s, err := web_search.NewWebSearcher(web_search.BraveProvider, cfg.Tools.BraveAPIKey)
		if err != nil {
			return nil, err
		}
		searchers["brave"] = s
	}

	srv := &Server{
		Store:          session.NewStore(session.InMemoryStore),
		Embed:          *emb,
		Search:         srch.NewHybrid(*emb),
		Searchers:      searchers,
		Fetcher:        fetcher,
		DefaultTimeout: 30 * time.Second,
		MaxChars:       cfg.Tools.FetchMaxChars,
	}
	srv.initTools()
	return srv, nil
}

// initTools defines schemas and descriptions surfaced to clients.
func (srv *Server) initTools() {
	searchSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":   map[string]any{"type": "string"},
			"k":       map[string]any{"type": "integer", "minimum": 1, "maximum": 25},
			"sites":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"recency": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"query"},
	}
	srv.tools = []ToolDesc{
		{
			Name:        "web.search",
			Description: "Search the web for pages relevant to a query.",
			InputSchema: searchSchema,
		},
		{
			Name:        "web.fetch",
			Description: "Fetch and extract readable content from a URL via headless Chrome.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url":       map[string]any{"type": "string"},
					"max_chars": map[string]any{"type": "integer", "minimum": 1000},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        "web.ingest",
			Description: "Chunk, index, and embed documents into a session corpus.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": map[string]any{"type": "string"},
					"docs": map[string]any{"type": "array", "items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"url":          map[string]any{"type": "string"},
							"title":        map[string]any{"type": "string"},
							"text":         map[string]any{"type": "string"},
							"published_at": map[string]any{"type": "string"},
						},
						"required": []string{"text"},
					}},
					"approx_chunk": map[string]any{"type": "integer"},
					"overlap":      map[string]any{"type": "integer"},
				},
				"required": []string{"session_id", "docs"},
			},
		},
		{
			Name:        "session.search",
			Description: "Hybrid search (BM25 + vector) over a session corpus.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": map[string]any{"type": "string"},
					"q":          map[string]any{"type": "string"},
					"k":          map[string]any{"type": "integer", "minimum": 1, "maximum": 50},
				},
				"required": []string{"session_id", "q"},
			},
		},
		{
			Name:        "embedding.embed_many",
			Description: "Get embedding vectors for an array of texts via provider.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"texts": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"texts"},
			},
		},
	}
}

// Tools returns the advertised tool list.
func (srv *Server) Tools() []ToolDesc { return srv.tools }

// CallTool dispatches to handler functions.
func (srv *Server) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "web.search":
		return srv.tWebSearch(ctx, args)
	case "web.fetch":
		return srv.tWebFetch(ctx, args)
	case "web.ingest":
		return srv.tWebIngest(ctx, args)
	case "session.search":
		return srv.tSessionSearch(ctx, args)
	case "embedding.embed_many":
		return srv.tEmbedMany(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// ---------- Tool handlers ----------

// tWebSearch runs the query against every configured search provider and
// returns the first non-empty normalized result list.
func (srv *Server) tWebSearch(ctx context.Context, args map[string]any) (map[string]any, error) {
	q := str(args["query"])
	if q == "" {
		return nil, errors.New("query is required")
	}
	if len(srv.Searchers) == 0 {
		return nil, errors.New("no web search provider configured")
	}
	k := clampInt(asInt(args["k"]), 1, 25)
	sites := asStrSlice(args["sites"])
	recency := asInt(args["recency"])

	var lastErr error
	for _, searcher := range srv.Searchers {
		results, err := searcher.Discover(ctx, q, k, sites, recency)
		if err != nil {
			lastErr = err
			continue
		}
		if len(results) == 0 {
			continue
		}
		out := make([]map[string]any, 0, len(results))
		for _, r := range results {
			out = append(out, map[string]any{"title": r.Title, "url": r.URL, "snippet": r.Snippet})
		}
		return map[string]any{"results": out}, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return map[string]any{"results": []map[string]any{}}, nil
}

// tWebFetch fetches & extracts readable content.
// Input: url (string), max_chars (optional).
func (srv *Server) tWebFetch(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := str(args["url"])
	if url == "" {
		return nil, errors.New("url is required")
	}

	res, err := srv.Fetcher.Exec(ctx, url)
	if err != nil {
		return nil, err
	}
	text := res.Text
	if maxChars := asInt(args["max_chars"]); maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return map[string]any{
		"url":          res.URL,
		"title":        res.Title,
		"byline":       res.Byline,
		"published_at": res.PublishedAt,
		"text":         text,
		"top_image":    res.TopImage,
		"html_hash":    res.HTMLHash,
		"status":       res.Status,
		"render_ms":    res.RenderMS,
	}, nil
}

// tWebIngest resolves a session corpus and ingests docs via the pure ingestor.
func (srv *Server) tWebIngest(ctx context.Context, args map[string]any) (map[string]any, error) {
	sid := str(args["session_id"])
	if sid == "" {
		return nil, errors.New("session_id is required")
	}
	// Resolve (or create) the corpus at the boundary; tools remain pure.
	ttl := 48 * time.Hour
	corp, err := srv.Store.EnsureSession(sid, ttl)
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	rawDocs, ok := args["docs"].([]any)
	if !ok || len(rawDocs) == 0 {
		return nil, errors.New("docs is required (non-empty array)")
	}
	docs := make([]models.DocInput, 0, len(rawDocs))
	for _, v := range rawDocs {
		m, _ := v.(map[string]any)
		docs = append(docs, models.DocInput{
			URL:         str(m["url"]),
			Title:       str(m["title"]),
			Text:        str(m["text"]),
			PublishedAt: str(m["published_at"]),
		})
	}

	approx := asInt(args["approx_chunk"])
	overlap := asInt(args["overlap"])
	ing := web_ingest.NewIngestor(srv.Embed, approx, overlap)

	resp, err := ing.IngestDocs(ctx, corp, docs)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"session_id":  resp.SessionID,
		"chunks":      resp.Chunks,
		"indexed_bm":  resp.IndexedBM,
		"indexed_vec": resp.IndexedVec,
	}, nil
}

// tSessionSearch resolves a session corpus and runs hybrid search.
func (srv *Server) tSessionSearch(ctx context.Context, args map[string]any) (map[string]any, error) {
	sid := str(args["session_id"])
	if sid == "" {
		return nil, errors.New("session_id is required")
	}
	q := str(args["q"])
	if q == "" {
		return nil, errors.New("q is required")
	}
	k := asInt(args["k"])

	corp, err := srv.Store.GetSession(sid)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	hits, err := srv.Search.Search(ctx, corp, q, k)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		out = append(out, map[string]any{
			"doc_id":  h.DocID,
			"title":   h.Title,
			"url":     h.URL,
			"snippet": h.Snippet,
			"score":   h.Score,
		})
	}
	return map[string]any{"hits": out}, nil
}

// tEmbedMany embeds raw texts via provider (pure).
func (srv *Server) tEmbedMany(ctx context.Context, args map[string]any) (map[string]any, error) {
	texts := asStrSlice(args["texts"])
	if len(texts) == 0 {
		return map[string]any{"vectors": [][]float32{}}, nil
	}
	vecs, err := srv.Embed.EmbedMany(ctx, texts)
	if err != nil {
		return nil, err
	}
	return map[string]any{"vectors": vecs}, nil
}

// ---------- helpers ----------

func str(v any) string { s, _ := v.(string); return s }
func asInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case json.Number:
		i, _ := x.Int64()
		return int(i)
	default:
		return 0
	}
}
func asStrSlice(v any) []string {
	if v == nil {
		return nil
	}
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ---------- stdio loop ----------

// Serve runs a simple stdio JSON-RPC loop.
func (srv *Server) Serve(in io.Reader, out io.Writer) error {
	rd := bufio.NewReader(in)
	dec := json.NewDecoder(rd)
	for {
		var req rpcReq
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode request: %w", err)
		}

		switch req.Method {
		case "tools/list":
			writeResp(out, req.ID, map[string]any{"tools": srv.tools}, nil)

		case "tools/call":
			name := ""
			args := map[string]any{}
			if v, ok := req.Params["name"].(string); ok {
				name = v
			}
			if m, ok := req.Params["arguments"].(map[string]any); ok {
				args = m
			}
			// Per-call timeout to avoid stuck handlers
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			res, err := srv.CallTool(ctx, name, args)
			cancel()
			writeResp(out, req.ID, res, err)

		default:
			writeResp(out, req.ID, nil, fmt.Errorf("unknown method: %s", req.Method))
		}
	}
}
