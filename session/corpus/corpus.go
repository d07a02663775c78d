package corpus

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/museworks/museflow/session/models"
	"github.com/museworks/museflow/tools/embedding"
)

// Corpus is an in-memory per-run document index: BM25 via bleve plus
// brute-force vectors for small corpora.
type Corpus struct {
	id        string
	expiresAt time.Time
	bleve     bleve.Index
	meta      map[string]models.DocChunk
	vectors   []embedding.EmbedVec
	mu        sync.RWMutex
}

const rrfK = 60 // reciprocal-rank-fusion constant

func New(id string, ttl time.Duration) (*Corpus, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Corpus{
		id:        id,
		expiresAt: time.Now().Add(ttl),
		bleve:     index,
		meta:      make(map[string]models.DocChunk),
		vectors:   []embedding.EmbedVec{},
	}, nil
}

func (c *Corpus) ID() string               { return c.id }
func (c *Corpus) Expire(ttl time.Duration) { c.expiresAt = time.Now().Add(ttl) }
func (c *Corpus) ExpiresAt() time.Time     { return c.expiresAt }

func (c *Corpus) AddChunk(chunk models.DocChunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta[chunk.DocID] = chunk
	return c.bleve.Index(chunk.DocID, chunk)
}

func (c *Corpus) Chunks() []models.DocChunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.DocChunk, 0, len(c.meta))
	for _, ch := range c.meta {
		out = append(out, ch)
	}
	return out
}

func (c *Corpus) Index(id string, data interface{}) error {
	return c.bleve.Index(id, data)
}

func (c *Corpus) SetVector(docID string, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors = append(c.vectors, embedding.EmbedVec{DocID: docID, Vec: v})
}

func (c *Corpus) GetVectors() []embedding.EmbedVec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vectors
}

func (c *Corpus) Bm25Search(q string, k int) ([]models.SearchHit, error) {
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	searchReq.Highlight = bleve.NewHighlightWithStyle("html")
	res, err := c.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.SearchHit
	for i, hit := range res.Hits {
		doc := c.meta[hit.ID]
		out = append(out, models.SearchHit{
			DocID: hit.ID, URL: doc.URL, Title: doc.Title,
			Snippet: snippet(doc.Text),
			Score:   hit.Score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (c *Corpus) VectorSearch(q []float32, k int) []models.SearchHit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	type scored struct {
		id    string
		score float64
	}
	var scoreds []scored
	for _, v := range c.vectors {
		s := cosine(q, v.Vec)
		scoreds = append(scoreds, scored{id: v.DocID, score: s})
	}
	sort.Slice(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })
	var out []models.SearchHit
	for i, sc := range scoreds {
		doc := c.meta[sc.id]
		out = append(out, models.SearchHit{
			DocID: sc.id, URL: doc.URL, Title: doc.Title,
			Snippet: snippet(doc.Text), Score: sc.score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out
}

func (c *Corpus) FuseRRF(a, b []models.SearchHit, k int) []models.SearchHit {
	type agg struct {
		item  models.SearchHit
		score float64
	}
	m := map[string]*agg{}
	add := func(list []models.SearchHit) {
		for _, h := range list {
			x, ok := m[h.DocID]
			if !ok {
				m[h.DocID] = &agg{item: h}
				x = m[h.DocID]
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)
	var items []struct {
		models.SearchHit
		fused float64
	}
	for _, v := range m {
		items = append(items, struct {
			models.SearchHit
			fused float64
		}{v.item, v.score})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].fused > items[j].fused })
	n := k
	if len(items) < n {
		n = len(items)
	}
	out := make([]models.SearchHit, 0, n)
	for i := 0; i < n; i++ {
		x := items[i]
		x.SearchHit.Score = x.fused
		x.SearchHit.Rank = i + 1
		out = append(out, x.SearchHit)
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func snippet(s string) string {
	if len(s) <= 300 {
		return s
	}
	return s[:300] + "..."
}
