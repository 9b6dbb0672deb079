package handler

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/model"
)

// FeedsHandler は読み取り専用のJSON/Atomフィードを配信するHTTPハンドラー。
// フィードは常に公開であり、匿名と認証済みで同一のデータを返す。
type FeedsHandler struct {
	collections CollectionServiceInterface
	movies      MovieServiceInterface
	baseURL     string
}

// NewFeedsHandler はFeedsHandlerを生成する。
func NewFeedsHandler(collections CollectionServiceInterface, movies MovieServiceInterface, baseURL string) *FeedsHandler {
	return &FeedsHandler{
		collections: collections,
		movies:      movies,
		baseURL:     baseURL,
	}
}

// feedCollection はフィードに含めるコレクションの形。
type feedCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// feedMovie はフィードに含める映画の形。
type feedMovie struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Director    string `json:"director"`
	Genre       string `json:"genre"`
	Year        string `json:"year"`
	Description string `json:"description"`
}

func toFeedCollection(c *model.Collection) feedCollection {
	return feedCollection{ID: c.ID, Name: c.Name}
}

func toFeedMovie(m *model.Movie) feedMovie {
	return feedMovie{
		ID:          m.ID,
		Name:        m.Name,
		Director:    m.Director,
		Genre:       m.Genre,
		Year:        m.Year,
		Description: m.Description,
	}
}

// CollectionsJSON はコレクション一覧のJSONフィードを返す。
// GET /collections/json
func (h *FeedsHandler) CollectionsJSON(w http.ResponseWriter, r *http.Request) {
	collections, err := h.collections.List(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	list := make([]feedCollection, 0, len(collections))
	for _, c := range collections {
		list = append(list, toFeedCollection(c))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"Collections": list,
	})
}

// MoviesJSON はコレクション配下の映画一覧のJSONフィードを返す。
// GET /collections/{id}/movies/json
func (h *FeedsHandler) MoviesJSON(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "id")

	movies, err := h.movies.ListByCollection(r.Context(), collectionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	list := make([]feedMovie, 0, len(movies))
	for _, m := range movies {
		list = append(list, toFeedMovie(m))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"Movies": list,
	})
}

// MovieJSON は単一映画のJSONフィードを返す。親コレクションの情報を含む。
// GET /collections/{id}/movies/{mid}/json
func (h *FeedsHandler) MovieJSON(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "id")
	movieID := chi.URLParam(r, "mid")

	c, err := h.collections.Get(r.Context(), collectionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	m, err := h.movies.Get(r.Context(), movieID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"movie":      toFeedMovie(m),
		"collection": toFeedCollection(c),
	})
}

// --- Atom 1.0 ---

const atomContentType = "application/atom+xml; charset=utf-8"

// atomFeed はAtom 1.0のfeed要素。
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

// atomLink はAtomのlink要素。
type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

// atomEntry はAtomのentry要素。
type atomEntry struct {
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Link    atomLink    `xml:"link"`
	Summary *atomText   `xml:"summary,omitempty"`
	Author  *atomPerson `xml:"author,omitempty"`
}

// atomText はtype属性付きのテキスト要素。
type atomText struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

// atomPerson はAtomのauthor要素。
type atomPerson struct {
	Name string `xml:"name"`
}

func atomTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// latestUpdate は各要素の更新時刻の最大値を返す。要素がない場合は現在時刻。
func latestUpdate(times []time.Time) time.Time {
	if len(times) == 0 {
		return time.Now()
	}
	latest := times[0]
	for _, t := range times[1:] {
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}

func (h *FeedsHandler) writeAtom(w http.ResponseWriter, feed *atomFeed) {
	w.Header().Set("Content-Type", atomContentType)
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	enc.Encode(feed)
}

// movieSummary は映画のメタデータをsummaryテキストに整形する。
// ジャンルと監督は別項目として出力される。
func movieSummary(m *model.Movie) string {
	return fmt.Sprintf("director: %s / genre: %s / year: %s", m.Director, m.Genre, m.Year)
}

// CollectionsAtom はコレクション一覧のAtomフィードを返す。
// GET /collections/atom
func (h *FeedsHandler) CollectionsAtom(w http.ResponseWriter, r *http.Request) {
	collections, err := h.collections.List(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	entries := make([]atomEntry, 0, len(collections))
	times := make([]time.Time, 0, len(collections))
	for _, c := range collections {
		entries = append(entries, atomEntry{
			Title:   c.Name,
			ID:      "urn:uuid:" + c.ID,
			Updated: atomTime(c.UpdatedAt),
			Link:    atomLink{Href: fmt.Sprintf("%s/collections/%s/movies/json", h.baseURL, c.ID)},
		})
		times = append(times, c.UpdatedAt)
	}

	h.writeAtom(w, &atomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   "Collections",
		ID:      h.baseURL + "/collections/atom",
		Updated: atomTime(latestUpdate(times)),
		Links: []atomLink{
			{Href: h.baseURL + "/collections/atom", Rel: "self"},
		},
		Entries: entries,
	})
}

// MoviesAtom はコレクション配下の映画一覧のAtomフィードを返す。
// GET /collections/{id}/movies/atom
func (h *FeedsHandler) MoviesAtom(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "id")

	c, err := h.collections.Get(r.Context(), collectionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	movies, err := h.movies.ListByCollection(r.Context(), collectionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	entries := make([]atomEntry, 0, len(movies))
	times := make([]time.Time, 0, len(movies))
	for _, m := range movies {
		entries = append(entries, atomEntry{
			Title:   m.Name,
			ID:      "urn:uuid:" + m.ID,
			Updated: atomTime(m.UpdatedAt),
			Link:    atomLink{Href: fmt.Sprintf("%s/collections/%s/movies/%s/json", h.baseURL, collectionID, m.ID)},
			Summary: &atomText{Type: "text", Body: movieSummary(m)},
			Author:  &atomPerson{Name: m.Director},
		})
		times = append(times, m.UpdatedAt)
	}

	self := fmt.Sprintf("%s/collections/%s/movies/atom", h.baseURL, collectionID)
	h.writeAtom(w, &atomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   c.Name,
		ID:      self,
		Updated: atomTime(latestUpdate(times)),
		Links: []atomLink{
			{Href: self, Rel: "self"},
		},
		Entries: entries,
	})
}

// MovieAtom は単一映画のAtomフィードを返す。
// GET /collections/{id}/movies/{mid}/atom
func (h *FeedsHandler) MovieAtom(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "id")
	movieID := chi.URLParam(r, "mid")

	c, err := h.collections.Get(r.Context(), collectionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	m, err := h.movies.Get(r.Context(), movieID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	self := fmt.Sprintf("%s/collections/%s/movies/%s/atom", h.baseURL, collectionID, movieID)
	h.writeAtom(w, &atomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   fmt.Sprintf("%s - %s", c.Name, m.Name),
		ID:      self,
		Updated: atomTime(m.UpdatedAt),
		Links: []atomLink{
			{Href: self, Rel: "self"},
		},
		Entries: []atomEntry{
			{
				Title:   m.Name,
				ID:      "urn:uuid:" + m.ID,
				Updated: atomTime(m.UpdatedAt),
				Link:    atomLink{Href: fmt.Sprintf("%s/collections/%s/movies/%s/json", h.baseURL, collectionID, m.ID)},
				Summary: &atomText{Type: "text", Body: movieSummary(m)},
				Author:  &atomPerson{Name: m.Director},
			},
		},
	})
}
