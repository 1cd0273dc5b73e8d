package index

import (
	"context"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	bindex "github.com/blevesearch/bleve_index_api"

	"github.com/TheEntropyCollective/propindex/pkg/index/mapping"
	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
	"github.com/TheEntropyCollective/propindex/pkg/search"
)

// QueryError is a search execution failure: a query the engine rejected
// or an engine-level fault during execution.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("query execution: %v", e.Err) }

func (e *QueryError) Unwrap() error { return e.Err }

// SearcherOptions configures a searcher.
type SearcherOptions struct {
	Manager    *Manager
	TypeTree   repository.ResourceTypeTree
	Collation  *mapping.Collation
	Authorizer ResultAuthorizer

	// MaxAllowedHitsPerQuery caps cursor+maxResults regardless of what
	// the request asks for.
	MaxAllowedHitsPerQuery int

	CacheEnabled bool
	CacheSize    int
	CacheTTL     time.Duration

	Logger *logging.Logger
}

// Searcher executes abstract search requests against the active index
// instance, applies result authorization and materializes property
// sets lazily from stored fields.
type Searcher struct {
	manager        *Manager
	factory        *QueryBuilderFactory
	typeTree       repository.ResourceTypeTree
	authorizer     ResultAuthorizer
	cache          *ResultCache
	maxAllowedHits int
	logger         *logging.Logger
}

// NewSearcher creates a searcher.
func NewSearcher(opts SearcherOptions) (*Searcher, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("searcher requires an index manager")
	}
	if opts.TypeTree == nil {
		return nil, fmt.Errorf("searcher requires a resource type tree")
	}
	if opts.MaxAllowedHitsPerQuery <= 0 {
		opts.MaxAllowedHitsPerQuery = 50000
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	var cache *ResultCache
	if opts.CacheEnabled {
		if opts.CacheSize <= 0 {
			opts.CacheSize = 256
		}
		if opts.CacheTTL <= 0 {
			opts.CacheTTL = time.Minute
		}
		cache = NewResultCache(opts.CacheSize, opts.CacheTTL)
	}

	logger := opts.Logger.WithComponent("searcher")
	if opts.Authorizer == nil {
		logger.Warnf("no result authorizer configured; results are served unfiltered")
	}

	return &Searcher{
		manager:        opts.Manager,
		factory:        NewQueryBuilderFactory(opts.TypeTree, opts.Collation, opts.Logger),
		typeTree:       opts.TypeTree,
		authorizer:     opts.Authorizer,
		cache:          cache,
		maxAllowedHits: opts.MaxAllowedHitsPerQuery,
		logger:         logger,
	}, nil
}

// Search executes one request. The returned set holds at most
// MaxResults property sets starting at Cursor, in the requested order,
// with unauthorized hits filtered out after engine execution. TotalHits
// reflects the engine's pre-authorization total.
func (s *Searcher) Search(ctx context.Context, req search.Request) (*search.ResultSet, error) {
	if req.Query == nil {
		return nil, &QueryError{Err: fmt.Errorf("request has no query")}
	}
	if req.Cursor < 0 {
		return nil, &QueryError{Err: fmt.Errorf("negative cursor %d", req.Cursor)}
	}
	if req.MaxResults < 0 {
		return nil, &QueryError{Err: fmt.Errorf("negative max results %d", req.MaxResults)}
	}

	generation := s.manager.Generation()
	var key string
	if s.cache != nil {
		key = cacheKey(req, generation)
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	// The hit ceiling bounds the whole window, not just the page: a
	// cursor beyond the ceiling yields an empty page.
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = s.maxAllowedHits
	}
	upper := req.Cursor + maxResults
	if upper > s.maxAllowedHits {
		upper = s.maxAllowedHits
	}
	size := upper - req.Cursor
	if size < 0 {
		size = 0
	}

	active := s.manager.Active()
	engineQuery, err := s.factory.BuildQuery(req.Query, active)
	if err != nil {
		return nil, err
	}

	searchReq := bleve.NewSearchRequestOptions(engineQuery, size, req.Cursor, false)
	searchReq.SortBy(sortOrder(req.Sorting, s.typeTree))

	res, err := s.manager.Alias().SearchInContext(ctx, searchReq)
	if err != nil {
		return nil, &QueryError{Err: err}
	}

	results, err := s.collectResults(active, res, req)
	if err != nil {
		return nil, err
	}

	rs := search.NewResultSet(results, int(res.Total))
	if s.cache != nil {
		s.cache.Put(key, rs)
	}
	return rs, nil
}

// collectResults loads each hit's document, authorizes it against the
// caller's token and materializes the selected properties.
func (s *Searcher) collectResults(active *PropertySetIndex, res *bleve.SearchResult, req search.Request) ([]repository.PropertySet, error) {
	reader, err := active.reader()
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer reader.Close()

	results := make([]repository.PropertySet, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc, err := reader.Document(hit.ID)
		if err != nil {
			return nil, &QueryError{Err: fmt.Errorf("load hit %s: %w", hit.ID, err)}
		}
		if doc == nil {
			// The document was deleted between search and load.
			s.logger.Debugf("hit %s vanished before load, skipped", hit.ID)
			continue
		}

		if !s.authorizeHit(active, hit.ID, doc, req.Token) {
			continue
		}

		ps, err := active.Mapper().FromDocument(doc, req.Select)
		if err != nil {
			s.logger.Warnf("unmappable hit %s skipped: %v", hit.ID, err)
			continue
		}
		results = append(results, ps)
	}
	return results, nil
}

// authorizeHit applies post-search result authorization. A document
// with no stored read aggregate cannot be filtered; it is surfaced and
// the anomaly logged rather than silently hiding the resource.
func (s *Searcher) authorizeHit(active *PropertySetIndex, id string, doc bindex.Document, token string) bool {
	if s.authorizer == nil {
		return true
	}
	aggregate, _ := active.Mapper().SecurityInfo(doc)
	if len(aggregate) == 0 {
		s.logger.Warnf("hit %s has no read aggregate, surfacing unfiltered", id)
		return true
	}
	return s.authorizer.Authorize(token, aggregate)
}

// sortOrder maps the abstract sort specification to engine sort
// strings. String-typed single-valued properties order by their
// collation sort field; everything else orders by the encoded value
// terms, whose lexicographic order is the value order.
func sortOrder(sorting search.Sorting, typeTree repository.ResourceTypeTree) []string {
	if len(sorting) == 0 {
		return []string{mapping.FieldURISort}
	}
	order := make([]string, 0, len(sorting))
	for _, sf := range sorting {
		var field string
		switch sf.Kind {
		case search.SortByURI:
			field = mapping.FieldURISort
		case search.SortByName:
			field = mapping.FieldNameSort
		default:
			field = propertySortField(sf.Property, typeTree)
		}
		if sf.Direction == search.Descending {
			field = "-" + field
		}
		order = append(order, field)
	}
	return order
}

// propertySortField picks the sortable field of a property.
func propertySortField(id repository.PropertyID, typeTree repository.ResourceTypeTree) string {
	def, ok := typeTree.PropertyDefinition(id.Namespace, id.Name)
	if ok && !def.Multiple && (def.Type == repository.TypeString || def.Type == repository.TypeHTML) {
		return mapping.PropertyFieldName(id, mapping.KindPropertySort, "")
	}
	return mapping.PropertyFieldName(id, mapping.KindProperty, "")
}
