package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// ContentStore exposes the resource tables as an index data accessor,
// plus the write operations tooling and tests need to populate them.
type ContentStore struct {
	db       *Database
	typeTree repository.ResourceTypeTree
	logger   *logging.Logger
}

// NewContentStore creates a content store over an open database. The
// type tree resolves property definitions when rows are decoded.
func NewContentStore(db *Database, typeTree repository.ResourceTypeTree) *ContentStore {
	return &ContentStore{
		db:       db,
		typeTree: typeTree,
		logger:   db.logger.WithComponent("content-store"),
	}
}

var _ repository.IndexDataAccessor = (*ContentStore)(nil)

// OrderedPropertySets implements repository.IndexDataAccessor.
func (s *ContentStore) OrderedPropertySets(ctx context.Context) (repository.PropertySetIterator, error) {
	return s.newIterator(ctx, "")
}

// PropertySetsByPrefix implements repository.IndexDataAccessor.
func (s *ContentStore) PropertySetsByPrefix(ctx context.Context, prefix repository.Path) (repository.PropertySetIterator, error) {
	if _, err := repository.ParsePath(string(prefix)); err != nil {
		return nil, err
	}
	return s.newIterator(ctx, prefix)
}

// PropertySet implements repository.IndexDataAccessor.
func (s *ContentStore) PropertySet(ctx context.Context, uri repository.Path) (repository.PropertySet, *repository.ACL, error) {
	var (
		id            int64
		resourceType  string
		inheritedFrom int64
	)
	err := s.db.pool.QueryRow(ctx,
		`SELECT id, resource_type, acl_inherited_from FROM resources WHERE uri = $1`,
		string(uri)).Scan(&id, &resourceType, &inheritedFrom)
	if err == pgx.ErrNoRows {
		return nil, nil, repository.NewNotFoundError(uri)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load resource %s: %w", uri, err)
	}

	sets, acls, err := s.loadDetails(ctx, []resourceRow{{id: id, uri: uri, resourceType: resourceType, inheritedFrom: inheritedFrom}})
	if err != nil {
		return nil, nil, err
	}
	return sets[id], acls[id], nil
}

// Count implements repository.IndexDataAccessor.
func (s *ContentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.pool.QueryRow(ctx, `SELECT count(*) FROM resources`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return n, nil
}

// SaveResource upserts a resource, its properties and its ACL in one
// transaction, returning the assigned resource ID.
func (s *ContentStore) SaveResource(ctx context.Context, ps repository.PropertySet, acl *repository.ACL) (int64, error) {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inheritedFrom := repository.AclNotInherited
	if acl != nil {
		inheritedFrom = acl.InheritedFrom
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO resources (uri, resource_type, acl_inherited_from)
		VALUES ($1, $2, $3)
		ON CONFLICT (uri) DO UPDATE
		SET resource_type = EXCLUDED.resource_type,
		    acl_inherited_from = EXCLUDED.acl_inherited_from,
		    updated_at = now()
		RETURNING id`,
		string(ps.URI()), ps.ResourceType(), inheritedFrom).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert resource %s: %w", ps.URI(), err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM properties WHERE resource_id = $1`, id); err != nil {
		return 0, fmt.Errorf("clear properties for %s: %w", ps.URI(), err)
	}
	for _, prop := range ps.Properties() {
		joined, err := encodeValues(prop)
		if err != nil {
			return 0, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO properties (resource_id, namespace, name, value)
			VALUES ($1, $2, $3, $4)`,
			id, prop.Namespace, prop.Name, joined)
		if err != nil {
			return 0, fmt.Errorf("insert property %s for %s: %w", prop.ID(), ps.URI(), err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM acl_entries WHERE resource_id = $1`, id); err != nil {
		return 0, fmt.Errorf("clear acl for %s: %w", ps.URI(), err)
	}
	if acl != nil {
		for _, priv := range acl.Privileges() {
			for _, p := range acl.Principals(priv) {
				_, err = tx.Exec(ctx, `
					INSERT INTO acl_entries (resource_id, privilege, principal, is_group)
					VALUES ($1, $2, $3, $4)`,
					id, string(priv), p.Name, p.Type == repository.PrincipalTypeGroup)
				if err != nil {
					return 0, fmt.Errorf("insert acl entry for %s: %w", ps.URI(), err)
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit save for %s: %w", ps.URI(), err)
	}
	return id, nil
}

// DeleteResource removes a single resource and its dependent rows.
func (s *ContentStore) DeleteResource(ctx context.Context, uri repository.Path) error {
	tag, err := s.db.pool.Exec(ctx, `DELETE FROM resources WHERE uri = $1`, string(uri))
	if err != nil {
		return fmt.Errorf("delete resource %s: %w", uri, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.NewNotFoundError(uri)
	}
	return nil
}

// DeleteTree removes a resource and its whole subtree.
func (s *ContentStore) DeleteTree(ctx context.Context, prefix repository.Path) error {
	_, err := s.db.pool.Exec(ctx,
		`DELETE FROM resources WHERE uri = $1 OR uri LIKE $2`,
		string(prefix), subtreePattern(prefix))
	if err != nil {
		return fmt.Errorf("delete tree %s: %w", prefix, err)
	}
	return nil
}

// resourceRow is one decoded row of the resources table.
type resourceRow struct {
	id            int64
	uri           repository.Path
	resourceType  string
	inheritedFrom int64
}

// loadDetails fetches properties and ACL entries for a batch of
// resources and assembles complete property sets.
func (s *ContentStore) loadDetails(ctx context.Context, batch []resourceRow) (map[int64]*repository.MemPropertySet, map[int64]*repository.ACL, error) {
	sets := make(map[int64]*repository.MemPropertySet, len(batch))
	acls := make(map[int64]*repository.ACL, len(batch))
	ids := make([]int64, 0, len(batch))
	for _, r := range batch {
		ids = append(ids, r.id)
		sets[r.id] = repository.NewPropertySet(r.uri, r.id, r.resourceType)
		acl := repository.NewACL()
		acl.InheritedFrom = r.inheritedFrom
		acls[r.id] = acl
	}

	rows, err := s.db.pool.Query(ctx,
		`SELECT resource_id, namespace, name, value FROM properties WHERE resource_id = ANY($1)`, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load properties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			resourceID int64
			namespace  string
			name       string
			value      string
		)
		if err := rows.Scan(&resourceID, &namespace, &name, &value); err != nil {
			return nil, nil, fmt.Errorf("scan property row: %w", err)
		}
		def, ok := s.typeTree.PropertyDefinition(namespace, name)
		if !ok {
			s.logger.Debugf("stored property %s:%s has no definition, skipped", namespace, name)
			continue
		}
		values, err := parseValues(def, value)
		if err != nil {
			s.logger.Warnf("undecodable stored property on resource %d: %v", resourceID, err)
			continue
		}
		sets[resourceID].AddProperty(repository.Property{
			Namespace: namespace,
			Name:      name,
			Type:      def.Type,
			Multi:     def.Multiple,
			Values:    values,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate property rows: %w", err)
	}

	aclRows, err := s.db.pool.Query(ctx,
		`SELECT resource_id, privilege, principal, is_group FROM acl_entries WHERE resource_id = ANY($1)`, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load acl entries: %w", err)
	}
	defer aclRows.Close()
	for aclRows.Next() {
		var (
			resourceID int64
			privilege  string
			principal  string
			isGroup    bool
		)
		if err := aclRows.Scan(&resourceID, &privilege, &principal, &isGroup); err != nil {
			return nil, nil, fmt.Errorf("scan acl row: %w", err)
		}
		acls[resourceID].AddEntry(repository.Privilege(privilege), repository.PrincipalFromStored(principal, isGroup))
	}
	if err := aclRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate acl rows: %w", err)
	}

	return sets, acls, nil
}

// batchIterator pages through resources in byte-wise URI order using
// keyset pagination, loading properties and ACLs one batch at a time.
type batchIterator struct {
	ctx    context.Context
	store  *ContentStore
	prefix repository.Path

	lastURI string
	buffer  []*repository.PropertySetIteration
	pos     int
	done    bool
	closed  bool
}

func (s *ContentStore) newIterator(ctx context.Context, prefix repository.Path) (repository.PropertySetIterator, error) {
	return &batchIterator{ctx: ctx, store: s, prefix: prefix}, nil
}

// Next implements repository.PropertySetIterator.
func (it *batchIterator) Next() (*repository.PropertySetIteration, error) {
	if it.closed {
		return nil, fmt.Errorf("iterator is closed")
	}
	if it.pos >= len(it.buffer) {
		if it.done {
			return nil, nil
		}
		if err := it.fetchBatch(); err != nil {
			return nil, err
		}
		if len(it.buffer) == 0 {
			return nil, nil
		}
	}
	item := it.buffer[it.pos]
	it.pos++
	return item, nil
}

// Close implements repository.PropertySetIterator.
func (it *batchIterator) Close() error {
	it.closed = true
	it.buffer = nil
	return nil
}

func (it *batchIterator) fetchBatch() error {
	fetchSize := it.store.db.config.FetchSize

	query := `
		SELECT id, uri, resource_type, acl_inherited_from FROM resources
		WHERE uri COLLATE "C" > $1`
	args := []interface{}{it.lastURI}
	if it.prefix != "" {
		query += ` AND (uri = $2 OR uri LIKE $3)`
		args = append(args, string(it.prefix), subtreePattern(it.prefix))
	}
	query += fmt.Sprintf(` ORDER BY uri COLLATE "C" LIMIT %d`, fetchSize)

	rows, err := it.store.db.pool.Query(it.ctx, query, args...)
	if err != nil {
		return fmt.Errorf("fetch resource batch: %w", err)
	}
	defer rows.Close()

	var batch []resourceRow
	for rows.Next() {
		var r resourceRow
		var uri string
		if err := rows.Scan(&r.id, &uri, &r.resourceType, &r.inheritedFrom); err != nil {
			return fmt.Errorf("scan resource row: %w", err)
		}
		r.uri = repository.Path(uri)
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate resource rows: %w", err)
	}

	if len(batch) < fetchSize {
		it.done = true
	}
	it.buffer = nil
	it.pos = 0
	if len(batch) == 0 {
		return nil
	}
	it.lastURI = string(batch[len(batch)-1].uri)

	sets, acls, err := it.store.loadDetails(it.ctx, batch)
	if err != nil {
		return err
	}
	it.buffer = make([]*repository.PropertySetIteration, 0, len(batch))
	for _, r := range batch {
		it.buffer = append(it.buffer, &repository.PropertySetIteration{
			Set: sets[r.id],
			ACL: acls[r.id],
		})
	}
	return nil
}

// subtreePattern builds the LIKE pattern matching strict descendants of
// prefix, escaping LIKE metacharacters in the URI itself.
func subtreePattern(prefix repository.Path) string {
	base := string(prefix)
	if base == "/" {
		base = ""
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(base)
	return escaped + "/%"
}
