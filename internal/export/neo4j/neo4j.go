// Package neo4j loads a finished code graph into a Neo4j database,
// grounded in scarbo87-go-callgraph-neo4j's loader.go: batched UNWIND
// MERGE queries, one per node kind and then one per edge label, run through
// neo4j.ExecuteQuery rather than a manually managed session.
package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"cxref/pkg/cgraph"
)

var allKinds = []cgraph.Kind{
	cgraph.Root, cgraph.Dir, cgraph.File, cgraph.Function, cgraph.Prototype,
	cgraph.Global, cgraph.GlobalExtern, cgraph.Type, cgraph.Field,
	cgraph.Constructor, cgraph.Constant, cgraph.Macro,
	cgraph.NotFoundKind, cgraph.DupeKind, cgraph.PbKind,
}

// labelFor turns a graph Kind into a valid, readable Cypher label.
func labelFor(kind cgraph.Kind) string {
	return "Cxref" + strings.TrimSuffix(string(kind), "Kind")
}

// Loader pushes a *cgraph.Graph into Neo4j in node-kind batches
// followed by one edge batch per label, each upserted with MERGE so reloading
// the same graph after a rebuild is idempotent.
type Loader struct {
	driver neo4j.DriverWithContext
}

// New connects to uri and returns a ready-to-use Loader.
func New(ctx context.Context, uri, user, password string) (*Loader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Loader{driver: driver}, nil
}

// Close releases the underlying driver.
func (l *Loader) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

func (l *Loader) run(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, l.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

// CreateIndexes ensures a uniqueness-friendly lookup index exists for
// every node kind the graph can produce, matching them up front rather
// than discovering slow MATCHes one label at a time during Load.
func (l *Loader) CreateIndexes(ctx context.Context) error {
	for _, kind := range allKinds {
		label := labelFor(kind)
		cypher := fmt.Sprintf(
			"CREATE INDEX cxref_%s_name IF NOT EXISTS FOR (n:%s) ON (n.name)", label, label,
		)
		if err := l.run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("create index for %s: %w", label, err)
		}
	}
	return nil
}

// Clean removes every node this package could have written, identified
// by the cxref label all of them carry alongside their kind-specific
// label.
func (l *Loader) Clean(ctx context.Context) error {
	return l.run(ctx, "MATCH (n:CxrefNode) DETACH DELETE n", nil)
}

// Load upserts every node and edge in g. Nodes are batched per kind
// (so each batch shares one Cypher label), then edges are loaded in one
// batch per label (Has, then Use), keyed by the (name, kind) pairs
// MERGE already knows how to find.
func (l *Loader) Load(ctx context.Context, g *cgraph.Graph) error {
	byKind := make(map[cgraph.Kind][]cgraph.ID)
	for _, id := range g.Nodes() {
		byKind[id.Kind] = append(byKind[id.Kind], id)
	}

	for kind, ids := range byKind {
		if err := l.loadNodeBatch(ctx, kind, ids, g); err != nil {
			return fmt.Errorf("load %s nodes: %w", kind, err)
		}
	}
	return l.loadEdges(ctx, g)
}

func (l *Loader) loadNodeBatch(ctx context.Context, kind cgraph.Kind, ids []cgraph.ID, g *cgraph.Graph) error {
	label := labelFor(kind)
	batch := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		row := map[string]any{"name": id.Name, "kind": string(id.Kind)}
		if info, ok := g.Info(id); ok {
			row["file"] = info.Pos.File
			row["line"] = info.Pos.Line
			row["type_sig"] = info.TypeSig
		}
		batch = append(batch, row)
	}
	cypher := fmt.Sprintf(
		`UNWIND $batch AS row
		 MERGE (n:CxrefNode:%s {name: row.name, kind: row.kind})
		 SET n.file = row.file, n.line = row.line, n.type_sig = row.type_sig`,
		label,
	)
	return l.run(ctx, cypher, map[string]any{"batch": batch})
}

// loadEdges matches endpoints on both name and kind, not name alone:
// a graph ID's real identity is the (name, kind) pair (a Function and
// a Prototype routinely share a name per spec's S2 scenario), and
// CxrefNode is a label every kind shares, so matching on name only
// would let an edge meant for one kind's node also attach to the
// other's.
func (l *Loader) loadEdges(ctx context.Context, g *cgraph.Graph) error {
	var hasBatch, useBatch []map[string]any
	for _, e := range g.Edges() {
		row := map[string]any{
			"srcName": e.Src.Name, "srcKind": string(e.Src.Kind),
			"dstName": e.Dst.Name, "dstKind": string(e.Dst.Kind),
		}
		switch e.Label {
		case cgraph.Has:
			hasBatch = append(hasBatch, row)
		case cgraph.Use:
			useBatch = append(useBatch, row)
		}
	}
	if len(hasBatch) > 0 {
		if err := l.run(ctx,
			`UNWIND $batch AS row
			 MATCH (src:CxrefNode {name: row.srcName, kind: row.srcKind})
			 MATCH (dst:CxrefNode {name: row.dstName, kind: row.dstKind})
			 MERGE (src)-[:HAS]->(dst)`,
			map[string]any{"batch": hasBatch},
		); err != nil {
			return fmt.Errorf("load has edges: %w", err)
		}
	}
	if len(useBatch) > 0 {
		if err := l.run(ctx,
			`UNWIND $batch AS row
			 MATCH (src:CxrefNode {name: row.srcName, kind: row.srcKind})
			 MATCH (dst:CxrefNode {name: row.dstName, kind: row.dstKind})
			 MERGE (src)-[:USES]->(dst)`,
			map[string]any{"batch": useBatch},
		); err != nil {
			return fmt.Errorf("load use edges: %w", err)
		}
	}
	return nil
}
