package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cpp2puml/internal/extractor"
	"cpp2puml/internal/graph"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sqlx.DB
}

var _ CatalogStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite catalog.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS classes (
			id TEXT PRIMARY KEY,
			class_key TEXT NOT NULL,
			ord INTEGER NOT NULL,
			name TEXT NOT NULL,
			namespace JSON,
			outer_name TEXT,
			kind TEXT,
			file TEXT,
			start_line INTEGER,
			end_line INTEGER,
			bases JSON,
			template_params JSON,
			enumerators JSON
		);`,
		`CREATE TABLE IF NOT EXISTS members (
			class_id TEXT NOT NULL,
			ord INTEGER NOT NULL,
			name TEXT,
			type_text TEXT,
			kind TEXT,
			access TEXT,
			is_static INTEGER,
			is_virtual INTEGER,
			is_abstract INTEGER,
			is_const INTEGER,
			is_constructor INTEGER,
			is_destructor INTEGER,
			params JSON,
			line INTEGER,
			PRIMARY KEY (class_id, ord)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			ord INTEGER NOT NULL,
			from_key TEXT,
			to_key TEXT,
			kind TEXT,
			access TEXT,
			is_virtual INTEGER,
			many INTEGER,
			via TEXT,
			PRIMARY KEY (from_key, to_key, kind)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_classes_file ON classes(file);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

type classRow struct {
	ID             string `db:"id"`
	Key            string `db:"class_key"`
	Ord            int    `db:"ord"`
	Name           string `db:"name"`
	Namespace      []byte `db:"namespace"`
	Outer          string `db:"outer_name"`
	Kind           string `db:"kind"`
	File           string `db:"file"`
	StartLine      int    `db:"start_line"`
	EndLine        int    `db:"end_line"`
	Bases          []byte `db:"bases"`
	TemplateParams []byte `db:"template_params"`
	Enumerators    []byte `db:"enumerators"`
}

type memberRow struct {
	ClassID     string `db:"class_id"`
	Ord         int    `db:"ord"`
	Name        string `db:"name"`
	Type        string `db:"type_text"`
	Kind        string `db:"kind"`
	Access      string `db:"access"`
	Static      bool   `db:"is_static"`
	Virtual     bool   `db:"is_virtual"`
	Abstract    bool   `db:"is_abstract"`
	Const       bool   `db:"is_const"`
	Constructor bool   `db:"is_constructor"`
	Destructor  bool   `db:"is_destructor"`
	Params      []byte `db:"params"`
	Line        int    `db:"line"`
}

type edgeRow struct {
	Ord     int    `db:"ord"`
	From    string `db:"from_key"`
	To      string `db:"to_key"`
	Kind    string `db:"kind"`
	Access  string `db:"access"`
	Virtual bool   `db:"is_virtual"`
	Many    bool   `db:"many"`
	Via     string `db:"via"`
}

const classColumns = "id, class_key, ord, name, namespace, outer_name, kind, file, start_line, end_line, bases, template_params, enumerators"

func newClassRow(node *graph.Node, ord int) (classRow, error) {
	c := node.Class
	row := classRow{
		ID:        node.ID,
		Key:       node.Key,
		Ord:       ord,
		Name:      c.Name,
		Outer:     c.Outer,
		Kind:      string(c.Kind),
		File:      c.File,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
	}
	var err error
	if row.Namespace, err = json.Marshal(c.Namespace); err != nil {
		return row, err
	}
	if row.Bases, err = json.Marshal(c.Bases); err != nil {
		return row, err
	}
	if row.TemplateParams, err = json.Marshal(c.TemplateParams); err != nil {
		return row, err
	}
	if row.Enumerators, err = json.Marshal(c.Enumerators); err != nil {
		return row, err
	}
	return row, nil
}

func (r classRow) entity() (*extractor.ClassEntity, error) {
	c := &extractor.ClassEntity{
		Name:      r.Name,
		Outer:     r.Outer,
		Kind:      extractor.Kind(r.Kind),
		File:      r.File,
		StartLine: r.StartLine,
		EndLine:   r.EndLine,
	}
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{r.Namespace, &c.Namespace},
		{r.Bases, &c.Bases},
		{r.TemplateParams, &c.TemplateParams},
		{r.Enumerators, &c.Enumerators},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode class %s: %w", r.ID, err)
		}
	}
	return c, nil
}

func newMemberRow(classID string, ord int, m extractor.Member) (memberRow, error) {
	params, err := json.Marshal(m.Params)
	if err != nil {
		return memberRow{}, err
	}
	return memberRow{
		ClassID:     classID,
		Ord:         ord,
		Name:        m.Name,
		Type:        m.Type,
		Kind:        string(m.Kind),
		Access:      string(m.Access),
		Static:      m.Static,
		Virtual:     m.Virtual,
		Abstract:    m.Abstract,
		Const:       m.Const,
		Constructor: m.Constructor,
		Destructor:  m.Destructor,
		Params:      params,
		Line:        m.Line,
	}, nil
}

func (r memberRow) member() (extractor.Member, error) {
	m := extractor.Member{
		Name:        r.Name,
		Type:        r.Type,
		Kind:        extractor.MemberKind(r.Kind),
		Access:      extractor.Access(r.Access),
		Static:      r.Static,
		Virtual:     r.Virtual,
		Abstract:    r.Abstract,
		Const:       r.Const,
		Constructor: r.Constructor,
		Destructor:  r.Destructor,
		Line:        r.Line,
	}
	if len(r.Params) > 0 {
		if err := json.Unmarshal(r.Params, &m.Params); err != nil {
			return m, fmt.Errorf("decode member %s: %w", r.Name, err)
		}
	}
	return m, nil
}

// SaveGraph replaces the stored snapshot with g.
func (s *SQLiteStore) SaveGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"members", "classes", "edges"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	// 1. Save classes and their members
	for ord, key := range g.Order {
		node := g.Nodes[key]
		row, err := newClassRow(node, ord)
		if err != nil {
			return fmt.Errorf("encode class %s: %w", key, err)
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO classes (`+classColumns+`)
			VALUES (:id, :class_key, :ord, :name, :namespace, :outer_name, :kind, :file, :start_line, :end_line, :bases, :template_params, :enumerators)
		`, row); err != nil {
			return fmt.Errorf("insert class %s: %w", key, err)
		}

		for i, m := range node.Class.Members {
			mrow, err := newMemberRow(node.ID, i, m)
			if err != nil {
				return fmt.Errorf("encode member %s.%s: %w", key, m.Name, err)
			}
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO members (class_id, ord, name, type_text, kind, access, is_static, is_virtual, is_abstract, is_const, is_constructor, is_destructor, params, line)
				VALUES (:class_id, :ord, :name, :type_text, :kind, :access, :is_static, :is_virtual, :is_abstract, :is_const, :is_constructor, :is_destructor, :params, :line)
			`, mrow); err != nil {
				return fmt.Errorf("insert member %s.%s: %w", key, m.Name, err)
			}
		}
	}

	// 2. Save edges
	for ord, e := range g.Edges {
		row := edgeRow{
			Ord:     ord,
			From:    e.From,
			To:      e.To,
			Kind:    string(e.Kind),
			Access:  string(e.Access),
			Virtual: e.Virtual,
			Many:    e.Many,
			Via:     e.Via,
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO edges (ord, from_key, to_key, kind, access, is_virtual, many, via)
			VALUES (:ord, :from_key, :to_key, :kind, :access, :is_virtual, :many, :via)
			ON CONFLICT(from_key, to_key, kind) DO NOTHING
		`, row); err != nil {
			return fmt.Errorf("insert edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	return tx.Commit()
}

// LoadGraph rebuilds the stored graph. Edges are restored as stored; call
// LinkRelations on the result to re-resolve them.
func (s *SQLiteStore) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	g := graph.NewGraph()

	var rows []classRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+classColumns+" FROM classes ORDER BY ord"); err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	classes, err := s.hydrate(ctx, rows)
	if err != nil {
		return nil, err
	}
	for _, c := range classes {
		g.AddClass(c)
	}

	var edges []edgeRow
	if err := s.db.SelectContext(ctx, &edges, "SELECT ord, from_key, to_key, kind, access, is_virtual, many, via FROM edges ORDER BY ord"); err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	for _, e := range edges {
		g.Edges = append(g.Edges, graph.Edge{
			From:    e.From,
			To:      e.To,
			Kind:    graph.RelationKind(e.Kind),
			Access:  extractor.Access(e.Access),
			Virtual: e.Virtual,
			Many:    e.Many,
			Via:     e.Via,
		})
	}

	return g, nil
}

func (s *SQLiteStore) FindClassesByFile(ctx context.Context, path string) ([]*extractor.ClassEntity, error) {
	var rows []classRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+classColumns+" FROM classes WHERE file = ? ORDER BY ord", path); err != nil {
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

// hydrate decodes class rows and attaches their members in declaration order.
func (s *SQLiteStore) hydrate(ctx context.Context, rows []classRow) ([]*extractor.ClassEntity, error) {
	classes := make([]*extractor.ClassEntity, 0, len(rows))
	byID := make(map[string]*extractor.ClassEntity, len(rows))
	for _, r := range rows {
		c, err := r.entity()
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
		byID[r.ID] = c
	}
	if len(rows) == 0 {
		return classes, nil
	}

	var members []memberRow
	if err := s.db.SelectContext(ctx, &members, "SELECT class_id, ord, name, type_text, kind, access, is_static, is_virtual, is_abstract, is_const, is_constructor, is_destructor, params, line FROM members ORDER BY class_id, ord"); err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	for _, mr := range members {
		c, ok := byID[mr.ClassID]
		if !ok {
			continue
		}
		m, err := mr.member()
		if err != nil {
			return nil, err
		}
		c.Members = append(c.Members, m)
	}
	return classes, nil
}
