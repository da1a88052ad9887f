package index

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"codetwin/internal/crawler"
	"codetwin/internal/extractor"
	"codetwin/internal/graph"
	"codetwin/internal/metadata"
)

// Indexer reads the metadata of a whole source tree into one graph, so
// links and inheritance can cross file boundaries.
type Indexer struct {
	crawler *crawler.Crawler
	store   *metadata.Store
}

// Index is the result of scanning a tree.
type Index struct {
	Graph *graph.Graph
	// Files maps each record id to the file that defines it.
	Files map[string]string
	// Duplicates are ids defined more than once anywhere in the tree.
	Duplicates []string
}

// NewIndexer creates a new indexer.
func NewIndexer(c *crawler.Crawler, store *metadata.Store) *Indexer {
	if store == nil {
		store = metadata.NewStore()
	}
	return &Indexer{crawler: c, store: store}
}

// Build scans root and links every record found. The first definition of an
// id, in walk order, wins.
func (i *Indexer) Build(root string) (*Index, error) {
	idx := &Index{Graph: graph.NewGraph(), Files: make(map[string]string)}
	tracker := metadata.NewDuplicateTracker()

	err := i.crawler.ScanProject(root, func(path string, _ extractor.Language) error {
		code, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		records, _ := i.store.ReadAll(string(code), tracker)
		for _, r := range records {
			idx.Graph.AddRecord(r)
			idx.Files[r.ID] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	// Resolve relationships after all records are loaded
	idx.Graph.LinkRelations()
	idx.Duplicates = tracker.Duplicates()
	return idx, nil
}

// WriteGraph encodes the graph as indented JSON.
func WriteGraph(w io.Writer, g *graph.Graph) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(g); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}
