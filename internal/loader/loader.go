// Package loader reads notebook files written in HCL and produces the
// per-cell analysis facts the graph consumes: defined names, referenced
// names, deleted names, per-definition requirements, language, and
// import-block classification.
//
// A notebook is a sequence of cell blocks:
//
//	cell "b" {
//	  language   = "general"
//	  suspending = false
//	  deletes    = ["tmp"]
//	  body {
//	    y = x + 1
//	  }
//	}
//
// Every attribute of the body block is a definition; the variables of its
// expression are that definition's required references. The cell's refs are
// the union of required references not defined by the cell itself.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/ctxlog"
	"github.com/vk/cellgraph/internal/sets"
)

// Loader parses notebook files into cells.
type Loader struct{}

// NewLoader creates a new notebook loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes the top-level blocks of a notebook file.
type fileRoot struct {
	Cells []*cellBlock `hcl:"cell,block"`
}

type cellBlock struct {
	ID          string             `hcl:"id,label"`
	Language    string             `hcl:"language,optional"`
	Disabled    bool               `hcl:"disabled,optional"`
	Suspending  bool               `hcl:"suspending,optional"`
	Deletes     []string           `hcl:"deletes,optional"`
	ImportBlock *importBlockConfig `hcl:"import_block,block"`
	Body        *bodyConfig        `hcl:"body,block"`
}

type importBlockConfig struct {
	Imported []string `hcl:"imported,optional"`
}

type bodyConfig struct {
	Remain hcl.Body `hcl:",remain"`
}

// Load parses every .hcl file under the given paths, in order, and returns
// the cells in source order. Cell ids must be unique across all files.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]*cell.Cell, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Notebook loader started.", "path_count", len(paths))

	files, err := findNotebookFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered notebook files.", "count", len(files))

	parser := hclparse.NewParser()
	var cells []*cell.Cell
	seen := sets.New[cell.ID]()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse notebook file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode notebook file %s: %w", file, diags)
		}

		for _, block := range root.Cells {
			c, err := l.translateCell(ctx, block, parser.Sources())
			if err != nil {
				return nil, fmt.Errorf("notebook file %s: %w", file, err)
			}
			if seen.Contains(c.ID) {
				return nil, fmt.Errorf("notebook file %s: duplicate cell id %s", file, c.ID)
			}
			seen.Add(c.ID)
			cells = append(cells, c)
		}
	}

	logger.Debug("Notebook loading complete.", "cells", len(cells))
	return cells, nil
}

// translateCell converts one decoded cell block into the core cell model.
func (l *Loader) translateCell(ctx context.Context, block *cellBlock, sources map[string][]byte) (*cell.Cell, error) {
	logger := ctxlog.FromContext(ctx).With("cell_id", block.ID)

	language := cell.LanguageGeneral
	if block.Language != "" {
		language = cell.Language(block.Language)
		if !language.Valid() {
			return nil, fmt.Errorf("cell %s: unknown language %q", block.ID, block.Language)
		}
	}
	if block.Body == nil {
		return nil, fmt.Errorf("cell %s: missing body block", block.ID)
	}

	attrs, diags := block.Body.Remain.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("cell %s: %w", block.ID, diags)
	}

	// Source order matters: it is the evaluation order and the last
	// definition is the cell's output.
	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	c := cell.New(cell.ID(block.ID), renderCode(ordered, sources))
	c.Language = language
	c.Suspending = block.Suspending
	c.Config.Disabled = block.Disabled
	for _, name := range block.Deletes {
		c.DeletedRefs.Add(name)
	}
	if block.ImportBlock != nil {
		c.ImportWorkspace.IsImportBlock = true
		c.ImportWorkspace.ImportedDefs = sets.New(block.ImportBlock.Imported...)
	}

	for _, attr := range ordered {
		required := sets.New[string]()
		for _, traversal := range attr.Expr.Variables() {
			required.Add(traversal.RootName())
		}
		c.Defs.Add(attr.Name)
		c.Variables[attr.Name] = append(c.Variables[attr.Name], cell.VariableData{
			Language:     language,
			RequiredRefs: required,
		})
		c.Body = append(c.Body, cell.Def{Name: attr.Name, Expr: attr.Expr})
	}

	// Refs are the names the cell consumes from outside: everything its
	// definitions require that the cell does not itself define.
	for _, records := range c.Variables {
		for _, record := range records {
			c.Refs.AddAll(record.RequiredRefs)
		}
	}
	c.Refs.RemoveAll(c.Defs)

	logger.Debug("Translated cell.", "defs", c.Defs.Len(), "refs", c.Refs.Len())
	return c, nil
}

// renderCode reconstructs a canonical source form of the cell body for
// fingerprinting, so identical code yields an identical content key.
func renderCode(attrs []*hcl.Attribute, sources map[string][]byte) string {
	var b strings.Builder
	for _, attr := range attrs {
		rng := attr.Expr.Range()
		src := sources[rng.Filename]
		expr := ""
		if src != nil && rng.Start.Byte <= rng.End.Byte && rng.End.Byte <= len(src) {
			expr = string(src[rng.Start.Byte:rng.End.Byte])
		}
		b.WriteString(attr.Name)
		b.WriteString(" = ")
		b.WriteString(expr)
		b.WriteString("\n")
	}
	return b.String()
}

// findNotebookFiles walks all given paths and returns a flat, ordered list
// of the .hcl files found.
func findNotebookFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if !info.IsDir() {
			if _, ok := seen[path]; !ok {
				seen[path] = struct{}{}
				allFiles = append(allFiles, path)
			}
			continue
		}

		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() || filepath.Ext(p) != ".hcl" {
				return nil
			}
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				allFiles = append(allFiles, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", path, err)
		}
	}
	return allFiles, nil
}
