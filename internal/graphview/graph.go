// Package graphview renders the catalog reference graph as Graphviz DOT and
// SVG.
package graphview

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"catalogcore/pkg/domain"
)

// Options configures graph output.
type Options struct {
	// ActionRefs adds dotted edges for marketplaceId action properties.
	ActionRefs bool
}

var shapes = map[domain.EntityType]string{
	domain.EntityMarketplace: "box",
	domain.EntityGroup:       "folder",
	domain.EntityWidget:      "ellipse",
}

func nodeID(kind domain.EntityType, code string) string {
	return string(kind) + ":" + code
}

type builder struct {
	view     domain.CatalogView
	buf      bytes.Buffer
	declared map[string]bool
	missing  []string
}

// ToDOT converts view to DOT. Every entity is a node and every reference
// record an edge labelled with its displayOrder. References to missing
// entities point at dashed placeholder nodes.
func ToDOT(view domain.CatalogView, opts Options) string {
	b := &builder{view: view, declared: map[string]bool{}}
	b.buf.WriteString("digraph catalog {\n")
	b.buf.WriteString("  rankdir=LR;\n")
	b.buf.WriteString("  node [fontsize=12, style=filled, fillcolor=white];\n\n")

	for _, mp := range view.ListMarketplaces() {
		attrs := []string{fmt.Sprintf("label=%q", label(mp.Code, mp.Name()))}
		if mp.IsInitial() {
			attrs = append(attrs, "peripheries=2", "fillcolor=lightyellow")
		}
		b.node(domain.EntityMarketplace, mp.Code, attrs)
	}
	for _, g := range view.ListGroups() {
		b.node(domain.EntityGroup, g.Code, []string{fmt.Sprintf("label=%q", label(g.Code, g.Name()))})
	}
	for _, w := range view.ListWidgets() {
		b.node(domain.EntityWidget, w.Code, []string{fmt.Sprintf("label=%q", label(w.Code, w.Name()))})
	}
	b.buf.WriteString("\n")

	for _, mp := range view.ListMarketplaces() {
		b.links(domain.EntityMarketplace, mp.Code, domain.RelationMarketplaceGroups, mp.MarketplaceGroups)
		b.links(domain.EntityMarketplace, mp.Code, domain.RelationSettingMarketplaces, mp.SettingMarketplaces)
	}
	for _, g := range view.ListGroups() {
		b.links(domain.EntityGroup, g.Code, domain.RelationGroupWidgets, g.GroupWidgets)
	}
	if opts.ActionRefs {
		for _, e := range allEntities(view) {
			b.actionRefs(e.Kind(), e.EntityCode(), domain.AttributesOf(e))
		}
	}

	if len(b.missing) > 0 {
		b.buf.WriteString("\n")
		for _, line := range b.missing {
			b.buf.WriteString(line)
		}
	}
	b.buf.WriteString("}\n")
	return b.buf.String()
}

func label(code, name string) string {
	if name == "" || name == code {
		return code
	}
	return code + "\n" + name
}

func (b *builder) node(kind domain.EntityType, code string, attrs []string) {
	id := nodeID(kind, code)
	if b.declared[id] {
		return
	}
	b.declared[id] = true
	attrs = append([]string{"shape=" + shapes[kind]}, attrs...)
	fmt.Fprintf(&b.buf, "  %q [%s];\n", id, strings.Join(attrs, ", "))
}

func (b *builder) target(kind domain.EntityType, code string) (string, bool) {
	id := nodeID(kind, code)
	if b.exists(kind, code) {
		return id, true
	}
	if !b.declared[id] {
		b.declared[id] = true
		b.missing = append(b.missing, fmt.Sprintf("  %q [shape=%s, label=%q, style=dashed, color=red, fontcolor=red];\n",
			id, shapes[kind], code+"\n(missing)"))
	}
	return id, false
}

func (b *builder) exists(kind domain.EntityType, code string) bool {
	var ok bool
	switch kind {
	case domain.EntityMarketplace:
		_, ok = b.view.FindMarketplace(code)
	case domain.EntityGroup:
		_, ok = b.view.FindGroup(code)
	case domain.EntityWidget:
		_, ok = b.view.FindWidget(code)
	}
	return ok
}

func (b *builder) links(kind domain.EntityType, code string, rel domain.Relation, links []domain.Link) {
	from := nodeID(kind, code)
	for _, l := range links {
		if l.Opaque() {
			continue
		}
		to, ok := b.target(rel.Child(), l.Target)
		attrs := []string{fmt.Sprintf("label=%q", fmt.Sprint(l.DisplayOrder))}
		if !ok {
			attrs = append(attrs, "style=dashed", "color=red")
		}
		fmt.Fprintf(&b.buf, "  %q -> %q [%s];\n", from, to, strings.Join(attrs, ", "))
	}
}

func (b *builder) actionRefs(kind domain.EntityType, code string, attrs domain.Attributes) {
	from := nodeID(kind, code)
	for _, ref := range domain.MarketplaceIDRefs(attrs) {
		to, ok := b.target(domain.EntityMarketplace, ref.Value)
		style := []string{"style=dotted", `label="marketplaceId"`}
		if !ok {
			style = append(style, "color=red")
		}
		fmt.Fprintf(&b.buf, "  %q -> %q [%s];\n", from, to, strings.Join(style, ", "))
	}
}

func allEntities(view domain.CatalogView) []domain.Entity {
	var out []domain.Entity
	for _, mp := range view.ListMarketplaces() {
		out = append(out, mp)
	}
	for _, g := range view.ListGroups() {
		out = append(out, g)
	}
	for _, w := range view.ListWidgets() {
		out = append(out, w)
	}
	return out
}

// RenderSVG lays out a DOT graph with Graphviz and returns SVG bytes.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
