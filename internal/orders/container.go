package orders

import (
	"strings"
)

type ContainerSize string

// DefaultContainerSizes is the catalog used when none is configured.
var DefaultContainerSizes = []ContainerSize{
	"20ft Used (WWT)",
	"20ft Used (Cargo)",
	"20ft New",
	"40ft Used (WWT)",
	"40ft Used (Cargo)",
	"40ft New",
	"40ft HC Used (WWT)",
	"40ft HC Used (Cargo)",
	"40ft HC New",
}

// ContainerSpec is a catalog label split into its parts, e.g.
// "40ft HC Used (WWT)" -> {Size: "40ft HC", Condition: "Used", Source: "WWT"}.
type ContainerSpec struct {
	Label     ContainerSize `json:"label"`
	Size      string        `json:"size"`
	Condition string        `json:"condition"`
	Source    string        `json:"source,omitempty"`
}

func ParseContainerSize(label ContainerSize) ContainerSpec {
	spec := ContainerSpec{Label: label}
	rest := strings.TrimSpace(string(label))

	if open := strings.LastIndex(rest, "("); open >= 0 && strings.HasSuffix(rest, ")") {
		spec.Source = strings.TrimSpace(rest[open+1 : len(rest)-1])
		rest = strings.TrimSpace(rest[:open])
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return spec
	}
	spec.Condition = fields[len(fields)-1]
	spec.Size = strings.Join(fields[:len(fields)-1], " ")
	if spec.Size == "" {
		spec.Size, spec.Condition = spec.Condition, ""
	}
	return spec
}

// Catalog is the configured set of container labels an order may use.
type Catalog struct {
	sizes []ContainerSize
	index map[ContainerSize]struct{}
}

func NewCatalog(sizes []ContainerSize) *Catalog {
	if len(sizes) == 0 {
		sizes = DefaultContainerSizes
	}
	c := &Catalog{index: make(map[ContainerSize]struct{}, len(sizes))}
	for _, s := range sizes {
		s = ContainerSize(strings.TrimSpace(string(s)))
		if s == "" {
			continue
		}
		if _, dup := c.index[s]; dup {
			continue
		}
		c.index[s] = struct{}{}
		c.sizes = append(c.sizes, s)
	}
	return c
}

func (c *Catalog) Contains(size ContainerSize) bool {
	_, ok := c.index[size]
	return ok
}

func (c *Catalog) Sizes() []ContainerSize {
	out := make([]ContainerSize, len(c.sizes))
	copy(out, c.sizes)
	return out
}

func (c *Catalog) Specs() []ContainerSpec {
	specs := make([]ContainerSpec, 0, len(c.sizes))
	for _, s := range c.sizes {
		specs = append(specs, ParseContainerSize(s))
	}
	return specs
}
