// AngelaMos | 2026
// catalog.go

package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Product struct {
	ID       string `koanf:"id"        json:"id"`
	Name     string `koanf:"name"      json:"name"`
	FullName string `koanf:"full_name" json:"full_name"`
}

type Video struct {
	Slug      string `koanf:"slug"       json:"id"`
	Title     string `koanf:"title"      json:"title"`
	ProductID string `koanf:"product_id" json:"product_id"`
	YouTubeID string `koanf:"youtube_id" json:"-"`
	Category  string `koanf:"category"   json:"category,omitempty"`
	Duration  string `koanf:"duration"   json:"duration,omitempty"`
	Level     string `koanf:"level"      json:"level,omitempty"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	products []Product
	videos   []Video
	byID     map[string]Product
	bySlug   map[string]Video
}

var defaultProducts = []Product{
	{ID: "tmbc", Name: "TMBC", FullName: "The Media Buyer Club"},
	{ID: "ese", Name: "ESE", FullName: "ESE"},
	{ID: "bidcap", Name: "Bidcap", FullName: "Reunião Secreta do Bidcap"},
}

var defaultVideos = []Video{
	{
		Slug:      "v1",
		Title:     "Como criar novos top spenders, toda semana",
		ProductID: "tmbc",
		YouTubeID: "x8_ZM5Ih_mg",
		Category:  "Meta Ads · Avançado",
		Duration:  "15:48",
		Level:     "Avançado",
	},
	{
		Slug:      "v2",
		Title:     "Atualização - 30.01.26",
		ProductID: "tmbc",
		YouTubeID: "X_Wp8CBMSWQ",
		Category:  "Meta Ads · Intermediário",
		Duration:  "8:57",
		Level:     "Intermediário",
	},
	{
		Slug:      "v3",
		Title:     "Outros modos e otimização",
		ProductID: "tmbc",
		YouTubeID: "9aG7QDu8Z6k",
		Category:  "Meta Ads · Avançado",
		Duration:  "7:56",
		Level:     "Avançado",
	},
}

func Default() *Catalog {
	c, err := New(defaultProducts, defaultVideos)
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid built-in catalog: %v", err))
	}
	return c
}

// New builds a catalog and rejects duplicate IDs and videos that point at
// unknown products.
func New(products []Product, videos []Video) (*Catalog, error) {
	c := &Catalog{
		products: slices.Clone(products),
		videos:   slices.Clone(videos),
		byID:     make(map[string]Product, len(products)),
		bySlug:   make(map[string]Video, len(videos)),
	}

	for _, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("product with empty id")
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product %q", p.ID)
		}
		c.byID[p.ID] = p
	}

	for _, v := range videos {
		if v.Slug == "" || v.YouTubeID == "" {
			return nil, fmt.Errorf("video %q is missing slug or youtube_id", v.Slug)
		}
		if _, dup := c.bySlug[v.Slug]; dup {
			return nil, fmt.Errorf("duplicate video %q", v.Slug)
		}
		if _, ok := c.byID[v.ProductID]; !ok {
			return nil, fmt.Errorf(
				"video %q references unknown product %q",
				v.Slug,
				v.ProductID,
			)
		}
		c.bySlug[v.Slug] = v
	}

	return c, nil
}

type fileLayout struct {
	Products []Product `koanf:"products"`
	Videos   []Video   `koanf:"videos"`
}

// Load reads a catalog override from a YAML file. An empty path returns
// the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog file: %w", err)
	}

	var layout fileLayout
	if err := k.Unmarshal("", &layout); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}

	c, err := New(layout.Products, layout.Videos)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	return c, nil
}

func (c *Catalog) Products() []Product {
	return slices.Clone(c.products)
}

func (c *Catalog) Videos() []Video {
	return slices.Clone(c.videos)
}

func (c *Catalog) Product(id string) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c *Catalog) Video(slug string) (Video, bool) {
	v, ok := c.bySlug[slug]
	return v, ok
}

func (c *Catalog) IsProduct(id string) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Catalog) IsVideo(slug string) bool {
	_, ok := c.bySlug[slug]
	return ok
}

// ProductName falls back to the id for products removed from the catalog
// but still referenced by stored entitlements.
func (c *Catalog) ProductName(id string) string {
	if p, ok := c.byID[id]; ok {
		return p.Name
	}
	return id
}

func (c *Catalog) ProductIDs() []string {
	ids := make([]string, 0, len(c.products))
	for _, p := range c.products {
		ids = append(ids, p.ID)
	}
	return ids
}

// RegisterValidators adds the catalog_video and catalog_product tags.
func (c *Catalog) RegisterValidators(v *validator.Validate) error {
	err := v.RegisterValidation("catalog_video", func(fl validator.FieldLevel) bool {
		return c.IsVideo(strings.TrimSpace(fl.Field().String()))
	})
	if err != nil {
		return fmt.Errorf("register catalog_video: %w", err)
	}

	err = v.RegisterValidation("catalog_product", func(fl validator.FieldLevel) bool {
		return c.IsProduct(fl.Field().String())
	})
	if err != nil {
		return fmt.Errorf("register catalog_product: %w", err)
	}

	return nil
}
