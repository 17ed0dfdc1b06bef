package pagetree

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/surrealdb/pagetree/pkg/tree"
)

// parkedFile is the layout of a parked declarations file:
//
//	[[page]]
//	slug = "/"
//	type = "home"
//	[page.defaults]
//	title = "Home"
//	published = true
//
//	[[page]]
//	slug = "/blog"
//	type = "blog"
//	[page.fields]
//	layout = "wide"
//
//	  [[page.children]]
//	  slug = "/blog/archive"
type parkedFile struct {
	Page []tree.ParkedPage `toml:"page"`
}

// LoadParked reads parked page declarations from a TOML file. An empty path
// returns the built-in home and trash declarations.
func LoadParked(path string) ([]tree.ParkedPage, error) {
	if path == "" {
		return tree.DefaultParked(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parked declarations: %w", err)
	}
	return ParseParked(data)
}

// ParseParked decodes TOML parked page declarations.
func ParseParked(data []byte) ([]tree.ParkedPage, error) {
	var file parkedFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse parked declarations: %w", err)
	}
	if err := validateParked(file.Page, ""); err != nil {
		return nil, err
	}
	return file.Page, nil
}

func validateParked(pages []tree.ParkedPage, parent string) error {
	seen := make(map[string]bool, len(pages))
	for i, p := range pages {
		if p.Slug == "" {
			if parent == "" {
				return fmt.Errorf("parked page %d: slug is required", i)
			}
			return fmt.Errorf("parked page %d under %s: slug is required", i, parent)
		}
		if p.Slug[0] != '/' {
			return fmt.Errorf("parked page %s: slug must start with /", p.Slug)
		}
		if seen[p.Slug] {
			return fmt.Errorf("parked page %s declared twice", p.Slug)
		}
		seen[p.Slug] = true
		if err := validateParked(p.Children, p.Slug); err != nil {
			return err
		}
	}
	return nil
}
