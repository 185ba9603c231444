// Package content loads the portfolio's copy: owner details, headline
// phrases, navigation sections, projects and the plain-text résumé.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed site.yaml
var defaultSite []byte

// ErrInvalid is returned for content that cannot drive the page.
var ErrInvalid = errors.New("content: invalid")

type Owner struct {
	Name     string `yaml:"name"`
	Headline string `yaml:"headline"`
	Email    string `yaml:"email"`
	Location string `yaml:"location"`
	LinkedIn string `yaml:"linkedin"`
	GitHub   string `yaml:"github"`
}

// NavItem is a page section that gets a navigation link.
type NavItem struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// Stat is an animated counter on the about section.
type Stat struct {
	Label  string `yaml:"label"`
	Target int    `yaml:"target"`
	Suffix string `yaml:"suffix"`
}

type Project struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Technologies []string `yaml:"technologies"`
	Achievements []string `yaml:"achievements"`
	Challenges   []string `yaml:"challenges"`
}

// Site is the full page content.
type Site struct {
	Owner    Owner     `yaml:"owner"`
	Phrases  []string  `yaml:"phrases"`
	Nav      []NavItem `yaml:"nav"`
	About    string    `yaml:"about"`
	Stats    []Stat    `yaml:"stats"`
	Projects []Project `yaml:"projects"`
	Resume   string    `yaml:"resume"`
}

// Default returns the embedded site content.
func Default() (*Site, error) {
	return Parse(defaultSite)
}

// Load reads site content from path, or the embedded default when path is
// empty.
func Load(path string) (*Site, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML site content.
func Parse(data []byte) (*Site, error) {
	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	return &site, nil
}

// Validate checks the fields the page cannot render without.
func (s *Site) Validate() error {
	if len(s.Phrases) == 0 {
		return fmt.Errorf("%w: no headline phrases", ErrInvalid)
	}
	for i, p := range s.Phrases {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: phrase %d is blank", ErrInvalid, i)
		}
	}
	if len(s.Nav) == 0 {
		return fmt.Errorf("%w: no navigation sections", ErrInvalid)
	}
	navIDs := make(map[string]bool, len(s.Nav))
	for _, n := range s.Nav {
		if n.ID == "" || navIDs[n.ID] {
			return fmt.Errorf("%w: nav id %q missing or duplicated", ErrInvalid, n.ID)
		}
		navIDs[n.ID] = true
	}
	projectIDs := make(map[string]bool, len(s.Projects))
	for _, p := range s.Projects {
		if p.ID == "" || projectIDs[p.ID] {
			return fmt.Errorf("%w: project id %q missing or duplicated", ErrInvalid, p.ID)
		}
		projectIDs[p.ID] = true
	}
	return nil
}

// Project looks up a project by id.
func (s *Site) Project(id string) (Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// ResumeFilename is the download name for the generated résumé.
func (s *Site) ResumeFilename() string {
	name := strings.ReplaceAll(strings.TrimSpace(s.Owner.Name), " ", "_")
	if name == "" {
		name = "Resume"
	} else {
		name += "_Resume"
	}
	return name + ".txt"
}
