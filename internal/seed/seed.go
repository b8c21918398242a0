// Package seed loads the canonical onboarding steps from a YAML file and
// links them into use cases.
package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is the closed set of step kinds. Each one carries exactly one
// content block.
type Category string

const (
	CategoryRoleSelection Category = "role-selection"
	CategoryRuntime       Category = "runtime"
	CategoryIDE           Category = "ide"
	CategoryConfiguration Category = "configuration"
	CategoryCheckpoint    Category = "checkpoint"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryRoleSelection,
	CategoryRuntime,
	CategoryIDE,
	CategoryConfiguration,
	CategoryCheckpoint,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

type RoleContent struct {
	Prompt  string   `yaml:"prompt" json:"prompt"`
	Options []string `yaml:"options" json:"options"`
}

type RuntimeContent struct {
	Name           string `yaml:"name" json:"name"`
	Version        string `yaml:"version" json:"version,omitempty"`
	InstallCommand string `yaml:"install-command" json:"install_command,omitempty"`
	VerifyCommand  string `yaml:"verify-command" json:"verify_command,omitempty"`
}

type IDEContent struct {
	Name        string   `yaml:"name" json:"name"`
	DownloadURL string   `yaml:"download-url" json:"download_url,omitempty"`
	Extensions  []string `yaml:"extensions" json:"extensions,omitempty"`
}

type ConfigurationContent struct {
	Files    []string `yaml:"files" json:"files,omitempty"`
	Commands []string `yaml:"commands" json:"commands,omitempty"`
}

type CheckpointContent struct {
	Question string `yaml:"question" json:"question"`
	Expected string `yaml:"expected" json:"expected,omitempty"`
}

// Step is one canonical step in the seed file.
type Step struct {
	Slug     string   `yaml:"slug"`
	Title    string   `yaml:"title"`
	Brief    string   `yaml:"brief"`
	Category Category `yaml:"category"`

	Role          *RoleContent          `yaml:"role"`
	Runtime       *RuntimeContent       `yaml:"runtime"`
	IDE           *IDEContent           `yaml:"ide"`
	Configuration *ConfigurationContent `yaml:"configuration"`
	Checkpoint    *CheckpointContent    `yaml:"checkpoint"`
}

// UseCase links an existing use case, by title, to seeded steps, by slug.
type UseCase struct {
	Title string   `yaml:"title"`
	Steps []string `yaml:"steps"`
}

// File is a parsed seed file.
type File struct {
	Steps    []Step    `yaml:"steps"`
	UseCases []UseCase `yaml:"use-cases"`
}

var slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks slugs, titles and content blocks. Slugs used by use cases
// that are not defined in the file are left to Apply, since they may already
// exist in the store.
func Validate(f *File) error {
	slugs := make(map[string]bool)
	titles := make(map[string]bool)
	for i, s := range f.Steps {
		where := fmt.Sprintf("seed: steps[%d]", i)
		if s.Slug != "" {
			where = fmt.Sprintf("seed: step %q", s.Slug)
		}
		if !slugRe.MatchString(s.Slug) {
			return fmt.Errorf("%s: slug must be lowercase words joined by '-'", where)
		}
		if slugs[s.Slug] {
			return fmt.Errorf("%s: duplicate slug", where)
		}
		slugs[s.Slug] = true
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("%s: title is required", where)
		}
		if titles[s.Title] {
			return fmt.Errorf("%s: duplicate title %q", where, s.Title)
		}
		titles[s.Title] = true
		if !s.Category.Valid() {
			return fmt.Errorf("%s: unknown category %q (want one of %s)", where, s.Category, categoryList())
		}
		if err := s.checkContent(); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}
	for i, uc := range f.UseCases {
		if strings.TrimSpace(uc.Title) == "" {
			return fmt.Errorf("seed: use-cases[%d]: title is required", i)
		}
		if len(uc.Steps) == 0 {
			return fmt.Errorf("seed: use case %q: at least one step is required", uc.Title)
		}
	}
	return nil
}

func categoryList() string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// blocks returns the content blocks that are set, keyed by the category they
// belong to.
func (s *Step) blocks() map[Category]any {
	set := make(map[Category]any)
	if s.Role != nil {
		set[CategoryRoleSelection] = s.Role
	}
	if s.Runtime != nil {
		set[CategoryRuntime] = s.Runtime
	}
	if s.IDE != nil {
		set[CategoryIDE] = s.IDE
	}
	if s.Configuration != nil {
		set[CategoryConfiguration] = s.Configuration
	}
	if s.Checkpoint != nil {
		set[CategoryCheckpoint] = s.Checkpoint
	}
	return set
}

func (s *Step) checkContent() error {
	set := s.blocks()
	if _, ok := set[s.Category]; !ok {
		return fmt.Errorf("category %s requires a %q block", s.Category, blockKey(s.Category))
	}
	for c := range set {
		if c != s.Category {
			return fmt.Errorf("block %q does not belong to category %s", blockKey(c), s.Category)
		}
	}
	switch s.Category {
	case CategoryRoleSelection:
		if len(s.Role.Options) == 0 {
			return fmt.Errorf("role: at least one option is required")
		}
	case CategoryRuntime:
		if s.Runtime.Name == "" {
			return fmt.Errorf("runtime: name is required")
		}
	case CategoryIDE:
		if s.IDE.Name == "" {
			return fmt.Errorf("ide: name is required")
		}
	case CategoryCheckpoint:
		if s.Checkpoint.Question == "" {
			return fmt.Errorf("checkpoint: question is required")
		}
	}
	return nil
}

func blockKey(c Category) string {
	if c == CategoryRoleSelection {
		return "role"
	}
	return string(c)
}

// Content returns the step's content block as the JSON stored in
// detailed_content.
func (s *Step) Content() (json.RawMessage, error) {
	block, ok := s.blocks()[s.Category]
	if !ok {
		return nil, fmt.Errorf("step %q has no %s content", s.Slug, s.Category)
	}
	return json.Marshal(block)
}
