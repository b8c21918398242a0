package scaffold

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jorge-barreto/stepfix/internal/config"
	"github.com/jorge-barreto/stepfix/internal/ux"
)

// SeedFile is the name of the example seed file written by Init.
const SeedFile = "seed.yaml"

var configTemplate = `# Database connection. DB_DRIVER, DB_HOST, DB_PORT, DB_NAME, DB_USER,
# DB_PASSWORD, DB_SSLMODE and DB_PATH override these values.
database:
  driver: postgres
  host: localhost
  port: 5432
  name: postgres
  user: postgres
  sslmode: disable
  id-type: uuid

# Steps created by this author with this status are canonical.
canonical-author: AI Team
approved-status: approved
modified-by: stepfix

# Use-case lookups are split into batches of batch-size ids, with up to
# concurrency batches in flight.
concurrency: 4
batch-size: 100
`

var seedTemplate = `steps:
  - slug: pick-role
    title: Pick your role
    brief: Choose the team you are joining
    category: role-selection
    role:
      prompt: Which team are you joining?
      options: [backend, frontend, data]

  - slug: install-go
    title: Install Go
    brief: Install the Go toolchain
    category: runtime
    runtime:
      name: go
      version: "1.24"
      install-command: brew install go
      verify-command: go version

  - slug: install-vscode
    title: Install VS Code
    brief: Download and install the editor
    category: ide
    ide:
      name: Visual Studio Code
      download-url: https://code.visualstudio.com
      extensions: [golang.go]

  - slug: configure-git
    title: Configure Git
    brief: Set your name and email for commits
    category: configuration
    configuration:
      commands:
        - git config --global user.name "Your Name"
        - git config --global user.email you@example.com

  - slug: first-build
    title: Build the project
    brief: Confirm the local toolchain works
    category: checkpoint
    checkpoint:
      question: Does the project build locally?
      expected: yes

use-cases:
  - title: Backend onboarding
    steps: [pick-role, install-go, install-vscode, configure-git, first-build]
`

// Init writes an example stepfix.yaml and seed.yaml into targetDir.
func Init(w io.Writer, targetDir string) error {
	configPath := filepath.Join(targetDir, config.DefaultFile)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists in %s", config.DefaultFile, targetDir)
	}
	seedPath := filepath.Join(targetDir, SeedFile)
	if _, err := os.Stat(seedPath); err == nil {
		return fmt.Errorf("%s already exists in %s", SeedFile, targetDir)
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", targetDir, err)
	}
	if err := os.WriteFile(configPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", config.DefaultFile, err)
	}
	if err := os.WriteFile(seedPath, []byte(seedTemplate), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", SeedFile, err)
	}

	fmt.Fprintf(w, "\n%s%s✓ Initialized stepfix%s\n\n", ux.Bold, ux.Green, ux.Reset)
	fmt.Fprintf(w, "  Created:\n")
	fmt.Fprintf(w, "    %s%s%s  database and canonical-step settings\n", ux.Cyan, config.DefaultFile, ux.Reset)
	fmt.Fprintf(w, "    %s%s%s     example canonical steps\n\n", ux.Cyan, SeedFile, ux.Reset)
	fmt.Fprintf(w, "  Next steps:\n")
	fmt.Fprintf(w, "    1. Point %s%s%s at your database\n", ux.Cyan, config.DefaultFile, ux.Reset)
	fmt.Fprintf(w, "    2. Run %sstepfix check%s to see duplicates and dangling references\n", ux.Cyan, ux.Reset)
	fmt.Fprintf(w, "    3. Run %sstepfix --dry-run%s to preview the reconciliation\n\n", ux.Cyan, ux.Reset)

	return nil
}
