package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Getting started with stepfix",
		Content: topicQuickstart,
	},
	{
		Name:    "config",
		Title:   "Configuration Reference",
		Summary: "Config file fields, environment overrides, and defaults",
		Content: topicConfig,
	},
	{
		Name:    "reconcile",
		Title:   "Reconciliation",
		Summary: "How duplicate steps are found, remapped, and deleted",
		Content: topicReconcile,
	},
	{
		Name:    "seed",
		Title:   "Seed Files",
		Summary: "Canonical step categories and the seed file schema",
		Content: topicSeed,
	},
	{
		Name:    "check",
		Title:   "Integrity Check",
		Summary: "Read-only report of duplicates and dangling references",
		Content: topicCheck,
	},
}

const topicQuickstart = `Quick Start
===========

1. Create a config and an example seed file:

    stepfix init

   This writes stepfix.yaml and seed.yaml in the current directory.

2. Point stepfix.yaml at the catalog database, or export DB_HOST,
   DB_NAME, DB_USER and DB_PASSWORD.

3. See what is wrong:

    stepfix check

4. Preview the reconciliation without writing anything:

    stepfix --dry-run

5. Run it for real:

    stepfix

CLI
---

  stepfix                       Reconcile duplicate steps
  stepfix --dry-run             Print the plan; perform no writes
  stepfix --report run.json     Also write the run report as JSON
  stepfix --config path.yaml    Use a specific config file
  stepfix --verbose             Debug logging on stderr
  stepfix check                 Report duplicates and dangling references
  stepfix check --strict        Exit 1 if the check finds anything
  stepfix seed [file]           Insert canonical steps from a seed file
  stepfix seed --dry-run        Preview the seed without writing
  stepfix init                  Write example stepfix.yaml and seed.yaml
  stepfix docs                  List documentation topics
  stepfix docs <topic>          Show a documentation topic

Exit status is 0 on success and 1 on any failure, including a run
where some use cases could not be updated.
`

const topicConfig = `Configuration Reference
=======================

Settings are read from stepfix.yaml in the current directory, or from
the file given with --config. The file is optional; every field has a
default.

Fields
------

  database.driver     string   "postgres" (default) or "sqlite".
  database.host       string   Default: localhost.
  database.port       int      Default: 5432.
  database.name       string   Default: postgres.
  database.user       string   Default: postgres.
  database.password   string   Default: empty.
  database.sslmode    string   Default: disable.
  database.id-type    string   "uuid" (default) or "text". Column type of
                               steps.id and use_cases.step_ids elements.
  database.path       string   SQLite file. Default: stepfix.db.
  canonical-author    string   created_by of canonical steps. Default: AI Team.
  approved-status     string   status of canonical steps. Default: approved.
  modified-by         string   modified_by for seeded steps. Default: stepfix.
  concurrency         int      Use-case lookups in flight. Default: 4.
  batch-size          int      Step ids per use-case lookup. Default: 100.

Environment
-----------

These override the file when set:

  DB_DRIVER  DB_HOST  DB_PORT  DB_NAME  DB_USER  DB_PASSWORD
  DB_SSLMODE  DB_PATH

Empty values are ignored, except DB_PASSWORD, which may be set to an
empty string.
`

const topicReconcile = `Reconciliation
==============

A step is canonical when its created_by is the canonical author and its
status is the approved status. Any other step with the same title is a
duplicate of that canonical step.

Phases
------

  1. discover   Find (duplicate, canonical) pairs by exact title match.
  2. remap      Rewrite every use case's step_ids, replacing duplicate
                ids with canonical ids. Order, length and repeats are
                kept. Use cases that would not change are not written.
  3. delete     Delete the duplicate step rows.
  4. verify     Run discover again and report anything left.

A use case that fails to update is reported and the run moves on. The
duplicate steps it still references are kept so no use case is left
pointing at a deleted step. The run then exits 1; running again is safe
and picks up where it left off.

Titles with more than one canonical step are reported as anomalies and
left alone. Resolve them by hand, then run again.

Dry run
-------

--dry-run performs discover and remap planning only. Each use case that
would change is printed with its before and after step ids, followed by
"would update N use cases" and "would delete N steps". No write reaches
the database.
`

const topicSeed = `Seed Files
==========

stepfix seed inserts canonical steps and links them into existing use
cases. Steps already present (same title, canonical author and status)
are left alone, so a seed file can be applied repeatedly.

Schema
------

  steps:
    - slug: install-vscode          lowercase words joined by '-'
      title: Install VS Code        unique
      brief: Download the editor
      category: ide
      ide:
        name: Visual Studio Code
        download-url: https://code.visualstudio.com
        extensions: [golang.go]
  use-cases:
    - title: Backend onboarding     must already exist
      steps: [install-vscode]       slugs, in order

Categories
----------

Each step sets exactly one content block, matching its category:

  role-selection   role:           prompt, options
  runtime          runtime:        name, version, install-command,
                                   verify-command
  ide              ide:            name, download-url, extensions
  configuration    configuration:  files, commands
  checkpoint       checkpoint:     question, expected

The block is stored as JSON in steps.detailed_content and the slug is
stored as the step's only tag.
`

const topicCheck = `Integrity Check
===============

stepfix check runs discover and looks for use cases whose step_ids
name a step that does not exist. Nothing is written.

It prints duplicate pairs, titles with more than one canonical step,
and dangling references. Exit status is 0 unless --strict is given and
something was found. --report writes the findings as JSON.
`
