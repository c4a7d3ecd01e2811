// Package digest turns a repository snapshot into a character-budgeted text digest.
//
// Every function in this package is total: malformed or missing input is treated
// as absent and never reported as an error.
package digest

const (
	defaultMetadataLimit       = 500
	defaultReadmeLimit         = 2000
	defaultTreeLimit           = 2000
	defaultConfigFilesLimit    = 2000
	defaultEntryPointsLimit    = 1500
	defaultEntryPointLineLimit = 100

	defaultTreeDepth         = 4
	largeRepositoryTreeDepth = 3
	largeRepositoryThreshold = 1000
)

var (
	defaultIgnoredDirectories = []string{
		"node_modules", "vendor", "dist", "build", ".git", "__pycache__",
		".venv", "venv", ".tox", ".mypy_cache", ".pytest_cache", ".ruff_cache",
		"env", ".eggs", "egg-info", ".next", ".nuxt", "out", "target",
		"coverage", ".coverage", "htmlcov",
	}

	defaultIgnoredExtensions = []string{
		".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp",
		".lock", ".pdf", ".woff", ".woff2", ".ttf", ".eot",
		".min.js", ".min.css", ".map",
		".pyc", ".pyo", ".so", ".dll", ".dylib",
		".zip", ".tar", ".gz", ".bz2", ".7z",
		".mp3", ".mp4", ".wav", ".avi", ".mov",
	}

	defaultIgnoredFiles = []string{
		".env", ".DS_Store", ".gitignore", ".editorconfig",
		"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	}

	defaultConfigPatterns = []string{
		"package.json", "requirements.txt", "pyproject.toml", "setup.py", "setup.cfg",
		"Dockerfile", "docker-compose.yml", "docker-compose.yaml",
		"Makefile", "CMakeLists.txt",
		".github/workflows/ci.yml", ".github/workflows/ci.yaml",
		"Cargo.toml", "go.mod", "pom.xml", "build.gradle",
		"tsconfig.json", "webpack.config.js", "vite.config.ts",
	}

	defaultEntryPointPatterns = []string{
		"main.py", "app.py", "index.ts", "index.js", "server.js", "server.ts",
		"index.py", "cli.py", "manage.py", "main.go", "main.rs",
		"src/main.py", "src/app.py", "src/index.ts", "src/index.js",
		"src/main.go", "src/main.rs", "src/lib.rs",
		"cmd/main.go",
	}
)

// Budgets holds the per-section character ceilings.
type Budgets struct {
	Metadata    int
	Readme      int
	Tree        int
	ConfigFiles int
	EntryPoints int
}

// PolicyOptions is the mutable description of a Policy. Nil lists and
// non-positive numbers fall back to the built-in defaults.
type PolicyOptions struct {
	IgnoredDirectories       []string
	IgnoredFiles             []string
	IgnoredExtensions        []string
	ConfigPatterns           []string
	EntryPointPatterns       []string
	Budgets                  Budgets
	EntryPointLineLimit      int
	TreeDepth                int
	LargeRepositoryTreeDepth int
	LargeRepositoryThreshold int
}

// DefaultPolicyOptions returns a fresh copy of the built-in selection and budget policy.
func DefaultPolicyOptions() PolicyOptions {
	return PolicyOptions{
		IgnoredDirectories: cloneStrings(defaultIgnoredDirectories),
		IgnoredFiles:       cloneStrings(defaultIgnoredFiles),
		IgnoredExtensions:  cloneStrings(defaultIgnoredExtensions),
		ConfigPatterns:     cloneStrings(defaultConfigPatterns),
		EntryPointPatterns: cloneStrings(defaultEntryPointPatterns),
		Budgets: Budgets{
			Metadata:    defaultMetadataLimit,
			Readme:      defaultReadmeLimit,
			Tree:        defaultTreeLimit,
			ConfigFiles: defaultConfigFilesLimit,
			EntryPoints: defaultEntryPointsLimit,
		},
		EntryPointLineLimit:      defaultEntryPointLineLimit,
		TreeDepth:                defaultTreeDepth,
		LargeRepositoryTreeDepth: largeRepositoryTreeDepth,
		LargeRepositoryThreshold: largeRepositoryThreshold,
	}
}

// Policy is the immutable selection and budgeting configuration of one digest builder.
// Construct it with NewPolicy; the zero value ignores nothing and selects nothing.
type Policy struct {
	ignoreRules              IgnoreRules
	configTier               PatternTier
	entryPointTier           PatternTier
	budgets                  Budgets
	entryPointLineLimit      int
	treeDepth                int
	largeRepositoryTreeDepth int
	largeRepositoryThreshold int
}

// NewPolicy builds a Policy from options, filling unset values from the defaults.
func NewPolicy(options PolicyOptions) Policy {
	defaults := DefaultPolicyOptions()
	return Policy{
		ignoreRules: NewIgnoreRules(
			stringsOrDefault(options.IgnoredDirectories, defaults.IgnoredDirectories),
			stringsOrDefault(options.IgnoredFiles, defaults.IgnoredFiles),
			stringsOrDefault(options.IgnoredExtensions, defaults.IgnoredExtensions),
		),
		configTier:     NewPatternTier(stringsOrDefault(options.ConfigPatterns, defaults.ConfigPatterns)),
		entryPointTier: NewPatternTier(stringsOrDefault(options.EntryPointPatterns, defaults.EntryPointPatterns)),
		budgets: Budgets{
			Metadata:    positiveOrDefault(options.Budgets.Metadata, defaults.Budgets.Metadata),
			Readme:      positiveOrDefault(options.Budgets.Readme, defaults.Budgets.Readme),
			Tree:        positiveOrDefault(options.Budgets.Tree, defaults.Budgets.Tree),
			ConfigFiles: positiveOrDefault(options.Budgets.ConfigFiles, defaults.Budgets.ConfigFiles),
			EntryPoints: positiveOrDefault(options.Budgets.EntryPoints, defaults.Budgets.EntryPoints),
		},
		entryPointLineLimit:      positiveOrDefault(options.EntryPointLineLimit, defaults.EntryPointLineLimit),
		treeDepth:                positiveOrDefault(options.TreeDepth, defaults.TreeDepth),
		largeRepositoryTreeDepth: positiveOrDefault(options.LargeRepositoryTreeDepth, defaults.LargeRepositoryTreeDepth),
		largeRepositoryThreshold: positiveOrDefault(options.LargeRepositoryThreshold, defaults.LargeRepositoryThreshold),
	}
}

// DefaultPolicy returns NewPolicy(DefaultPolicyOptions()).
func DefaultPolicy() Policy {
	return NewPolicy(DefaultPolicyOptions())
}

// IgnoreRules returns the classifier rules of the policy.
func (policy Policy) IgnoreRules() IgnoreRules {
	return policy.ignoreRules
}

// ConfigTier returns the configuration/manifest pattern tier.
func (policy Policy) ConfigTier() PatternTier {
	return policy.configTier
}

// EntryPointTier returns the entry-point pattern tier.
func (policy Policy) EntryPointTier() PatternTier {
	return policy.entryPointTier
}

// Budgets returns the per-section character ceilings.
func (policy Policy) Budgets() Budgets {
	return policy.budgets
}

// TreeDepthFor picks the tree depth for a repository with blobCount files.
func (policy Policy) TreeDepthFor(blobCount int) int {
	if blobCount >= policy.largeRepositoryThreshold {
		return policy.largeRepositoryTreeDepth
	}
	return policy.treeDepth
}

func stringsOrDefault(values []string, fallback []string) []string {
	if values == nil {
		return fallback
	}
	return values
}

func positiveOrDefault(value int, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func cloneStrings(values []string) []string {
	return append([]string(nil), values...)
}
