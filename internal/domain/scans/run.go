package scans

// RunRequest untuk Runner
type RunRequest struct {
	Scanner Scanner
	Image   string
	Format  Format
}

// RunResult hasil dari Runner
type RunResult struct {
	Raw        []byte
	Format     Format
	ExitCode   int
	DurationMS int64
}
