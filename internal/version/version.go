// Package version holds build-time version information for the kisan binary,
// populated via -ldflags:
//
//	go build -ldflags="-X github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/version.Version=v0.3.0 \
//	                    -X github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/version.Commit=abc1234"
package version

import "fmt"

var (
	// Version is the semantic version. "dev" for local builds.
	Version = "dev"
	// Commit is the short git SHA.
	Commit = "unknown"
	// BuildDate is the UTC build date (RFC3339).
	BuildDate = "unknown"
)

// String renders all build fields on one line.
func String() string {
	return fmt.Sprintf("kisan %s (commit %s, built %s)", Version, Commit, BuildDate)
}
