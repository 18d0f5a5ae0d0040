// Package xfer holds the immutable data model shared by every engine
// package: the request a caller hands in, the endpoint descriptors it
// names, the plan the planner builds from it, and the outcomes and
// summary the orchestrator hands back.
package xfer

// Operation selects copy-and-keep-source vs copy-and-remove-source.
type Operation int

const (
	Copy Operation = iota
	Move
)

func (o Operation) String() string {
	if o == Move {
		return "move"
	}
	return "copy"
}

// Layout controls whether the destination mirrors source subfolders.
type Layout int

const (
	PreserveFolders Layout = iota
	FilesOnly
)

// Method selects the transport family used for local<->local and
// any leg touching a remote endpoint.
type Method int

const (
	Standard Method = iota
	Rsync
)

// ConflictPolicy is the collision resolver's rule.
type ConflictPolicy int

const (
	Skip ConflictPolicy = iota
	Overwrite
	Rename
)

func ParseConflictPolicy(s string) (ConflictPolicy, bool) {
	switch s {
	case "", "skip":
		return Skip, true
	case "overwrite":
		return Overwrite, true
	case "rename":
		return Rename, true
	default:
		return Skip, false
	}
}

// EndpointKind distinguishes the two places a file may live.
type EndpointKind int

const (
	KindLocal EndpointKind = iota
	KindRemote
)

// Endpoint is the tagged variant described in spec §4.3: Kind says
// which side of the network it names. internal/endpoint.For reads Kind
// once to pick a Local or Remote Client; the operations themselves are
// called through that interface. Root is always an absolute path; for
// Remote it's the absolute path on Host.
type Endpoint struct {
	Kind EndpointKind
	Host string // SSH-config entry name; empty for Local
	Root string // absolute local path, or absolute remote path
}

func (e Endpoint) IsRemote() bool { return e.Kind == KindRemote }

func (e Endpoint) String() string {
	if e.Kind == KindRemote {
		return e.Host + ":" + e.Root
	}
	return e.Root
}

// SourceSpec describes where the files being transferred come from.
type SourceSpec struct {
	Endpoint Endpoint
	// Files, when non-empty, is an explicit file list (absolute paths
	// under Endpoint.Root) instead of "enumerate the whole directory".
	Files []string
}

// Exclusions holds the four exclusion lists from spec §4.2.
type Exclusions struct {
	ExactDirs    map[string]struct{}
	ExactFiles   map[string]struct{}
	DirPatterns  []string
	FilePatterns []string
}

// NewExclusions builds an Exclusions value from slices, which is the
// shape a CLI flag parser naturally produces.
func NewExclusions(exactDirs, exactFiles, dirPatterns, filePatterns []string) Exclusions {
	ex := Exclusions{
		ExactDirs:    map[string]struct{}{},
		ExactFiles:   map[string]struct{}{},
		DirPatterns:  append([]string(nil), dirPatterns...),
		FilePatterns: append([]string(nil), filePatterns...),
	}
	for _, d := range exactDirs {
		ex.ExactDirs[d] = struct{}{}
	}
	for _, f := range exactFiles {
		ex.ExactFiles[f] = struct{}{}
	}
	return ex
}

// TransferRequest is the single, fully-specified input the core's
// entry point accepts (spec §1, §3). It is immutable once built.
type TransferRequest struct {
	Source      SourceSpec
	Destination Endpoint
	Operation   Operation
	Layout      Layout
	Method      Method
	Conflict    ConflictPolicy
	Exclusions  Exclusions
	StripSpaces bool
	// DryRun runs planning, exclusion, and collision resolution exactly
	// as a real transfer, but skips the transport dispatch: every file
	// that would be copied/moved/renamed is reported as such without
	// touching a byte. Persists nothing, so it is not a checkpoint or
	// resumable state (spec §6 "no cross-invocation state" still holds).
	DryRun bool
}

// PlannedFile is one enumerated, exclusion-filtered source file paired
// with where it should land under the destination root.
type PlannedFile struct {
	SourcePath  string // absolute path on the source endpoint
	DestRelPath string // path under the destination root
	SizeHint    int64  // -1 if unknown at plan time
}
