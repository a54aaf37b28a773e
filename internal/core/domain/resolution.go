package domain

// Context is the textual context gathered for a work item before generation.
type Context struct {
	ItemID   string
	Repo     string
	Snippets []string
	Summary  string
}

// Candidate is one generated fix proposal for a work item.
type Candidate struct {
	ItemID  string
	Diff    string
	Notes   string
	Attempt int
}

// Validation is the outcome of checking a candidate locally.
type Validation struct {
	Valid  bool
	Issues []string
}

// CommitHandle identifies a finalized fix on the repository host.
type CommitHandle struct {
	ID  string
	URL string
}

// Resolution is the accepted output of a successful pipeline run.
type Resolution struct {
	Candidate  *Candidate
	Validation Validation
	Commit     *CommitHandle
}
