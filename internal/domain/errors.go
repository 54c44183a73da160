package domain

import "errors"

// ErrNoUsableTemplates is the only pipeline failure escalated to callers:
// retrieval produced zero template candidates across every requested cuisine.
// Everything else degrades locally and shows up in the reports.
var ErrNoUsableTemplates = errors.New("no usable template candidates for any requested cuisine")

// ErrScoreContractViolated means the vector index ordered a known-similar
// probe pair below a known-dissimilar one. Score polarity is part of the
// searcher's declared contract and is verified once at startup.
var ErrScoreContractViolated = errors.New("vector index score contract violated: probe pair misordered")
