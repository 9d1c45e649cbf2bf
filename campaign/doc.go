// Package campaign infers the live state of an externally executed certification
// campaign from the text it leaves behind.
//
// Nothing in this package talks to a remote host. Callers fetch terminal scrollback,
// manifests and directory counts through a providers.Provider and pass the raw text in;
// the functions here turn that text into a Status:
//
//	lines := campaign.SplitLines(scrollback)
//	phase := campaign.Classify(lines, active)
//	unit := campaign.CurrentUnit(lines)
//	progress := campaign.ComputeProgress(manifest, campaign.ParseCount(dirCount))
//
// Parse failures never propagate. A malformed count is zero and an unrecognised window
// classifies as PhaseProcessing, because a partial dashboard beats a broken one.
package campaign
